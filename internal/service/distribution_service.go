package service

import (
	"classwork_backend/internal/model"
	"classwork_backend/pkg/logger"
	"classwork_backend/pkg/monitoring"
	"classwork_backend/pkg/tracing"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FanOutResult 符合条件的学生数与本次新建的副本数。两者不等说明副本已存在或个别插入失败
type FanOutResult struct {
	EligibleCount int `json:"eligibleCount"`
	InsertedCount int `json:"insertedCount"`
	SkippedCount  int `json:"skippedCount"`
	FailedCount   int `json:"failedCount"`
}

// DistributionService 把模板分发成每个学生一份的副本。
// 名单在调用时取一次，之后的班级变动不会增删已有副本
type DistributionService struct {
	Roster RosterLookup
	Copies StudentAssignmentStore
	Papers ExamPaperStore
}

func NewDistributionService(roster RosterLookup, copies StudentAssignmentStore, papers ExamPaperStore) *DistributionService {
	return &DistributionService{Roster: roster, Copies: copies, Papers: papers}
}

func (s *DistributionService) FanOutAssignment(ctx context.Context, a *model.Assignment) (res FanOutResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "DistributionService.FanOutAssignment", map[string]uint{"assignment.id": a.ID})
	defer func() { tracing.End(span, err) }()

	return s.fanOut(ctx, "assignment", a.ID, a.GroupNames, func(studentID uint) (bool, error) {
		return s.Copies.InsertIgnoreDuplicate(ctx, model.NewStudentAssignment(a, studentID))
	})
}

func (s *DistributionService) FanOutExam(ctx context.Context, e *model.Exam) (res FanOutResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "DistributionService.FanOutExam", map[string]uint{"exam.id": e.ID})
	defer func() { tracing.End(span, err) }()

	return s.fanOut(ctx, "exam", e.ID, e.GroupNames, func(studentID uint) (bool, error) {
		return s.Papers.InsertIgnoreDuplicate(ctx, model.NewExamPaper(e, studentID))
	})
}

// fanOut 逐个学生插入；重复的跳过，单个学生失败只记日志，不影响其他学生
func (s *DistributionService) fanOut(ctx context.Context, source string, templateID uint, groups []string, insert func(studentID uint) (bool, error)) (FanOutResult, error) {
	var res FanOutResult
	if templateID == 0 {
		return res, fmt.Errorf("fan out %s: template has no id", source)
	}

	students, err := s.Roster.StudentsInGroups(ctx, groups)
	if err != nil {
		return res, fmt.Errorf("fan out %s %d: roster: %w", source, templateID, err)
	}
	res.EligibleCount = len(students)

	for _, st := range students {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		inserted, err := insert(st.ID)
		switch {
		case err != nil:
			res.FailedCount++
			monitoring.FanOutCopies.WithLabelValues(source, "failed").Inc()
			logger.Log.Error("Failed to create working copy",
				zap.String("source", source),
				zap.Uint("templateID", templateID),
				zap.Uint("studentID", st.ID),
				zap.Error(err))
		case inserted:
			res.InsertedCount++
			monitoring.FanOutCopies.WithLabelValues(source, "inserted").Inc()
		default:
			res.SkippedCount++
			monitoring.FanOutCopies.WithLabelValues(source, "skipped").Inc()
		}
	}

	logger.Log.Info("Fan-out finished",
		zap.String("source", source),
		zap.Uint("templateID", templateID),
		zap.Int("eligible", res.EligibleCount),
		zap.Int("inserted", res.InsertedCount),
		zap.Int("skipped", res.SkippedCount),
		zap.Int("failed", res.FailedCount))
	return res, nil
}
