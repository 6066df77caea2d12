package service

import (
	"classwork_backend/internal/grading"
	"classwork_backend/internal/model"
	"classwork_backend/pkg/logger"
	"classwork_backend/pkg/monitoring"
	"classwork_backend/pkg/tracing"
	"context"
	"time"

	"go.uber.org/zap"
)

type FinishResult struct {
	QuestionCount  int     `json:"questionCount"`
	CompletedCount int     `json:"completedCount"`
	ScorePercent   float64 `json:"scorePercent"`
	RedoCount      int     `json:"redoCount"`
	PointsEarned   float64 `json:"pointsEarned"`
	TotalPoints    float64 `json:"totalPoints"`
}

// FinishService 完成（或重做后再次完成）作业：全部重判并追加一条成绩快照
type FinishService struct {
	Assignments AssignmentStore
	Copies      StudentAssignmentStore
	Questions   QuestionBank
	Cache       StatsCache
	Settings    *GradingSettings
	now         func() time.Time
}

func NewFinishService(assignments AssignmentStore, copies StudentAssignmentStore, questions QuestionBank, cache StatsCache, settings *GradingSettings) *FinishService {
	return &FinishService{
		Assignments: assignments,
		Copies:      copies,
		Questions:   questions,
		Cache:       cache,
		Settings:    settings,
		now:         time.Now,
	}
}

func (s *FinishService) Finish(ctx context.Context, copyID, studentID uint) (result *FinishResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "FinishService.Finish", map[string]uint{"copy.id": copyID})
	defer func() { tracing.End(span, err) }()

	cfg := s.Settings.Get()
	var assignmentID uint
	err = retryOnStale(ctx, cfg.UpdateRetries, "finish", func() error {
		sa, err := loadOwnedCopy(ctx, s.Copies, copyID, studentID)
		if err != nil {
			return err
		}
		a, err := s.Assignments.FindByID(ctx, sa.AssignmentID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := checkGate(a.Window(now), cfg.EnforceWindows); err != nil {
			return err
		}

		ids := make([]uint, 0, len(sa.Items))
		for _, it := range sa.Items {
			ids = append(ids, it.QuestionID)
		}
		questions, err := questionMap(ctx, s.Questions, ids)
		if err != nil {
			return err
		}

		correct := regradeAll(sa.Items, questions)
		percent := grading.SnapshotPercent(correct, len(sa.Items))
		sa.RecountCompleted()
		sa.SumEarned()
		sa.ScorePercent = &percent
		sa.Finishes.Append(model.FinishSnapshot{At: now, SnapshotPercent: percent})
		sa.Status = model.CopyCompleted

		if err := s.Copies.Update(ctx, sa); err != nil {
			return err
		}
		assignmentID = sa.AssignmentID
		result = &FinishResult{
			QuestionCount:  len(sa.Items),
			CompletedCount: sa.CompletedCount,
			ScorePercent:   percent,
			RedoCount:      sa.RedoCount(),
			PointsEarned:   sa.PointsEarned,
			TotalPoints:    sa.TotalPoints,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.Finishes.WithLabelValues("assignment").Inc()
	monitoring.SnapshotPercent.Observe(result.ScorePercent)
	if err := s.Cache.Invalidate(ctx, statsKey("assignment", assignmentID)); err != nil {
		logger.Log.Warn("Failed to invalidate stats cache", zap.Uint("assignmentID", assignmentID), zap.Error(err))
	}
	return result, nil
}
