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

// ExamScoringService 交卷评分。每次交卷按当前答案重新计算并覆盖三部分得分，不保留历史
type ExamScoringService struct {
	Exams     ExamStore
	Papers    ExamPaperStore
	Questions QuestionBank
	Cache     StatsCache
	Settings  *GradingSettings
	now       func() time.Time
}

func NewExamScoringService(exams ExamStore, papers ExamPaperStore, questions QuestionBank, cache StatsCache, settings *GradingSettings) *ExamScoringService {
	return &ExamScoringService{
		Exams:     exams,
		Papers:    papers,
		Questions: questions,
		Cache:     cache,
		Settings:  settings,
		now:       time.Now,
	}
}

func (s *ExamScoringService) FinishExam(ctx context.Context, paperID, studentID uint) (score *grading.ExamScore, err error) {
	ctx, span := tracing.StartSpan(ctx, "ExamScoringService.FinishExam", map[string]uint{"paper.id": paperID})
	defer func() { tracing.End(span, err) }()

	cfg := s.Settings.Get()
	var examID uint
	err = retryOnStale(ctx, cfg.UpdateRetries, "finish_exam", func() error {
		paper, err := loadOwnedPaper(ctx, s.Papers, paperID, studentID)
		if err != nil {
			return err
		}
		exam, err := s.Exams.FindByID(ctx, paper.ExamID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := checkGate(exam.Window(now), cfg.EnforceWindows); err != nil {
			return err
		}

		ids := make([]uint, 0, len(paper.Items))
		for _, it := range paper.Items {
			ids = append(ids, it.QuestionID)
		}
		questions, err := questionMap(ctx, s.Questions, ids)
		if err != nil {
			return err
		}

		regradeAll(paper.Items, questions)
		sc := grading.ScoreExam(exam, paper.Items)
		paper.RecountCompleted()
		paper.ScorePart1 = sc.Part1
		paper.ScorePart2 = sc.Part2
		paper.ScorePart3 = sc.Part3
		paper.TotalScore = sc.Total
		t := now
		paper.FinishedAt = &t
		if paper.StartedAt == nil {
			paper.StartedAt = &t
		}
		paper.Status = model.CopyCompleted

		if err := s.Papers.Update(ctx, paper); err != nil {
			return err
		}
		examID = exam.ID
		score = &sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.Finishes.WithLabelValues("exam").Inc()
	monitoring.ExamTotalScore.Observe(score.Total)
	if err := s.Cache.Invalidate(ctx, statsKey("exam", examID)); err != nil {
		logger.Log.Warn("Failed to invalidate exam results cache", zap.Uint("examID", examID), zap.Error(err))
	}
	return score, nil
}
