package service

import (
	"classwork_backend/internal/grading"
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/monitoring"
	"classwork_backend/pkg/tracing"
	"context"
	"time"
)

// AnswerPayload 一次作答。三种形态只能给出一种，文本与数值同属开放题形态
type AnswerPayload struct {
	QuestionID    uint          `json:"questionId" binding:"required"`
	AnswerOption  *string       `json:"answerOption" binding:"omitempty,letter"`
	AnswerText    *string       `json:"answerText"`
	AnswerNumeric *float64      `json:"answerNumeric"`
	AnswerMulti3  *model.Multi3 `json:"answerMulti3"`
}

// ToAnswer 转成带标签的 Answer
func (p AnswerPayload) ToAnswer() (*model.Answer, error) {
	if p.QuestionID == 0 {
		return nil, util.InvalidInputf("questionId is required")
	}
	shapes := 0
	if p.AnswerOption != nil {
		shapes++
	}
	if p.AnswerText != nil || p.AnswerNumeric != nil {
		shapes++
	}
	if p.AnswerMulti3 != nil {
		shapes++
	}
	switch {
	case shapes == 0:
		return nil, util.InvalidInputf("an answer is required")
	case shapes > 1:
		return nil, util.InvalidInputf("only one answer shape may be submitted")
	}

	switch {
	case p.AnswerOption != nil:
		return model.NewOptionAnswer(*p.AnswerOption), nil
	case p.AnswerMulti3 != nil:
		return model.NewMultiAnswer(*p.AnswerMulti3), nil
	}
	text := ""
	if p.AnswerText != nil {
		text = *p.AnswerText
	}
	return model.NewOpenAnswer(text, p.AnswerNumeric), nil
}

// SubmitResult 作答后该题与副本的状态
type SubmitResult struct {
	QuestionID     uint             `json:"questionId"`
	Status         model.ItemStatus `json:"status"`
	IsCorrect      *bool            `json:"isCorrect"`
	PointsEarned   float64          `json:"pointsEarned"`
	Attempts       int              `json:"attempts"`
	CompletedCount int              `json:"completedCount"`
}

func newSubmitResult(item *model.WorkItem, completed int) *SubmitResult {
	return &SubmitResult{
		QuestionID:     item.QuestionID,
		Status:         item.Status,
		IsCorrect:      item.IsCorrect,
		PointsEarned:   item.PointsEarned,
		Attempts:       item.Attempts,
		CompletedCount: completed,
	}
}

type AnswerService struct {
	Assignments AssignmentStore
	Copies      StudentAssignmentStore
	Exams       ExamStore
	Papers      ExamPaperStore
	Questions   QuestionBank
	Settings    *GradingSettings
	now         func() time.Time
}

func NewAnswerService(assignments AssignmentStore, copies StudentAssignmentStore, exams ExamStore, papers ExamPaperStore, questions QuestionBank, settings *GradingSettings) *AnswerService {
	return &AnswerService{
		Assignments: assignments,
		Copies:      copies,
		Exams:       exams,
		Papers:      papers,
		Questions:   questions,
		Settings:    settings,
		now:         time.Now,
	}
}

// SubmitAnswer 写入一道题的答案并立即判分，整份副本一起写回
func (s *AnswerService) SubmitAnswer(ctx context.Context, copyID, studentID uint, p AnswerPayload) (result *SubmitResult, err error) {
	ans, err := p.ToAnswer()
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "AnswerService.SubmitAnswer", map[string]uint{"copy.id": copyID, "question.id": p.QuestionID})
	defer func() { tracing.End(span, err) }()

	cfg := s.Settings.Get()
	var verdict grading.Verdict
	err = retryOnStale(ctx, cfg.UpdateRetries, "submit_answer", func() error {
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
		idx := sa.ItemIndex(p.QuestionID)
		if idx < 0 {
			return util.ErrItemNotFound
		}
		questions, err := questionMap(ctx, s.Questions, []uint{p.QuestionID})
		if err != nil {
			return err
		}

		item := &sa.Items[idx]
		verdict = applyAnswer(item, questions[p.QuestionID], ans, now)
		sa.RecountCompleted()
		sa.SumEarned()
		if sa.Status == model.CopyAssigned {
			sa.Status = model.CopyInProgress
		}
		if err := s.Copies.Update(ctx, sa); err != nil {
			return err
		}
		result = newSubmitResult(item, sa.CompletedCount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	monitoring.AnswersGraded.WithLabelValues("assignment", verdict.String()).Inc()
	return result, nil
}

// SubmitExamAnswer 考试作答，规则与作业相同
func (s *AnswerService) SubmitExamAnswer(ctx context.Context, paperID, studentID uint, p AnswerPayload) (result *SubmitResult, err error) {
	ans, err := p.ToAnswer()
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "AnswerService.SubmitExamAnswer", map[string]uint{"paper.id": paperID, "question.id": p.QuestionID})
	defer func() { tracing.End(span, err) }()

	cfg := s.Settings.Get()
	var verdict grading.Verdict
	err = retryOnStale(ctx, cfg.UpdateRetries, "submit_exam_answer", func() error {
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
		idx := paper.ItemIndex(p.QuestionID)
		if idx < 0 {
			return util.ErrItemNotFound
		}
		questions, err := questionMap(ctx, s.Questions, []uint{p.QuestionID})
		if err != nil {
			return err
		}

		item := &paper.Items[idx]
		verdict = applyAnswer(item, questions[p.QuestionID], ans, now)
		paper.RecountCompleted()
		if paper.Status == model.CopyAssigned {
			paper.Status = model.CopyInProgress
		}
		if paper.StartedAt == nil {
			t := now
			paper.StartedAt = &t
		}
		if err := s.Papers.Update(ctx, paper); err != nil {
			return err
		}
		result = newSubmitResult(item, paper.CompletedCount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	monitoring.AnswersGraded.WithLabelValues("exam", verdict.String()).Inc()
	return result, nil
}

// loadOwnedCopy 副本不属于该学生时与不存在同样处理
func loadOwnedCopy(ctx context.Context, copies StudentAssignmentStore, copyID, studentID uint) (*model.StudentAssignment, error) {
	sa, err := copies.FindByID(ctx, copyID)
	if err != nil {
		return nil, err
	}
	if sa.StudentID != studentID {
		return nil, util.ErrCopyNotFound
	}
	return sa, nil
}

func loadOwnedPaper(ctx context.Context, papers ExamPaperStore, paperID, studentID uint) (*model.ExamPaper, error) {
	p, err := papers.FindByID(ctx, paperID)
	if err != nil {
		return nil, err
	}
	if p.StudentID != studentID {
		return nil, util.ErrCopyNotFound
	}
	return p, nil
}
