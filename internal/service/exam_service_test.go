package service

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBank(t *testing.T, f *fixture, n int, format model.QuestionFormat, cat model.QuestionCategory, diff model.Difficulty, key string) []uint {
	t.Helper()
	ids := make([]uint, 0, n)
	for i := 0; i < n; i++ {
		q := model.Question{Format: format, Category: cat, Difficulty: diff}
		switch format {
		case model.FormatTest:
			q.CorrectAnswer = strPtr(key)
		case model.FormatOpen:
			q.OpenAnswer = strPtr(key)
		}
		ids = append(ids, f.questions.mustCreate(t, q))
	}
	return ids
}

func TestExamCreate_SelectsByPartWithoutRepeats(t *testing.T) {
	f := newFixture()
	easy := seedBank(t, f, 5, model.FormatTest, model.CategoryMath, model.DifficultyEasy, "A")
	geo := seedBank(t, f, 2, model.FormatTest, model.CategoryGeometry, model.DifficultyHard, "B")
	open := seedBank(t, f, 2, model.FormatOpen, model.CategoryMath, model.DifficultyMedium, "4")

	exam, err := f.examSvc.Create(context.Background(), 9, CreateExamReq{
		Title:       "Midterm",
		GroupNames:  []string{"9A"},
		DurationSec: 3600,
		Parts: []model.ExamPart{
			{Index: 3, Format: model.FormatOpen, QuestionsConfig: model.QuestionsConfig{Math: model.DifficultyCounts{Medium: 1}}, Scale: 2},
			{Index: 1, QuestionsConfig: model.QuestionsConfig{
				Math:     model.DifficultyCounts{Easy: 2},
				Geometry: model.DifficultyCounts{Hard: 1},
			}},
			{Index: 2, Format: model.FormatTest, QuestionsConfig: model.QuestionsConfig{Math: model.DifficultyCounts{Easy: 2}}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.ExamDraft, exam.Status)
	assert.False(t, exam.IsPublished)
	require.Len(t, exam.Parts, 3)
	assert.Equal(t, 1, exam.Parts[0].Index)
	assert.Equal(t, model.FormatTest, exam.Parts[0].Format)
	assert.Equal(t, 1.0, exam.Parts[0].Scale)

	want := []model.TemplateItem{
		{QuestionID: easy[0], Points: 1, PartIndex: 1},
		{QuestionID: easy[1], Points: 1, PartIndex: 1},
		{QuestionID: geo[0], Points: 1, PartIndex: 1},
		{QuestionID: easy[2], Points: 1, PartIndex: 2},
		{QuestionID: easy[3], Points: 1, PartIndex: 2},
		{QuestionID: open[0], Points: 1, PartIndex: 3},
	}
	assert.Equal(t, want, []model.TemplateItem(exam.Items))
}

func TestExamCreate_Validation(t *testing.T) {
	f := newFixture()
	seedBank(t, f, 2, model.FormatTest, model.CategoryMath, model.DifficultyEasy, "A")
	base := func() CreateExamReq {
		return CreateExamReq{
			Title:       "Quiz",
			GroupNames:  []string{"9A"},
			DurationSec: 600,
			Parts:       []model.ExamPart{{Index: 1, QuestionsConfig: model.QuestionsConfig{Math: model.DifficultyCounts{Easy: 1}}}},
		}
	}
	ctx := context.Background()

	req := base()
	req.Parts[0].QuestionsConfig.Math.Easy = 10
	_, err := f.examSvc.Create(ctx, 1, req)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	req = base()
	req.Parts = append(req.Parts, model.ExamPart{Index: 1})
	_, err = f.examSvc.Create(ctx, 1, req)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	req = base()
	req.Parts[0].Index = 4
	_, err = f.examSvc.Create(ctx, 1, req)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	req = base()
	req.Parts[0].Scale = -1
	_, err = f.examSvc.Create(ctx, 1, req)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	req = base()
	req.GroupNames = []string{" "}
	_, err = f.examSvc.Create(ctx, 1, req)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

type examFixture struct {
	*fixture
	exam  *model.Exam
	ids   []uint
	paper model.ExamPaper
}

// newExamFixture 发布一场第 1 部分 13 道题、负分、系数 1.2 的考试
func newExamFixture(t *testing.T) *examFixture {
	t.Helper()
	f := newFixture()
	f.roster.add(1, "Aliyev Murad", "9A")
	f.roster.add(2, "Babayeva Nigar", "9A")
	ids := seedBank(t, f, 13, model.FormatTest, model.CategoryMath, model.DifficultyEasy, "A")

	exam, err := f.examSvc.Create(context.Background(), 9, CreateExamReq{
		Title:       "Final",
		GroupNames:  []string{"9A"},
		DurationSec: 3600,
		Parts: []model.ExamPart{{
			Index:           1,
			QuestionsConfig: model.QuestionsConfig{Math: model.DifficultyCounts{Easy: 13}},
			Scale:           1.2,
			NegativeMarking: true,
		}},
	})
	require.NoError(t, err)
	pub, err := f.examSvc.Publish(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Equal(t, 2, pub.FanOut.InsertedCount)
	assert.True(t, pub.Exam.StartsAt.Equal(testNow))

	return &examFixture{fixture: f, exam: pub.Exam, ids: ids, paper: f.papers.forStudent(t, exam.ID, 1)}
}

func (f *examFixture) answer(t *testing.T, qid uint, letter string) {
	t.Helper()
	_, err := f.answers.SubmitExamAnswer(context.Background(), f.paper.ID, 1, AnswerPayload{QuestionID: qid, AnswerOption: strPtr(letter)})
	require.NoError(t, err)
}

func TestFinishExam_NegativeMarkingAndScale(t *testing.T) {
	f := newExamFixture(t)
	for i, id := range f.ids {
		if i < 10 {
			f.answer(t, id, "A")
		} else {
			f.answer(t, id, "B")
		}
	}

	score, err := f.scoring.FinishExam(context.Background(), f.paper.ID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 11.1, score.Part1, 1e-9)
	assert.InDelta(t, 11.1, score.Total, 1e-9)

	p := f.papers.forStudent(t, f.exam.ID, 1)
	assert.Equal(t, model.CopyCompleted, p.Status)
	assert.InDelta(t, 11.1, p.TotalScore, 1e-9)
	assert.Equal(t, 13, p.CompletedCount)
	require.NotNil(t, p.FinishedAt)
	require.NotNil(t, p.StartedAt)
	assert.Contains(t, f.cache.invalidated, statsKey("exam", f.exam.ID))
}

func TestFinishExam_OverwritesPreviousScore(t *testing.T) {
	f := newExamFixture(t)
	for _, id := range f.ids[:4] {
		f.answer(t, id, "B")
	}
	score, err := f.scoring.FinishExam(context.Background(), f.paper.ID, 1)
	require.NoError(t, err)
	// 负分先截到 0 再乘系数
	assert.Equal(t, 0.0, score.Part1)

	for _, id := range f.ids[:4] {
		f.answer(t, id, "A")
	}
	score, err = f.scoring.FinishExam(context.Background(), f.paper.ID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.8, score.Part1, 1e-9)
	assert.InDelta(t, 4.8, f.papers.forStudent(t, f.exam.ID, 1).TotalScore, 1e-9)
}

func TestFinishExam_BlankIsNotWrong(t *testing.T) {
	f := newExamFixture(t)
	f.answer(t, f.ids[0], "A")

	score, err := f.scoring.FinishExam(context.Background(), f.paper.ID, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, score.Part1, 1e-9)
}

func TestFinishExam_UnpublishedIsForbidden(t *testing.T) {
	f := newExamFixture(t)
	_, err := f.examSvc.Unpublish(context.Background(), f.exam.ID)
	require.NoError(t, err)

	_, err = f.scoring.FinishExam(context.Background(), f.paper.ID, 1)
	assert.ErrorIs(t, err, util.ErrForbidden)

	_, err = f.scoring.FinishExam(context.Background(), f.paper.ID, 2)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestExamActiveAndStart(t *testing.T) {
	f := newExamFixture(t)
	ctx := context.Background()

	active, err := f.examSvc.Active(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, f.paper.ID, active.PaperID)
	assert.Equal(t, 3600, active.RemainingSec)

	none, err := f.examSvc.Active(ctx, 77)
	require.NoError(t, err)
	assert.Nil(t, none)

	p, err := f.examSvc.Start(ctx, f.paper.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.CopyInProgress, p.Status)
	require.NotNil(t, p.StartedAt)
	assert.True(t, p.StartedAt.Equal(testNow))

	f.examSvc.now = func() time.Time { return testNow.Add(10 * time.Minute) }
	p, err = f.examSvc.Start(ctx, f.paper.ID, 1)
	require.NoError(t, err)
	assert.True(t, p.StartedAt.Equal(testNow))

	f.examSvc.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	over, err := f.examSvc.Active(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, over)
}

func TestExamPaperViewHidesKeys(t *testing.T) {
	f := newExamFixture(t)
	view, err := f.examSvc.PaperView(context.Background(), f.paper.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Items, 13)
	assert.Equal(t, model.FormatTest, view.Items[0].Format)
	assert.Equal(t, "Final", view.Title)

	_, err = f.examSvc.PaperView(context.Background(), f.paper.ID, 2)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestExamHistoryAndResults(t *testing.T) {
	f := newExamFixture(t)
	ctx := context.Background()
	for _, id := range f.ids[:5] {
		f.answer(t, id, "A")
	}
	_, err := f.scoring.FinishExam(ctx, f.paper.ID, 1)
	require.NoError(t, err)

	history, err := f.examSvc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Final", history[0].ExamTitle)
	assert.InDelta(t, 6.0, history[0].TotalScore, 1e-9)

	empty, err := f.examSvc.History(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	res, err := f.analytics.ExamResults(ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Finished)
	require.Len(t, res.Students, 2)
	require.Len(t, res.GroupAverages, 1)
	assert.Equal(t, model.GroupScore{Group: "9A", Students: 1, AvgScore: 6}, res.GroupAverages[0])
}

func TestExamRepublishRefreshesResults(t *testing.T) {
	f := newExamFixture(t)
	ctx := context.Background()

	res, err := f.analytics.ExamResults(ctx, f.exam.ID)
	require.NoError(t, err)
	require.Len(t, res.Students, 2)

	f.roster.add(3, "Huseynov Elvin", "9A")
	pub, err := f.examSvc.Publish(ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pub.FanOut.InsertedCount)

	res, err = f.analytics.ExamResults(ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Len(t, res.Students, 3)

	f.cache.invalidated = nil
	_, err = f.examSvc.Unpublish(ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Contains(t, f.cache.invalidated, statsKey("exam", f.exam.ID))
}

func TestExamDelete(t *testing.T) {
	f := newExamFixture(t)
	require.NoError(t, f.examSvc.Delete(context.Background(), f.exam.ID))

	_, err := f.examSvc.Detail(context.Background(), f.exam.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)
	assert.Contains(t, f.cache.invalidated, statsKey("exam", f.exam.ID))
}
