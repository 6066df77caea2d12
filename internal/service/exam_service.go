package service

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

type CreateExamReq struct {
	Title           string           `json:"title" binding:"required"`
	ClassLevel      int              `json:"classLevel"`
	GroupNames      []string         `json:"groupNames" binding:"required,min=1,dive,required"`
	StartsAt        *time.Time       `json:"startsAt"`
	DurationSec     int              `json:"durationSec" binding:"required,gt=0"`
	Parts           []model.ExamPart `json:"parts" binding:"required,min=1,max=3"`
	SolutionsPDFURL string           `json:"solutionsPdfUrl"`
}

type ExamWithFanOut struct {
	Exam   *model.Exam  `json:"exam"`
	FanOut FanOutResult `json:"fanOut"`
}

type ExamSummary struct {
	model.Exam
	QuestionCount int               `json:"questionCount"`
	Window        model.WindowState `json:"window"`
}

type ExamDetail struct {
	Exam      *model.Exam       `json:"exam"`
	Questions []model.Question  `json:"questions"`
	Window    model.WindowState `json:"window"`
}

// ActiveExam 学生当前可作答的考试
type ActiveExam struct {
	ExamID       uint             `json:"id"`
	Title        string           `json:"title"`
	StartsAt     time.Time        `json:"startsAt"`
	DurationSec  int              `json:"durationSec"`
	RemainingSec int              `json:"remainingSec"`
	PaperID      uint             `json:"paperId"`
	Status       model.CopyStatus `json:"status"`
}

type ExamPaperView struct {
	PaperID      uint              `json:"paperId"`
	ExamID       uint              `json:"examId"`
	Title        string            `json:"title"`
	Status       model.CopyStatus  `json:"status"`
	RemainingSec int               `json:"remainingSec"`
	Items        []StudentItemView `json:"items"`
}

type ExamHistoryEntry struct {
	PaperID    uint       `json:"id"`
	ExamTitle  string     `json:"examTitle"`
	Date       *time.Time `json:"date"`
	ScorePart1 float64    `json:"scorePart1"`
	ScorePart2 float64    `json:"scorePart2"`
	ScorePart3 float64    `json:"scorePart3"`
	TotalScore float64    `json:"totalScore"`
}

var (
	selectionCategories   = []model.QuestionCategory{model.CategoryMath, model.CategoryGeometry}
	selectionDifficulties = []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard}
)

type ExamService struct {
	Exams        ExamStore
	Papers       ExamPaperStore
	Questions    QuestionStore
	Distribution *DistributionService
	Cache        StatsCache
	Settings     *GradingSettings
	now          func() time.Time
}

func NewExamService(exams ExamStore, papers ExamPaperStore, questions QuestionStore, distribution *DistributionService, cache StatsCache, settings *GradingSettings) *ExamService {
	return &ExamService{
		Exams:        exams,
		Papers:       papers,
		Questions:    questions,
		Distribution: distribution,
		Cache:        cache,
		Settings:     settings,
		now:          time.Now,
	}
}

// Create 新建考试草稿，并按每部分的类别/难度配置从题库按 ID 顺序抽题，不重复
func (s *ExamService) Create(ctx context.Context, createdBy uint, req CreateExamReq) (*model.Exam, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.InvalidInputf("title is required")
	}
	groups := cleanGroups(req.GroupNames)
	if len(groups) == 0 {
		return nil, util.InvalidInputf("at least one group is required")
	}
	if req.DurationSec <= 0 {
		return nil, util.InvalidInputf("durationSec must be positive")
	}
	parts, err := normalizeParts(req.Parts)
	if err != nil {
		return nil, err
	}
	items, err := s.selectItems(ctx, parts)
	if err != nil {
		return nil, err
	}

	startsAt := s.now()
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	exam := &model.Exam{
		Title:           title,
		ClassLevel:      req.ClassLevel,
		GroupNames:      groups,
		StartsAt:        startsAt,
		DurationSec:     req.DurationSec,
		Parts:           parts,
		Items:           items,
		SolutionsPDFURL: req.SolutionsPDFURL,
		CreatedBy:       createdBy,
		Status:          model.ExamDraft,
	}
	if err := s.Exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	return exam, nil
}

func normalizeParts(in []model.ExamPart) ([]model.ExamPart, error) {
	seen := map[int]bool{}
	parts := make([]model.ExamPart, 0, len(in))
	for _, p := range in {
		if p.Index < 1 || p.Index > 3 {
			return nil, util.InvalidInputf("part index must be 1, 2 or 3, got %d", p.Index)
		}
		if seen[p.Index] {
			return nil, util.InvalidInputf("duplicate part index %d", p.Index)
		}
		seen[p.Index] = true
		if p.Format == "" {
			p.Format = model.FormatTest
		}
		if !p.Format.Valid() {
			return nil, util.InvalidInputf("unknown part format %q", p.Format)
		}
		if p.Scale < 0 {
			return nil, util.InvalidInputf("part %d scale must not be negative", p.Index)
		}
		if p.Scale == 0 {
			p.Scale = 1
		}
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })
	return parts, nil
}

func (s *ExamService) selectItems(ctx context.Context, parts []model.ExamPart) ([]model.TemplateItem, error) {
	var items []model.TemplateItem
	var picked []uint
	for _, part := range parts {
		for _, cat := range selectionCategories {
			counts := part.QuestionsConfig.Of(cat)
			for _, diff := range selectionDifficulties {
				want := counts.Of(diff)
				if want <= 0 {
					continue
				}
				qs, err := s.Questions.FindForSelection(ctx, part.Format, cat, diff, want, picked)
				if err != nil {
					return nil, fmt.Errorf("select questions: %w", err)
				}
				if len(qs) < want {
					return nil, util.InvalidInputf("part %d needs %d %s/%s %s questions, bank has %d",
						part.Index, want, cat, diff, part.Format, len(qs))
				}
				for _, q := range qs {
					points := q.Points
					if points <= 0 {
						points = 1
					}
					items = append(items, model.TemplateItem{QuestionID: q.ID, Points: points, PartIndex: part.Index})
					picked = append(picked, q.ID)
				}
			}
		}
	}
	if len(items) == 0 {
		return nil, util.InvalidInputf("exam selects no questions")
	}
	return items, nil
}

// Publish 从现在开始计时并分发答卷
func (s *ExamService) Publish(ctx context.Context, id uint) (*ExamWithFanOut, error) {
	exam, err := s.Exams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	exam.StartsAt = s.now()
	exam.IsPublished = true
	exam.Status = model.ExamPublished
	if err := s.Exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("publish exam %d: %w", id, err)
	}
	res, err := s.Distribution.FanOutExam(ctx, exam)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return &ExamWithFanOut{Exam: exam, FanOut: res}, nil
}

func (s *ExamService) Unpublish(ctx context.Context, id uint) (*model.Exam, error) {
	exam, err := s.Exams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	exam.IsPublished = false
	exam.Status = model.ExamDraft
	if err := s.Exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("unpublish exam %d: %w", id, err)
	}
	s.invalidate(ctx, id)
	return exam, nil
}

func (s *ExamService) List(ctx context.Context) ([]ExamSummary, error) {
	list, err := s.Exams.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ExamSummary, 0, len(list))
	for i := range list {
		out = append(out, ExamSummary{Exam: list[i], QuestionCount: len(list[i].Items), Window: list[i].Window(now)})
	}
	return out, nil
}

func (s *ExamService) Detail(ctx context.Context, id uint) (*ExamDetail, error) {
	exam, err := s.Exams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := questionMap(ctx, s.Questions, exam.QuestionIDs())
	if err != nil {
		return nil, err
	}
	ordered := make([]model.Question, 0, len(exam.Items))
	for _, it := range exam.Items {
		if q, ok := questions[it.QuestionID]; ok {
			ordered = append(ordered, *q)
		}
	}
	return &ExamDetail{Exam: exam, Questions: ordered, Window: exam.Window(s.now())}, nil
}

// SetSolutions 记录答案 PDF 的地址
func (s *ExamService) SetSolutions(ctx context.Context, id uint, url string) (*model.Exam, error) {
	exam, err := s.Exams.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	exam.SolutionsPDFURL = url
	if err := s.Exams.Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("set solutions for exam %d: %w", id, err)
	}
	return exam, nil
}

func (s *ExamService) Delete(ctx context.Context, id uint) error {
	if err := s.Exams.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *ExamService) invalidate(ctx context.Context, id uint) {
	if err := s.Cache.Invalidate(ctx, statsKey("exam", id)); err != nil {
		logger.Log.Warn("Failed to invalidate exam results cache", zap.Uint("examID", id), zap.Error(err))
	}
}

// Active 学生最近一份答卷对应的考试若已发布且正在进行则返回，否则为 nil
func (s *ExamService) Active(ctx context.Context, studentID uint) (*ActiveExam, error) {
	paper, err := s.Papers.FindLatestByStudent(ctx, studentID)
	if errors.Is(err, util.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	exam, err := s.Exams.FindByID(ctx, paper.ExamID)
	if errors.Is(err, util.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !exam.Window(now).AcceptsAnswers() {
		return nil, nil
	}
	return &ActiveExam{
		ExamID:       exam.ID,
		Title:        exam.Title,
		StartsAt:     exam.StartsAt,
		DurationSec:  exam.DurationSec,
		RemainingSec: exam.RemainingSeconds(now),
		PaperID:      paper.ID,
		Status:       paper.Status,
	}, nil
}

// Start 标记开始作答，重复调用不会改变首次开始时间
func (s *ExamService) Start(ctx context.Context, paperID, studentID uint) (*model.ExamPaper, error) {
	cfg := s.Settings.Get()
	var out *model.ExamPaper
	err := retryOnStale(ctx, cfg.UpdateRetries, "start_exam", func() error {
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
		if paper.StartedAt == nil {
			t := now
			paper.StartedAt = &t
		}
		if paper.Status != model.CopyCompleted {
			paper.Status = model.CopyInProgress
		}
		if err := s.Papers.Update(ctx, paper); err != nil {
			return err
		}
		out = paper
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ExamService) PaperView(ctx context.Context, paperID, studentID uint) (*ExamPaperView, error) {
	paper, err := loadOwnedPaper(ctx, s.Papers, paperID, studentID)
	if err != nil {
		return nil, err
	}
	exam, err := s.Exams.FindByID(ctx, paper.ExamID)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublished {
		return nil, util.ErrNotPublished
	}
	questions, err := questionMap(ctx, s.Questions, exam.QuestionIDs())
	if err != nil {
		return nil, err
	}
	return &ExamPaperView{
		PaperID:      paper.ID,
		ExamID:       exam.ID,
		Title:        exam.Title,
		Status:       paper.Status,
		RemainingSec: exam.RemainingSeconds(s.now()),
		Items:        studentItems(paper.Items, questions),
	}, nil
}

// History 已交卷的考试，最近的在前
func (s *ExamService) History(ctx context.Context, studentID uint) ([]ExamHistoryEntry, error) {
	papers, err := s.Papers.FindCompletedByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(papers))
	for _, p := range papers {
		ids = append(ids, p.ExamID)
	}
	exams, err := s.Exams.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	titles := make(map[uint]string, len(exams))
	for _, e := range exams {
		titles[e.ID] = e.Title
	}

	out := make([]ExamHistoryEntry, 0, len(papers))
	for _, p := range papers {
		out = append(out, ExamHistoryEntry{
			PaperID:    p.ID,
			ExamTitle:  titles[p.ExamID],
			Date:       p.FinishedAt,
			ScorePart1: p.ScorePart1,
			ScorePart2: p.ScorePart2,
			ScorePart3: p.ScorePart3,
			TotalScore: p.TotalScore,
		})
	}
	return out, nil
}
