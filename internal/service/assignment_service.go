package service

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"classwork_backend/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const dateKeyLayout = "2006-01-02"

type CreateAssignmentReq struct {
	DateKey           string     `json:"dateKey"`
	Title             string     `json:"title" binding:"required"`
	Instructions      string     `json:"instructions"`
	GroupNames        []string   `json:"groupNames" binding:"required,min=1,dive,required"`
	QuestionIDs       []uint     `json:"questionIds" binding:"required,min=1"`
	PointsPerQuestion float64    `json:"pointsPerQuestion" binding:"omitempty,gt=0"`
	VisibleHour       *int       `json:"visibleHour" binding:"omitempty,min=0,max=23"`
	DueAt             *time.Time `json:"dueAt"`
	PublishNow        bool       `json:"publishNow"`
	AutoPublish       bool       `json:"autoPublish"`
}

// UpdateAssignmentReq 只更新给出的字段。副本已存在后题目不能再改
type UpdateAssignmentReq struct {
	Title        *string    `json:"title"`
	Instructions *string    `json:"instructions"`
	GroupNames   []string   `json:"groupNames" binding:"omitempty,dive,required"`
	VisibleFrom  *time.Time `json:"visibleFrom"`
	DueAt        *time.Time `json:"dueAt"`
	AutoPublish  *bool      `json:"autoPublish"`
	QuestionIDs  []uint     `json:"questionIds"`
}

type AssignmentWithFanOut struct {
	Assignment *model.Assignment `json:"assignment"`
	FanOut     FanOutResult      `json:"fanOut"`
}

type AssignmentSummary struct {
	model.Assignment
	QuestionCount int               `json:"questionCount"`
	CopyCount     int64             `json:"copyCount"`
	Window        model.WindowState `json:"window"`
}

type AssignmentDetail struct {
	Assignment *model.Assignment `json:"assignment"`
	Questions  []model.Question  `json:"questions"`
	Window     model.WindowState `json:"window"`
	CopyCount  int64             `json:"copyCount"`
}

type KeyCoverage struct {
	QuestionID uint                 `json:"questionId"`
	Format     model.QuestionFormat `json:"format"`
	Exists     bool                 `json:"exists"`
	HasKey     bool                 `json:"hasKey"`
}

type KeyCheckResult struct {
	Items   []KeyCoverage `json:"items"`
	Missing int           `json:"missing"`
}

// StudentBoxEntry 学生作业列表中的一项
type StudentBoxEntry struct {
	CopyID         uint              `json:"copyId"`
	AssignmentID   uint              `json:"assignmentId"`
	Title          string            `json:"title"`
	DateKey        string            `json:"dateKey"`
	QuestionCount  int               `json:"questionCount"`
	CompletedCount int               `json:"completedCount"`
	Status         model.CopyStatus  `json:"status"`
	LastPercent    *float64          `json:"lastPercent"`
	RedoCount      int               `json:"redoCount"`
	Window         model.WindowState `json:"window"`
}

// StudentItemView 学生看到的题目，不含标准答案
type StudentItemView struct {
	model.WorkItem
	Format     model.QuestionFormat   `json:"questionFormat"`
	Category   model.QuestionCategory `json:"category"`
	Difficulty model.Difficulty       `json:"difficulty"`
	ImageURL   string                 `json:"imageUrl"`
}

type StudentCopyView struct {
	CopyID         uint              `json:"copyId"`
	AssignmentID   uint              `json:"assignmentId"`
	Title          string            `json:"title"`
	Instructions   string            `json:"instructions"`
	Status         model.CopyStatus  `json:"status"`
	CompletedCount int               `json:"completedCount"`
	ScorePercent   *float64          `json:"scorePercent"`
	Finishes       model.FinishLog   `json:"finishes"`
	Window         model.WindowState `json:"window"`
	Items          []StudentItemView `json:"items"`
}

type AssignmentService struct {
	Assignments  AssignmentStore
	Copies       StudentAssignmentStore
	Questions    QuestionBank
	Distribution *DistributionService
	Cache        StatsCache
	Settings     *GradingSettings
	now          func() time.Time
}

func NewAssignmentService(assignments AssignmentStore, copies StudentAssignmentStore, questions QuestionBank, distribution *DistributionService, cache StatsCache, settings *GradingSettings) *AssignmentService {
	return &AssignmentService{
		Assignments:  assignments,
		Copies:       copies,
		Questions:    questions,
		Distribution: distribution,
		Cache:        cache,
		Settings:     settings,
		now:          time.Now,
	}
}

// Create 新建作业并立即分发。可见时间默认是日期当天 visibleHour 点，截止默认 23:59
func (s *AssignmentService) Create(ctx context.Context, createdBy uint, req CreateAssignmentReq) (*AssignmentWithFanOut, error) {
	cfg := s.Settings.Get()
	loc := cfg.Location()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, util.InvalidInputf("title is required")
	}
	groups := cleanGroups(req.GroupNames)
	if len(groups) == 0 {
		return nil, util.InvalidInputf("at least one group is required")
	}

	dateKey := strings.TrimSpace(req.DateKey)
	if dateKey == "" {
		dateKey = s.now().In(loc).Format(dateKeyLayout)
	}
	day, err := time.ParseInLocation(dateKeyLayout, dateKey, loc)
	if err != nil {
		return nil, util.InvalidInputf("dateKey must be YYYY-MM-DD, got %q", req.DateKey)
	}
	hour := cfg.VisibleHour
	if req.VisibleHour != nil {
		hour = *req.VisibleHour
	}
	if hour < 0 || hour > 23 {
		return nil, util.InvalidInputf("visibleHour must be within 0..23")
	}
	visibleFrom := day.Add(time.Duration(hour) * time.Hour)
	dueAt := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, loc)
	if req.DueAt != nil {
		dueAt = *req.DueAt
	}
	if !dueAt.After(visibleFrom) {
		return nil, util.InvalidInputf("dueAt must be after visibleFrom")
	}

	items, err := s.buildItems(ctx, req.QuestionIDs, req.PointsPerQuestion)
	if err != nil {
		return nil, err
	}

	a := &model.Assignment{
		DateKey:      dateKey,
		Title:        title,
		Instructions: req.Instructions,
		GroupNames:   groups,
		Items:        items,
		VisibleFrom:  visibleFrom,
		DueAt:        dueAt,
		CreatedBy:    createdBy,
		IsPublished:  req.PublishNow,
		AutoPublish:  req.AutoPublish && !req.PublishNow,
	}
	if err := s.Assignments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	res, err := s.Distribution.FanOutAssignment(ctx, a)
	if err != nil {
		return nil, err
	}
	return &AssignmentWithFanOut{Assignment: a, FanOut: res}, nil
}

// buildItems 按给定顺序去重，所有题目必须存在
func (s *AssignmentService) buildItems(ctx context.Context, questionIDs []uint, pointsPerQuestion float64) ([]model.TemplateItem, error) {
	ids := uniqueIDs(questionIDs)
	if len(ids) == 0 {
		return nil, util.InvalidInputf("at least one question is required")
	}
	questions, err := questionMap(ctx, s.Questions, ids)
	if err != nil {
		return nil, err
	}
	var missing []string
	items := make([]model.TemplateItem, 0, len(ids))
	for _, id := range ids {
		q, ok := questions[id]
		if !ok {
			missing = append(missing, fmt.Sprint(id))
			continue
		}
		points := q.Points
		if pointsPerQuestion > 0 {
			points = pointsPerQuestion
		}
		if points <= 0 {
			points = 1
		}
		items = append(items, model.TemplateItem{QuestionID: id, Points: points})
	}
	if len(missing) > 0 {
		return nil, util.InvalidInputf("unknown questions: %s", strings.Join(missing, ","))
	}
	return items, nil
}

// Publish 发布并再次分发，班级里新加入的学生也会拿到副本
func (s *AssignmentService) Publish(ctx context.Context, id uint) (*AssignmentWithFanOut, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.IsPublished = true
	a.AutoPublish = false
	if err := s.Assignments.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("publish assignment %d: %w", id, err)
	}
	res, err := s.Distribution.FanOutAssignment(ctx, a)
	if err != nil {
		return nil, err
	}
	// 新补发的副本要反映到统计里
	s.invalidate(ctx, id)
	return &AssignmentWithFanOut{Assignment: a, FanOut: res}, nil
}

func (s *AssignmentService) Unpublish(ctx context.Context, id uint) (*model.Assignment, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.IsPublished = false
	if err := s.Assignments.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("unpublish assignment %d: %w", id, err)
	}
	s.invalidate(ctx, id)
	return a, nil
}

func (s *AssignmentService) Update(ctx context.Context, id uint, req UpdateAssignmentReq) (*model.Assignment, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.QuestionIDs != nil {
		n, err := s.Copies.CountByTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, util.ErrItemsLocked
		}
		items, err := s.buildItems(ctx, req.QuestionIDs, 0)
		if err != nil {
			return nil, err
		}
		a.Items = items
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			return nil, util.InvalidInputf("title is required")
		}
		a.Title = t
	}
	if req.Instructions != nil {
		a.Instructions = *req.Instructions
	}
	if req.GroupNames != nil {
		groups := cleanGroups(req.GroupNames)
		if len(groups) == 0 {
			return nil, util.InvalidInputf("at least one group is required")
		}
		a.GroupNames = groups
	}
	if req.VisibleFrom != nil {
		a.VisibleFrom = *req.VisibleFrom
	}
	if req.DueAt != nil {
		a.DueAt = *req.DueAt
	}
	if req.AutoPublish != nil {
		a.AutoPublish = *req.AutoPublish && !a.IsPublished
	}
	if !a.DueAt.After(a.VisibleFrom) {
		return nil, util.InvalidInputf("dueAt must be after visibleFrom")
	}

	if err := s.Assignments.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("update assignment %d: %w", id, err)
	}
	s.invalidate(ctx, id)
	return a, nil
}

func (s *AssignmentService) List(ctx context.Context, dateKey string) ([]AssignmentSummary, error) {
	list, err := s.Assignments.List(ctx, strings.TrimSpace(dateKey))
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]AssignmentSummary, 0, len(list))
	for i := range list {
		n, err := s.Copies.CountByTemplate(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, AssignmentSummary{
			Assignment:    list[i],
			QuestionCount: len(list[i].Items),
			CopyCount:     n,
			Window:        list[i].Window(now),
		})
	}
	return out, nil
}

// Detail 管理端详情，包含标准答案
func (s *AssignmentService) Detail(ctx context.Context, id uint) (*AssignmentDetail, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := questionMap(ctx, s.Questions, a.QuestionIDs())
	if err != nil {
		return nil, err
	}
	n, err := s.Copies.CountByTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	ordered := make([]model.Question, 0, len(a.Items))
	for _, it := range a.Items {
		if q, ok := questions[it.QuestionID]; ok {
			ordered = append(ordered, *q)
		}
	}
	return &AssignmentDetail{Assignment: a, Questions: ordered, Window: a.Window(s.now()), CopyCount: n}, nil
}

func (s *AssignmentService) Delete(ctx context.Context, id uint) error {
	if err := s.Assignments.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// KeyCheck 列出每道题是否有标准答案，没有的题在统计中会计为未判分
func (s *AssignmentService) KeyCheck(ctx context.Context, id uint) (*KeyCheckResult, error) {
	a, err := s.Assignments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := questionMap(ctx, s.Questions, a.QuestionIDs())
	if err != nil {
		return nil, err
	}
	res := &KeyCheckResult{Items: make([]KeyCoverage, 0, len(a.Items))}
	for _, it := range a.Items {
		kc := KeyCoverage{QuestionID: it.QuestionID}
		if q, ok := questions[it.QuestionID]; ok {
			kc.Exists = true
			kc.Format = q.Format
			kc.HasKey = q.HasKey()
		}
		if !kc.HasKey {
			res.Missing++
		}
		res.Items = append(res.Items, kc)
	}
	return res, nil
}

// PublishDue 发布已到可见时间的自动发布作业，由后台定时调用
func (s *AssignmentService) PublishDue(ctx context.Context) (int, error) {
	due, err := s.Assignments.FindDueForPublish(ctx, s.now())
	if err != nil {
		return 0, err
	}
	published := 0
	for _, a := range due {
		res, err := s.Publish(ctx, a.ID)
		if err != nil {
			logger.Log.Error("Scheduled publish failed", zap.Uint("assignmentID", a.ID), zap.Error(err))
			continue
		}
		published++
		logger.Log.Info("Assignment published on schedule",
			zap.Uint("assignmentID", a.ID),
			zap.Int("inserted", res.FanOut.InsertedCount))
	}
	return published, nil
}

// StudentBox 学生自己的作业列表，只含已发布的作业
func (s *AssignmentService) StudentBox(ctx context.Context, studentID uint) ([]StudentBoxEntry, error) {
	copies, err := s.Copies.FindByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(copies))
	for _, c := range copies {
		ids = append(ids, c.AssignmentID)
	}
	templates, err := s.Assignments.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*model.Assignment, len(templates))
	for i := range templates {
		byID[templates[i].ID] = &templates[i]
	}

	now := s.now()
	out := make([]StudentBoxEntry, 0, len(copies))
	for i := range copies {
		sa := &copies[i]
		a, ok := byID[sa.AssignmentID]
		if !ok || !a.IsPublished {
			continue
		}
		entry := StudentBoxEntry{
			CopyID:         sa.ID,
			AssignmentID:   a.ID,
			Title:          a.Title,
			DateKey:        a.DateKey,
			QuestionCount:  len(sa.Items),
			CompletedCount: sa.CompletedCount,
			Status:         sa.Status,
			RedoCount:      sa.RedoCount(),
			Window:         a.Window(now),
		}
		if last, ok := sa.Finishes.Last(); ok {
			p := last.SnapshotPercent
			entry.LastPercent = &p
		}
		out = append(out, entry)
	}
	return out, nil
}

// CopyView 学生查看自己的副本，附带题目信息但不含答案
func (s *AssignmentService) CopyView(ctx context.Context, copyID, studentID uint) (*StudentCopyView, error) {
	sa, err := loadOwnedCopy(ctx, s.Copies, copyID, studentID)
	if err != nil {
		return nil, err
	}
	a, err := s.Assignments.FindByID(ctx, sa.AssignmentID)
	if err != nil {
		return nil, err
	}
	if !a.IsPublished {
		return nil, util.ErrNotPublished
	}
	ids := make([]uint, 0, len(sa.Items))
	for _, it := range sa.Items {
		ids = append(ids, it.QuestionID)
	}
	questions, err := questionMap(ctx, s.Questions, ids)
	if err != nil {
		return nil, err
	}

	view := &StudentCopyView{
		CopyID:         sa.ID,
		AssignmentID:   a.ID,
		Title:          a.Title,
		Instructions:   a.Instructions,
		Status:         sa.Status,
		CompletedCount: sa.CompletedCount,
		ScorePercent:   sa.ScorePercent,
		Finishes:       sa.Finishes,
		Window:         a.Window(s.now()),
		Items:          studentItems(sa.Items, questions),
	}
	return view, nil
}

func studentItems(items []model.WorkItem, questions map[uint]*model.Question) []StudentItemView {
	out := make([]StudentItemView, 0, len(items))
	for _, it := range items {
		v := StudentItemView{WorkItem: it}
		if q, ok := questions[it.QuestionID]; ok {
			v.Format = q.Format
			v.Category = q.Category
			v.Difficulty = q.Difficulty
			v.ImageURL = q.ImageURL
		}
		out = append(out, v)
	}
	return out
}

func (s *AssignmentService) invalidate(ctx context.Context, id uint) {
	if err := s.Cache.Invalidate(ctx, statsKey("assignment", id)); err != nil {
		logger.Log.Warn("Failed to invalidate stats cache", zap.Uint("assignmentID", id), zap.Error(err))
	}
}

func cleanGroups(groups []string) []string {
	seen := make(map[string]bool, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
