package service

import (
	"classwork_backend/internal/config"
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"
)

var testNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testSettings() *GradingSettings {
	return NewGradingSettings(config.GradingConfig{
		Timezone:      "Asia/Baku",
		VisibleHour:   6,
		StatsCacheTTL: time.Minute,
		UpdateRetries: 3,
	})
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// ---- roster ----

type fakeRoster struct {
	mu       sync.Mutex
	students []model.RosterEntry
	err      error
}

func (f *fakeRoster) add(id uint, name, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students = append(f.students, model.RosterEntry{ID: id, FullName: name, Group: group})
}

func (f *fakeRoster) move(id uint, group string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.students {
		if f.students[i].ID == id {
			f.students[i].Group = group
		}
	}
}

func (f *fakeRoster) StudentsInGroups(ctx context.Context, groups []string) ([]model.RosterEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	want := map[string]bool{}
	for _, g := range groups {
		want[g] = true
	}
	var out []model.RosterEntry
	for _, s := range f.students {
		if want[s.Group] {
			out = append(out, s)
		}
	}
	return out, nil
}

// ---- questions ----

type fakeQuestions struct {
	mu   sync.Mutex
	byID map[uint]model.Question
	next uint
}

func newFakeQuestions() *fakeQuestions {
	return &fakeQuestions{byID: map[uint]model.Question{}}
}

func (f *fakeQuestions) Create(ctx context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	q.ID = f.next
	f.byID[q.ID] = *q
	return nil
}

func (f *fakeQuestions) mustCreate(t *testing.T, q model.Question) uint {
	t.Helper()
	if q.Points == 0 {
		q.Points = 1
	}
	if err := f.Create(context.Background(), &q); err != nil {
		t.Fatal(err)
	}
	return q.ID
}

func (f *fakeQuestions) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.byID[id]
	if !ok {
		return nil, util.ErrQuestionNotFound
	}
	return &q, nil
}

func (f *fakeQuestions) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Question
	for _, id := range ids {
		if q, ok := f.byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) UpdateKey(ctx context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[q.ID]
	if !ok {
		return util.ErrQuestionNotFound
	}
	cur.CorrectAnswer, cur.OpenAnswer, cur.CorrectMulti, cur.Points = q.CorrectAnswer, q.OpenAnswer, q.CorrectMulti, q.Points
	f.byID[q.ID] = cur
	return nil
}

func (f *fakeQuestions) FindForSelection(ctx context.Context, format model.QuestionFormat, category model.QuestionCategory, difficulty model.Difficulty, limit int, exclude []uint) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skip := map[uint]bool{}
	for _, id := range exclude {
		skip[id] = true
	}
	var ids []uint
	for id, q := range f.byID {
		if q.Format == format && q.Category == category && q.Difficulty == difficulty && !skip[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []model.Question
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, f.byID[id])
	}
	return out, nil
}

// ---- assignments ----

type fakeAssignments struct {
	mu   sync.Mutex
	byID map[uint]model.Assignment
	next uint
	// copies 用于级联删除
	copies *fakeCopies
}

func newFakeAssignments(copies *fakeCopies) *fakeAssignments {
	return &fakeAssignments{byID: map[uint]model.Assignment{}, copies: copies}
}

func (f *fakeAssignments) Create(ctx context.Context, a *model.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	a.ID = f.next
	f.byID[a.ID] = cloneAssignment(*a)
	return nil
}

func (f *fakeAssignments) FindByID(ctx context.Context, id uint) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, util.ErrTemplateNotFound
	}
	c := cloneAssignment(a)
	return &c, nil
}

func (f *fakeAssignments) FindByIDs(ctx context.Context, ids []uint) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assignment
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, cloneAssignment(a))
		}
	}
	return out, nil
}

func (f *fakeAssignments) Update(ctx context.Context, a *model.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[a.ID]; !ok {
		return util.ErrTemplateNotFound
	}
	f.byID[a.ID] = cloneAssignment(*a)
	return nil
}

func (f *fakeAssignments) List(ctx context.Context, dateKey string) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assignment
	for _, a := range f.byID {
		if dateKey == "" || a.DateKey == dateKey {
			out = append(out, cloneAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeAssignments) FindDueForPublish(ctx context.Context, now time.Time) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assignment
	for _, a := range f.byID {
		if a.AutoPublish && !a.IsPublished && !a.VisibleFrom.After(now) {
			out = append(out, cloneAssignment(a))
		}
	}
	return out, nil
}

func (f *fakeAssignments) Delete(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return util.ErrTemplateNotFound
	}
	delete(f.byID, id)
	if f.copies != nil {
		f.copies.deleteByTemplate(id)
	}
	return nil
}

func cloneAssignment(a model.Assignment) model.Assignment {
	a.GroupNames = append([]string(nil), a.GroupNames...)
	a.Items = append([]model.TemplateItem(nil), a.Items...)
	return a
}

// ---- working copies ----

type fakeCopies struct {
	mu      sync.Mutex
	byID    map[uint]model.StudentAssignment
	next    uint
	failFor map[uint]error
	// staleUpdates 模拟并发写：接下来 n 次 Update 返回 ErrStaleDocument
	staleUpdates int
	updates      int
}

func newFakeCopies() *fakeCopies {
	return &fakeCopies{byID: map[uint]model.StudentAssignment{}, failFor: map[uint]error{}}
}

func (f *fakeCopies) InsertIgnoreDuplicate(ctx context.Context, sa *model.StudentAssignment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[sa.StudentID]; err != nil {
		return false, err
	}
	for _, existing := range f.byID {
		if existing.AssignmentID == sa.AssignmentID && existing.StudentID == sa.StudentID {
			return false, nil
		}
	}
	f.next++
	sa.ID = f.next
	f.byID[sa.ID] = cloneCopy(*sa)
	return true, nil
}

func (f *fakeCopies) FindByID(ctx context.Context, id uint) (*model.StudentAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sa, ok := f.byID[id]
	if !ok {
		return nil, util.ErrCopyNotFound
	}
	c := cloneCopy(sa)
	return &c, nil
}

func (f *fakeCopies) FindByTemplate(ctx context.Context, assignmentID uint) ([]model.StudentAssignment, error) {
	return f.filter(func(sa model.StudentAssignment) bool { return sa.AssignmentID == assignmentID }), nil
}

func (f *fakeCopies) FindByStudent(ctx context.Context, studentID uint) ([]model.StudentAssignment, error) {
	return f.filter(func(sa model.StudentAssignment) bool { return sa.StudentID == studentID }), nil
}

func (f *fakeCopies) CountByTemplate(ctx context.Context, assignmentID uint) (int64, error) {
	list, _ := f.FindByTemplate(ctx, assignmentID)
	return int64(len(list)), nil
}

func (f *fakeCopies) Update(ctx context.Context, sa *model.StudentAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[sa.ID]
	if !ok {
		return util.ErrCopyNotFound
	}
	if f.staleUpdates > 0 {
		f.staleUpdates--
		cur.Version++
		f.byID[sa.ID] = cur
		return util.ErrStaleDocument
	}
	if cur.Version != sa.Version {
		return util.ErrStaleDocument
	}
	sa.Version++
	f.updates++
	f.byID[sa.ID] = cloneCopy(*sa)
	return nil
}

func (f *fakeCopies) filter(keep func(model.StudentAssignment) bool) []model.StudentAssignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.StudentAssignment
	for _, sa := range f.byID {
		if keep(sa) {
			out = append(out, cloneCopy(sa))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeCopies) deleteByTemplate(assignmentID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sa := range f.byID {
		if sa.AssignmentID == assignmentID {
			delete(f.byID, id)
		}
	}
}

func (f *fakeCopies) forStudent(t *testing.T, assignmentID, studentID uint) model.StudentAssignment {
	t.Helper()
	for _, sa := range f.filter(func(sa model.StudentAssignment) bool {
		return sa.AssignmentID == assignmentID && sa.StudentID == studentID
	}) {
		return sa
	}
	t.Fatalf("no copy for assignment %d student %d", assignmentID, studentID)
	return model.StudentAssignment{}
}

func cloneCopy(sa model.StudentAssignment) model.StudentAssignment {
	sa.Items = cloneItems(sa.Items)
	return sa
}

func cloneItems(items []model.WorkItem) []model.WorkItem {
	if items == nil {
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		panic(err)
	}
	var out []model.WorkItem
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return out
}

// ---- exams ----

type fakeExams struct {
	mu   sync.Mutex
	byID map[uint]model.Exam
	next uint
}

func newFakeExams() *fakeExams {
	return &fakeExams{byID: map[uint]model.Exam{}}
}

func (f *fakeExams) Create(ctx context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	e.ID = f.next
	f.byID[e.ID] = cloneExam(*e)
	return nil
}

func (f *fakeExams) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, util.ErrTemplateNotFound
	}
	c := cloneExam(e)
	return &c, nil
}

func (f *fakeExams) FindByIDs(ctx context.Context, ids []uint) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, id := range ids {
		if e, ok := f.byID[id]; ok {
			out = append(out, cloneExam(e))
		}
	}
	return out, nil
}

func (f *fakeExams) Update(ctx context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[e.ID]; !ok {
		return util.ErrTemplateNotFound
	}
	f.byID[e.ID] = cloneExam(*e)
	return nil
}

func (f *fakeExams) List(ctx context.Context) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, e := range f.byID {
		out = append(out, cloneExam(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeExams) Delete(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return util.ErrTemplateNotFound
	}
	delete(f.byID, id)
	return nil
}

func cloneExam(e model.Exam) model.Exam {
	e.GroupNames = append([]string(nil), e.GroupNames...)
	e.Parts = append([]model.ExamPart(nil), e.Parts...)
	e.Items = append([]model.TemplateItem(nil), e.Items...)
	return e
}

// ---- exam papers ----

type fakePapers struct {
	mu   sync.Mutex
	byID map[uint]model.ExamPaper
	next uint
}

func newFakePapers() *fakePapers {
	return &fakePapers{byID: map[uint]model.ExamPaper{}}
}

func (f *fakePapers) InsertIgnoreDuplicate(ctx context.Context, p *model.ExamPaper) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.ExamID == p.ExamID && existing.StudentID == p.StudentID {
			return false, nil
		}
	}
	f.next++
	p.ID = f.next
	p.CreatedAt = testNow.Add(time.Duration(f.next) * time.Second)
	f.byID[p.ID] = clonePaper(*p)
	return true, nil
}

func (f *fakePapers) FindByID(ctx context.Context, id uint) (*model.ExamPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, util.ErrCopyNotFound
	}
	c := clonePaper(p)
	return &c, nil
}

func (f *fakePapers) FindLatestByStudent(ctx context.Context, studentID uint) (*model.ExamPaper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.ExamPaper
	for _, p := range f.byID {
		if p.StudentID != studentID {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			c := clonePaper(p)
			latest = &c
		}
	}
	if latest == nil {
		return nil, util.ErrCopyNotFound
	}
	return latest, nil
}

func (f *fakePapers) FindByTemplate(ctx context.Context, examID uint) ([]model.ExamPaper, error) {
	return f.filter(func(p model.ExamPaper) bool { return p.ExamID == examID }), nil
}

func (f *fakePapers) FindCompletedByStudent(ctx context.Context, studentID uint) ([]model.ExamPaper, error) {
	return f.filter(func(p model.ExamPaper) bool {
		return p.StudentID == studentID && p.Status == model.CopyCompleted
	}), nil
}

func (f *fakePapers) Update(ctx context.Context, p *model.ExamPaper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.byID[p.ID]
	if !ok {
		return util.ErrCopyNotFound
	}
	if cur.Version != p.Version {
		return util.ErrStaleDocument
	}
	p.Version++
	f.byID[p.ID] = clonePaper(*p)
	return nil
}

func (f *fakePapers) filter(keep func(model.ExamPaper) bool) []model.ExamPaper {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ExamPaper
	for _, p := range f.byID {
		if keep(p) {
			out = append(out, clonePaper(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakePapers) forStudent(t *testing.T, examID, studentID uint) model.ExamPaper {
	t.Helper()
	for _, p := range f.filter(func(p model.ExamPaper) bool { return p.ExamID == examID && p.StudentID == studentID }) {
		return p
	}
	t.Fatalf("no paper for exam %d student %d", examID, studentID)
	return model.ExamPaper{}
}

func clonePaper(p model.ExamPaper) model.ExamPaper {
	p.Items = cloneItems(p.Items)
	return p
}

// ---- cache & storage ----

type memoryCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.invalidated = append(c.invalidated, k)
	}
	return nil
}

type memoryStorage struct {
	objects map[string][]byte
	err     error
}

func (m *memoryStorage) Upload(ctx context.Context, name string, reader io.Reader, size int64, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[name] = data
	return "mem://" + name, nil
}

func (m *memoryStorage) Delete(ctx context.Context, name string) error {
	if _, ok := m.objects[name]; !ok {
		return errors.New("no such object")
	}
	delete(m.objects, name)
	return nil
}

func (m *memoryStorage) GetURL(name string) string { return "mem://" + name }

// ---- fixture ----

type fixture struct {
	roster       *fakeRoster
	questions    *fakeQuestions
	copies       *fakeCopies
	assignments  *fakeAssignments
	exams        *fakeExams
	papers       *fakePapers
	cache        *memoryCache
	settings     *GradingSettings
	distribution *DistributionService
	answers      *AnswerService
	finish       *FinishService
	scoring      *ExamScoringService
	analytics    *AnalyticsService
	assignSvc    *AssignmentService
	examSvc      *ExamService
}

func newFixture() *fixture {
	f := &fixture{
		roster:    &fakeRoster{},
		questions: newFakeQuestions(),
		copies:    newFakeCopies(),
		exams:     newFakeExams(),
		papers:    newFakePapers(),
		cache:     newMemoryCache(),
		settings:  testSettings(),
	}
	f.assignments = newFakeAssignments(f.copies)
	f.distribution = NewDistributionService(f.roster, f.copies, f.papers)

	f.answers = NewAnswerService(f.assignments, f.copies, f.exams, f.papers, f.questions, f.settings)
	f.answers.now = fixedClock
	f.finish = NewFinishService(f.assignments, f.copies, f.questions, f.cache, f.settings)
	f.finish.now = fixedClock
	f.scoring = NewExamScoringService(f.exams, f.papers, f.questions, f.cache, f.settings)
	f.scoring.now = fixedClock
	f.analytics = NewAnalyticsService(f.assignments, f.copies, f.exams, f.papers, f.roster, f.cache, f.settings)
	f.assignSvc = NewAssignmentService(f.assignments, f.copies, f.questions, f.distribution, f.cache, f.settings)
	f.assignSvc.now = fixedClock
	f.examSvc = NewExamService(f.exams, f.papers, f.questions, f.distribution, f.cache, f.settings)
	f.examSvc.now = fixedClock
	return f
}

// publishedAssignment 直接写入一份已发布、窗口覆盖 testNow 的作业并分发
func (f *fixture) publishedAssignment(t *testing.T, groups []string, items ...model.TemplateItem) *model.Assignment {
	t.Helper()
	a := &model.Assignment{
		Title:       "Daily practice",
		DateKey:     testNow.Format(dateKeyLayout),
		GroupNames:  groups,
		Items:       items,
		VisibleFrom: testNow.Add(-2 * time.Hour),
		DueAt:       testNow.Add(10 * time.Hour),
		IsPublished: true,
	}
	if err := f.assignments.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if _, err := f.distribution.FanOutAssignment(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a
}
