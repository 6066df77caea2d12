package service

import (
	"classwork_backend/internal/model"
	"context"
	"time"
)

// RosterLookup 按班级取当前学生名单
type RosterLookup interface {
	StudentsInGroups(ctx context.Context, groups []string) ([]model.RosterEntry, error)
}

// QuestionBank 判分时只读的题库
type QuestionBank interface {
	FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error)
}

type QuestionStore interface {
	QuestionBank
	Create(ctx context.Context, q *model.Question) error
	FindByID(ctx context.Context, id uint) (*model.Question, error)
	UpdateKey(ctx context.Context, q *model.Question) error
	FindForSelection(ctx context.Context, format model.QuestionFormat, category model.QuestionCategory, difficulty model.Difficulty, limit int, exclude []uint) ([]model.Question, error)
}

type AssignmentStore interface {
	Create(ctx context.Context, a *model.Assignment) error
	FindByID(ctx context.Context, id uint) (*model.Assignment, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Assignment, error)
	Update(ctx context.Context, a *model.Assignment) error
	List(ctx context.Context, dateKey string) ([]model.Assignment, error)
	FindDueForPublish(ctx context.Context, now time.Time) ([]model.Assignment, error)
	Delete(ctx context.Context, id uint) error
}

type StudentAssignmentStore interface {
	InsertIgnoreDuplicate(ctx context.Context, sa *model.StudentAssignment) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.StudentAssignment, error)
	FindByTemplate(ctx context.Context, assignmentID uint) ([]model.StudentAssignment, error)
	FindByStudent(ctx context.Context, studentID uint) ([]model.StudentAssignment, error)
	CountByTemplate(ctx context.Context, assignmentID uint) (int64, error)
	Update(ctx context.Context, sa *model.StudentAssignment) error
}

type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	FindByID(ctx context.Context, id uint) (*model.Exam, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Exam, error)
	Update(ctx context.Context, e *model.Exam) error
	List(ctx context.Context) ([]model.Exam, error)
	Delete(ctx context.Context, id uint) error
}

type ExamPaperStore interface {
	InsertIgnoreDuplicate(ctx context.Context, p *model.ExamPaper) (bool, error)
	FindByID(ctx context.Context, id uint) (*model.ExamPaper, error)
	FindLatestByStudent(ctx context.Context, studentID uint) (*model.ExamPaper, error)
	FindByTemplate(ctx context.Context, examID uint) ([]model.ExamPaper, error)
	FindCompletedByStudent(ctx context.Context, studentID uint) ([]model.ExamPaper, error)
	Update(ctx context.Context, p *model.ExamPaper) error
}

// StatsCache 统计结果缓存，未启用时用空实现
type StatsCache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
