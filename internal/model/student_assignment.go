package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type ItemStatus string

const (
	ItemTodo ItemStatus = "todo"
	ItemDone ItemStatus = "done"
)

type CopyStatus string

const (
	CopyAssigned   CopyStatus = "assigned"
	CopyInProgress CopyStatus = "in-progress"
	CopyCompleted  CopyStatus = "completed"
)

// WorkItem 学生副本中的一道题的作答状态。IsCorrect 为 nil 表示题目没有标准答案
type WorkItem struct {
	QuestionID   uint       `json:"questionId"`
	PartIndex    int        `json:"partIndex,omitempty"`
	Status       ItemStatus `json:"status"`
	Answer       *Answer    `json:"answer,omitempty"`
	IsCorrect    *bool      `json:"isCorrect"`
	Points       float64    `json:"points"`
	PointsEarned float64    `json:"pointsEarned"`
	Attempts     int        `json:"attempts"`
	AnsweredAt   *time.Time `json:"answeredAt,omitempty"`
}

// IsBlank 未完成，或完成但答案为空
func (w *WorkItem) IsBlank() bool {
	return w.Status != ItemDone || w.Answer.IsEmpty()
}

// FinishSnapshot 一次“完成”时记录的分数
type FinishSnapshot struct {
	At              time.Time `json:"at"`
	SnapshotPercent float64   `json:"snapshotPercent"`
}

// FinishLog 只能追加的完成记录。第一条是首次成绩，最后一条是当前成绩
type FinishLog struct {
	entries []FinishSnapshot
}

func (l *FinishLog) Append(s FinishSnapshot) {
	// 截断容量，避免与其他副本共享底层数组
	l.entries = append(l.entries[:len(l.entries):len(l.entries)], s)
}

func (l FinishLog) Len() int {
	return len(l.entries)
}

func (l FinishLog) First() (FinishSnapshot, bool) {
	if len(l.entries) == 0 {
		return FinishSnapshot{}, false
	}
	return l.entries[0], true
}

func (l FinishLog) Last() (FinishSnapshot, bool) {
	if len(l.entries) == 0 {
		return FinishSnapshot{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// All 返回记录的拷贝
func (l FinishLog) All() []FinishSnapshot {
	out := make([]FinishSnapshot, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l FinishLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *FinishLog) UnmarshalJSON(data []byte) error {
	var entries []FinishSnapshot
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.entries = entries
	return nil
}

func (l FinishLog) Value() (driver.Value, error) {
	b, err := l.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *FinishLog) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return l.UnmarshalJSON(v)
	case string:
		return l.UnmarshalJSON([]byte(v))
	case nil:
		l.entries = nil
		return nil
	}
	return fmt.Errorf("unsupported FinishLog source %T", value)
}

func (FinishLog) GormDataType() string {
	return "json"
}

// StudentAssignment 学生的作业副本，(assignment, student) 唯一
type StudentAssignment struct {
	BaseModel
	AssignmentID   uint                          `gorm:"not null;uniqueIndex:idx_sa_assignment_student" json:"assignmentId"`
	StudentID      uint                          `gorm:"not null;uniqueIndex:idx_sa_assignment_student;index" json:"studentId"`
	Items          datatypes.JSONSlice[WorkItem] `json:"items"`
	TotalPoints    float64                       `json:"totalPoints"`
	PointsEarned   float64                       `json:"pointsEarned"`
	ScorePercent   *float64                      `json:"scorePercent"`
	CompletedCount int                           `json:"completedCount"`
	Status         CopyStatus                    `gorm:"size:16;default:'assigned'" json:"status"`
	Finishes       FinishLog                     `json:"finishes"`
	Version        int                           `gorm:"not null;default:0" json:"-"`
}

func (StudentAssignment) TableName() string {
	return "student_assignments"
}

// NewStudentAssignment 由模板生成一份空白副本
func NewStudentAssignment(a *Assignment, studentID uint) *StudentAssignment {
	return &StudentAssignment{
		AssignmentID: a.ID,
		StudentID:    studentID,
		Items:        NewWorkItems(a.Items),
		TotalPoints:  a.TotalPoints(),
		Status:       CopyAssigned,
	}
}

// ItemIndex 返回题目在副本中的位置，不存在时为 -1
func (s *StudentAssignment) ItemIndex(questionID uint) int {
	return itemIndex(s.Items, questionID)
}

func (s *StudentAssignment) RecountCompleted() {
	s.CompletedCount = countDone(s.Items)
}

// SumEarned 重新累计得分
func (s *StudentAssignment) SumEarned() {
	var earned float64
	for _, it := range s.Items {
		earned += it.PointsEarned
	}
	s.PointsEarned = earned
}

// LatestPercent 最近一次完成的成绩，其次是 scorePercent，再次按得分比例，都没有时为 0
func (s *StudentAssignment) LatestPercent() float64 {
	if last, ok := s.Finishes.Last(); ok {
		return last.SnapshotPercent
	}
	if s.ScorePercent != nil {
		return *s.ScorePercent
	}
	if s.TotalPoints > 0 {
		return s.PointsEarned / s.TotalPoints * 100
	}
	return 0
}

// RedoCount 重做次数，从未完成时为 0
func (s *StudentAssignment) RedoCount() int {
	if s.Finishes.Len() == 0 {
		return 0
	}
	return s.Finishes.Len() - 1
}

func itemIndex(items []WorkItem, questionID uint) int {
	for i := range items {
		if items[i].QuestionID == questionID {
			return i
		}
	}
	return -1
}

func countDone(items []WorkItem) int {
	n := 0
	for _, it := range items {
		if it.Status == ItemDone {
			n++
		}
	}
	return n
}
