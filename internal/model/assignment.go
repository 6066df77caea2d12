package model

import (
	"time"

	"gorm.io/datatypes"
)

// TemplateItem 模板中的一道题及其分值，分发时原样复制到学生副本
type TemplateItem struct {
	QuestionID uint    `json:"questionId"`
	Points     float64 `json:"points"`
	PartIndex  int     `json:"partIndex,omitempty"`
}

type WindowPhase string

const (
	PhaseDraft     WindowPhase = "draft"
	PhaseScheduled WindowPhase = "scheduled"
	PhaseOpen      WindowPhase = "open"
	PhaseClosed    WindowPhase = "closed"
)

// WindowState 模板在某一时刻的发布与时间窗口状态
type WindowState struct {
	Published bool        `json:"published"`
	Phase     WindowPhase `json:"phase"`
	OpensAt   time.Time   `json:"opensAt"`
	ClosesAt  time.Time   `json:"closesAt"`
}

// AcceptsAnswers 已发布且处于窗口内
func (w WindowState) AcceptsAnswers() bool {
	return w.Published && w.Phase == PhaseOpen
}

func windowAt(published bool, opens, closes, now time.Time) WindowState {
	w := WindowState{Published: published, OpensAt: opens, ClosesAt: closes}
	switch {
	case !published:
		w.Phase = PhaseDraft
	case now.Before(opens):
		w.Phase = PhaseScheduled
	case !closes.IsZero() && now.After(closes):
		w.Phase = PhaseClosed
	default:
		w.Phase = PhaseOpen
	}
	return w
}

// Assignment 每日作业模板
type Assignment struct {
	BaseModel
	DateKey      string                           `gorm:"size:10;index" json:"dateKey"`
	Title        string                           `gorm:"size:255;not null" json:"title"`
	Instructions string                           `gorm:"type:text" json:"instructions"`
	GroupNames   datatypes.JSONSlice[string]       `json:"groupNames"`
	Items        datatypes.JSONSlice[TemplateItem] `json:"items"`
	VisibleFrom  time.Time                        `gorm:"index" json:"visibleFrom"`
	DueAt        time.Time                        `gorm:"index" json:"dueAt"`
	CreatedBy    uint                             `gorm:"index" json:"createdBy"`
	IsPublished  bool                             `gorm:"default:false;index" json:"isPublished"`
	AutoPublish  bool                             `gorm:"default:false;index" json:"autoPublish"`
}

func (Assignment) TableName() string {
	return "assignments"
}

func (a *Assignment) Window(now time.Time) WindowState {
	return windowAt(a.IsPublished, a.VisibleFrom, a.DueAt, now)
}

func (a *Assignment) TotalPoints() float64 {
	var total float64
	for _, it := range a.Items {
		total += it.Points
	}
	return total
}

func (a *Assignment) QuestionIDs() []uint {
	return templateQuestionIDs(a.Items)
}

func templateQuestionIDs(items []TemplateItem) []uint {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.QuestionID)
	}
	return ids
}

// NewWorkItems 按模板题目生成全新的作答项，进度字段全部清零
func NewWorkItems(items []TemplateItem) []WorkItem {
	out := make([]WorkItem, len(items))
	for i, it := range items {
		out[i] = WorkItem{
			QuestionID: it.QuestionID,
			PartIndex:  it.PartIndex,
			Status:     ItemTodo,
			Points:     it.Points,
		}
	}
	return out
}
