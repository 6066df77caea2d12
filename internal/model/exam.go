package model

import (
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
)

// DifficultyCounts 每个难度要抽取的题数
type DifficultyCounts struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

func (d DifficultyCounts) Of(level Difficulty) int {
	switch level {
	case DifficultyEasy:
		return d.Easy
	case DifficultyMedium:
		return d.Medium
	case DifficultyHard:
		return d.Hard
	}
	return 0
}

// QuestionsConfig 按类别与难度给出抽题数量
type QuestionsConfig struct {
	Math     DifficultyCounts `json:"math"`
	Geometry DifficultyCounts `json:"geometry"`
}

func (c QuestionsConfig) Of(category QuestionCategory) DifficultyCounts {
	if category == CategoryGeometry {
		return c.Geometry
	}
	return c.Math
}

// ExamPart 试卷的一个部分。负分只作用于第 1 部分
type ExamPart struct {
	Index           int             `json:"index"`
	Format          QuestionFormat  `json:"format"`
	QuestionsConfig QuestionsConfig `json:"questionsConfig"`
	Scale           float64         `json:"scale"`
	NegativeMarking bool            `json:"negativeMarking"`
}

// EffectiveScale 未设置或非正的系数按 1 处理
func (p ExamPart) EffectiveScale() float64 {
	if p.Scale <= 0 {
		return 1
	}
	return p.Scale
}

type Exam struct {
	BaseModel
	Title           string                            `gorm:"size:255;not null" json:"title"`
	ClassLevel      int                               `json:"classLevel"`
	GroupNames      datatypes.JSONSlice[string]       `json:"groupNames"`
	StartsAt        time.Time                         `gorm:"index" json:"startsAt"`
	DurationSec     int                               `json:"durationSec"`
	Parts           datatypes.JSONSlice[ExamPart]     `json:"parts"`
	Items           datatypes.JSONSlice[TemplateItem] `json:"items"`
	SolutionsPDFURL string                            `gorm:"size:512" json:"solutionsPdfUrl"`
	CreatedBy       uint                              `gorm:"index" json:"createdBy"`
	IsPublished     bool                              `gorm:"default:false;index" json:"isPublished"`
	Status          ExamStatus                        `gorm:"size:16;default:'draft'" json:"status"`
}

func (Exam) TableName() string {
	return "exams"
}

func (e *Exam) EndsAt() time.Time {
	return e.StartsAt.Add(time.Duration(e.DurationSec) * time.Second)
}

func (e *Exam) Window(now time.Time) WindowState {
	return windowAt(e.IsPublished, e.StartsAt, e.EndsAt(), now)
}

// RemainingSeconds 考试剩余秒数，未开始或已结束时为 0
func (e *Exam) RemainingSeconds(now time.Time) int {
	if now.Before(e.StartsAt) {
		return 0
	}
	left := e.EndsAt().Sub(now)
	if left <= 0 {
		return 0
	}
	return int(left / time.Second)
}

// Part 按编号取部分配置，缺失时返回系数为 1 的空配置
func (e *Exam) Part(index int) ExamPart {
	for _, p := range e.Parts {
		if p.Index == index {
			return p
		}
	}
	return ExamPart{Index: index, Scale: 1}
}

func (e *Exam) QuestionIDs() []uint {
	return templateQuestionIDs(e.Items)
}
