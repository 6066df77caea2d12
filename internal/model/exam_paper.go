package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExamPaper 学生的考试答卷，(exam, student) 唯一。每次交卷覆盖分数，不保留历史
type ExamPaper struct {
	BaseModel
	ExamID         uint                          `gorm:"not null;uniqueIndex:idx_ep_exam_student" json:"examId"`
	StudentID      uint                          `gorm:"not null;uniqueIndex:idx_ep_exam_student;index" json:"studentId"`
	Items          datatypes.JSONSlice[WorkItem] `json:"items"`
	CompletedCount int                           `json:"completedCount"`
	ScorePart1     float64                       `json:"scorePart1"`
	ScorePart2     float64                       `json:"scorePart2"`
	ScorePart3     float64                       `json:"scorePart3"`
	TotalScore     float64                       `json:"totalScore"`
	StartedAt      *time.Time                    `json:"startedAt"`
	FinishedAt     *time.Time                    `json:"finishedAt"`
	Status         CopyStatus                    `gorm:"size:16;default:'assigned'" json:"status"`
	Version        int                           `gorm:"not null;default:0" json:"-"`
}

func (ExamPaper) TableName() string {
	return "exam_papers"
}

func NewExamPaper(e *Exam, studentID uint) *ExamPaper {
	return &ExamPaper{
		ExamID:    e.ID,
		StudentID: studentID,
		Items:     NewWorkItems(e.Items),
		Status:    CopyAssigned,
	}
}

func (p *ExamPaper) ItemIndex(questionID uint) int {
	return itemIndex(p.Items, questionID)
}

func (p *ExamPaper) RecountCompleted() {
	p.CompletedCount = countDone(p.Items)
}
