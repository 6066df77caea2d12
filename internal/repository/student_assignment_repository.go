package repository

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StudentAssignmentRepository struct {
	DB *gorm.DB
}

func NewStudentAssignmentRepository(db *gorm.DB) *StudentAssignmentRepository {
	return &StudentAssignmentRepository{DB: db}
}

// InsertIgnoreDuplicate 插入副本；(assignment, student) 已存在时不报错，返回 false
func (r *StudentAssignmentRepository) InsertIgnoreDuplicate(ctx context.Context, sa *model.StudentAssignment) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sa)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *StudentAssignmentRepository) FindByID(ctx context.Context, id uint) (*model.StudentAssignment, error) {
	var sa model.StudentAssignment
	err := r.DB.WithContext(ctx).First(&sa, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCopyNotFound
	}
	return &sa, err
}

func (r *StudentAssignmentRepository) FindByTemplate(ctx context.Context, assignmentID uint) ([]model.StudentAssignment, error) {
	var list []model.StudentAssignment
	err := r.DB.WithContext(ctx).Where("assignment_id = ?", assignmentID).Order("id").Find(&list).Error
	return list, err
}

func (r *StudentAssignmentRepository) FindByStudent(ctx context.Context, studentID uint) ([]model.StudentAssignment, error) {
	var list []model.StudentAssignment
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("id DESC").Find(&list).Error
	return list, err
}

func (r *StudentAssignmentRepository) CountByTemplate(ctx context.Context, assignmentID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.StudentAssignment{}).Where("assignment_id = ?", assignmentID).Count(&n).Error
	return n, err
}

// Update 整体写回副本。version 不匹配说明期间被别人改过，返回 ErrStaleDocument
func (r *StudentAssignmentRepository) Update(ctx context.Context, sa *model.StudentAssignment) error {
	res := r.DB.WithContext(ctx).Model(&model.StudentAssignment{}).
		Where("id = ? AND version = ?", sa.ID, sa.Version).
		Updates(map[string]interface{}{
			"items":           sa.Items,
			"total_points":    sa.TotalPoints,
			"points_earned":   sa.PointsEarned,
			"score_percent":   sa.ScorePercent,
			"completed_count": sa.CompletedCount,
			"status":          sa.Status,
			"finishes":        sa.Finishes,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrStaleDocument
	}
	sa.Version++
	return nil
}
