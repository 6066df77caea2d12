package repository

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) FindByID(ctx context.Context, id uint) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTemplateNotFound
	}
	return &a, err
}

func (r *AssignmentRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Assignment, error) {
	if len(ids) == 0 {
		return []model.Assignment{}, nil
	}
	var list []model.Assignment
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) Update(ctx context.Context, a *model.Assignment) error {
	return r.DB.WithContext(ctx).Save(a).Error
}

// List 按日期键过滤（可为空），新的在前
func (r *AssignmentRepository) List(ctx context.Context, dateKey string) ([]model.Assignment, error) {
	query := r.DB.WithContext(ctx).Model(&model.Assignment{})
	if dateKey != "" {
		query = query.Where("date_key = ?", dateKey)
	}
	var list []model.Assignment
	err := query.Order("visible_from DESC, id DESC").Find(&list).Error
	return list, err
}

// FindDueForPublish 已到可见时间、标记自动发布但尚未发布的作业
func (r *AssignmentRepository) FindDueForPublish(ctx context.Context, now time.Time) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.WithContext(ctx).
		Where("auto_publish = ? AND is_published = ? AND visible_from <= ?", true, false, now).
		Order("id").
		Find(&list).Error
	return list, err
}

// Delete 删除模板及其所有学生副本
func (r *AssignmentRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Assignment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrTemplateNotFound
		}
		return tx.Unscoped().Where("assignment_id = ?", id).Delete(&model.StudentAssignment{}).Error
	})
}
