package repository

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"errors"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.DB.WithContext(ctx).Create(e).Error
}

func (r *ExamRepository) FindByID(ctx context.Context, id uint) (*model.Exam, error) {
	var e model.Exam
	err := r.DB.WithContext(ctx).First(&e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTemplateNotFound
	}
	return &e, err
}

func (r *ExamRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Exam, error) {
	if len(ids) == 0 {
		return []model.Exam{}, nil
	}
	var list []model.Exam
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	return r.DB.WithContext(ctx).Save(e).Error
}

func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	var list []model.Exam
	err := r.DB.WithContext(ctx).Order("starts_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *ExamRepository) Delete(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Exam{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrTemplateNotFound
		}
		return tx.Unscoped().Where("exam_id = ?", id).Delete(&model.ExamPaper{}).Error
	})
}
