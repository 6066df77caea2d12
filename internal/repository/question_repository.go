package repository

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"errors"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.DB.WithContext(ctx).Create(q).Error
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return &q, err
}

// FindByIDs 不存在的 ID 会被忽略
func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}
	var qs []model.Question
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&qs).Error
	return qs, err
}

// UpdateKey 更正标准答案，三个答案字段整体替换
func (r *QuestionRepository) UpdateKey(ctx context.Context, q *model.Question) error {
	res := r.DB.WithContext(ctx).Model(&model.Question{}).Where("id = ?", q.ID).
		Select("correct_answer", "open_answer", "correct_multi", "points").
		Updates(q)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrQuestionNotFound
	}
	return nil
}

// FindForSelection 按格式、类别、难度按 ID 顺序取题，跳过已选中的题
func (r *QuestionRepository) FindForSelection(ctx context.Context, format model.QuestionFormat, category model.QuestionCategory, difficulty model.Difficulty, limit int, exclude []uint) ([]model.Question, error) {
	if limit <= 0 {
		return []model.Question{}, nil
	}
	query := r.DB.WithContext(ctx).
		Where("format = ? AND category = ? AND difficulty = ?", format, category, difficulty)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	var qs []model.Question
	err := query.Order("id").Limit(limit).Find(&qs).Error
	return qs, err
}
