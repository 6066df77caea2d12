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

type ExamPaperRepository struct {
	DB *gorm.DB
}

func NewExamPaperRepository(db *gorm.DB) *ExamPaperRepository {
	return &ExamPaperRepository{DB: db}
}

func (r *ExamPaperRepository) InsertIgnoreDuplicate(ctx context.Context, p *model.ExamPaper) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ExamPaperRepository) FindByID(ctx context.Context, id uint) (*model.ExamPaper, error) {
	var p model.ExamPaper
	err := r.DB.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCopyNotFound
	}
	return &p, err
}

func (r *ExamPaperRepository) FindByExamAndStudent(ctx context.Context, examID, studentID uint) (*model.ExamPaper, error) {
	var p model.ExamPaper
	err := r.DB.WithContext(ctx).Where("exam_id = ? AND student_id = ?", examID, studentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCopyNotFound
	}
	return &p, err
}

// FindLatestByStudent 学生最近分到的一份答卷
func (r *ExamPaperRepository) FindLatestByStudent(ctx context.Context, studentID uint) (*model.ExamPaper, error) {
	var p model.ExamPaper
	err := r.DB.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at DESC, id DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCopyNotFound
	}
	return &p, err
}

func (r *ExamPaperRepository) FindByTemplate(ctx context.Context, examID uint) ([]model.ExamPaper, error) {
	var list []model.ExamPaper
	err := r.DB.WithContext(ctx).Where("exam_id = ?", examID).Order("id").Find(&list).Error
	return list, err
}

// FindCompletedByStudent 学生已交卷的答卷，最近的在前
func (r *ExamPaperRepository) FindCompletedByStudent(ctx context.Context, studentID uint) ([]model.ExamPaper, error) {
	var list []model.ExamPaper
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, model.CopyCompleted).
		Order("finished_at DESC").
		Find(&list).Error
	return list, err
}

func (r *ExamPaperRepository) Update(ctx context.Context, p *model.ExamPaper) error {
	res := r.DB.WithContext(ctx).Model(&model.ExamPaper{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"items":           p.Items,
			"completed_count": p.CompletedCount,
			"score_part1":     p.ScorePart1,
			"score_part2":     p.ScorePart2,
			"score_part3":     p.ScorePart3,
			"total_score":     p.TotalScore,
			"started_at":      p.StartedAt,
			"finished_at":     p.FinishedAt,
			"status":          p.Status,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrStaleDocument
	}
	p.Version++
	return nil
}
