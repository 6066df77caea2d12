package service

import (
	"classwork_backend/internal/model"
	"classwork_backend/internal/util"
	"context"
	"fmt"
)

type CreateQuestionReq struct {
	Format        model.QuestionFormat   `json:"questionFormat" binding:"required,oneof=test open multi3"`
	Category      model.QuestionCategory `json:"category" binding:"omitempty,oneof=math geometry"`
	Difficulty    model.Difficulty       `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	ImageURL      string                 `json:"imageUrl"`
	Points        float64                `json:"points" binding:"omitempty,gt=0"`
	CorrectAnswer *string                `json:"correctAnswer" binding:"omitempty,letter"`
	OpenAnswer    *string                `json:"numericAnswer"`
	CorrectMulti  *model.Multi3          `json:"correctMulti"`
}

// KeyReq 更正标准答案。之后的“完成”会按新答案重判
type KeyReq struct {
	Points        float64       `json:"points" binding:"omitempty,gt=0"`
	CorrectAnswer *string       `json:"correctAnswer" binding:"omitempty,letter"`
	OpenAnswer    *string       `json:"numericAnswer"`
	CorrectMulti  *model.Multi3 `json:"correctMulti"`
}

type QuestionService struct {
	Questions QuestionStore
}

func NewQuestionService(questions QuestionStore) *QuestionService {
	return &QuestionService{Questions: questions}
}

func (s *QuestionService) Create(ctx context.Context, req CreateQuestionReq) (*model.Question, error) {
	q := &model.Question{
		Format:        req.Format,
		Category:      req.Category,
		Difficulty:    req.Difficulty,
		ImageURL:      req.ImageURL,
		Points:        req.Points,
		CorrectAnswer: req.CorrectAnswer,
		OpenAnswer:    req.OpenAnswer,
		CorrectMulti:  req.CorrectMulti,
	}
	if q.Category == "" {
		q.Category = model.CategoryMath
	}
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyEasy
	}
	if err := q.Validate(); err != nil {
		return nil, util.InvalidInputf("%s", err.Error())
	}
	if err := s.Questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *QuestionService) Get(ctx context.Context, id uint) (*model.Question, error) {
	return s.Questions.FindByID(ctx, id)
}

func (s *QuestionService) UpdateKey(ctx context.Context, id uint, req KeyReq) (*model.Question, error) {
	q, err := s.Questions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q.CorrectAnswer = req.CorrectAnswer
	q.OpenAnswer = req.OpenAnswer
	q.CorrectMulti = req.CorrectMulti
	if req.Points > 0 {
		q.Points = req.Points
	}
	if err := q.Validate(); err != nil {
		return nil, util.InvalidInputf("%s", err.Error())
	}
	if err := s.Questions.UpdateKey(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}
