package service

import (
	"bytes"
	"classwork_backend/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportRef 导出文件的位置
type ReportRef struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type statsSource interface {
	ComputeStats(ctx context.Context, assignmentID uint) (*model.AssignmentStats, error)
	ExamResults(ctx context.Context, examID uint) (*model.ExamResults, error)
}

// ReportService 把统计结果导出为 JSON 文件存到配置的存储后端
type ReportService struct {
	Stats   statsSource
	Storage StorageProvider
	now     func() time.Time
}

func NewReportService(stats statsSource, storage StorageProvider) *ReportService {
	return &ReportService{Stats: stats, Storage: storage, now: time.Now}
}

func (s *ReportService) ExportAssignmentStats(ctx context.Context, assignmentID uint) (*ReportRef, error) {
	stats, err := s.Stats.ComputeStats(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return s.upload(ctx, fmt.Sprintf("assignment-%d", assignmentID), stats)
}

func (s *ReportService) ExportExamResults(ctx context.Context, examID uint) (*ReportRef, error) {
	res, err := s.Stats.ExamResults(ctx, examID)
	if err != nil {
		return nil, err
	}
	return s.upload(ctx, fmt.Sprintf("exam-%d", examID), res)
}

func (s *ReportService) upload(ctx context.Context, prefix string, payload interface{}) (*ReportRef, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	now := s.now()
	name := fmt.Sprintf("reports/%s/%s-%s.json", now.Format("20060102"), prefix, uuid.NewString())
	url, err := s.Storage.Upload(ctx, name, bytes.NewReader(data), int64(len(data)), "application/json")
	if err != nil {
		return nil, fmt.Errorf("upload report %s: %w", name, err)
	}
	return &ReportRef{Name: name, URL: url, GeneratedAt: now}, nil
}
