package service

import (
	"classwork_backend/internal/config"
	"sync"
)

// GradingSettings 可热更新的判分参数
type GradingSettings struct {
	mu  sync.RWMutex
	cfg config.GradingConfig
}

func NewGradingSettings(cfg config.GradingConfig) *GradingSettings {
	return &GradingSettings{cfg: cfg}
}

func (s *GradingSettings) Get() config.GradingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *GradingSettings) Update(cfg config.GradingConfig) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}
