package service

import (
	"context"
	"sync"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/live"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"
	"worksentry/internal/timeline"

	"github.com/sirupsen/logrus"
)

// SettingsService хранит политику агентов и раздает пороги компонентам
type SettingsService struct {
	repo       repository.SettingsRepository
	defaults   models.Settings
	aggregator *timeline.Aggregator
	tracker    *live.Tracker
	logger     *logrus.Logger

	mu      sync.RWMutex
	current models.Settings
}

func NewSettingsService(
	repo repository.SettingsRepository,
	defaults models.Settings,
	aggregator *timeline.Aggregator,
	tracker *live.Tracker,
) *SettingsService {
	s := &SettingsService{
		repo:       repo,
		defaults:   defaults,
		aggregator: aggregator,
		tracker:    tracker,
		logger:     logging.New(),
		current:    defaults,
	}
	s.apply(defaults)
	return s
}

// Load читает настройки из базы. Без сохраненной строки действуют значения по умолчанию
func (s *SettingsService) Load(ctx context.Context) (models.Settings, error) {
	stored, err := s.repo.Get(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load settings")
		return s.Current(), err
	}

	settings := s.defaults
	if stored != nil {
		settings = *stored
	}
	s.apply(settings)
	return settings, nil
}

// Current возвращает действующие настройки
func (s *SettingsService) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Save проверяет и сохраняет настройки, новые пороги применяются сразу
func (s *SettingsService) Save(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if settings.IdleThresholdSeconds <= 0 {
		return models.Settings{}, apperr.Invalid("idleThresholdSeconds", "должно быть больше нуля")
	}
	if settings.HeartbeatIntervalSeconds <= 0 {
		return models.Settings{}, apperr.Invalid("heartbeatIntervalSeconds", "должно быть больше нуля")
	}
	if settings.OfflineThresholdSeconds <= 0 {
		return models.Settings{}, apperr.Invalid("offlineThresholdSeconds", "должно быть больше нуля")
	}
	if settings.UpdatePolicy != models.UpdateOptional && settings.UpdatePolicy != models.UpdateForced {
		return models.Settings{}, apperr.Invalid("updatePolicy", "допустимые значения 0 или 1")
	}

	if err := s.repo.Save(ctx, &settings); err != nil {
		return models.Settings{}, err
	}
	s.apply(settings)
	return settings, nil
}

func (s *SettingsService) apply(settings models.Settings) {
	s.mu.Lock()
	s.current = settings
	s.mu.Unlock()

	if s.aggregator != nil {
		s.aggregator.SetOfflineThreshold(time.Duration(settings.OfflineThresholdSeconds) * time.Second)
	}
	if s.tracker != nil {
		s.tracker.SetOfflineThreshold(settings.OfflineThresholdSeconds)
	}

	s.logger.WithFields(logrus.Fields{
		"idle_threshold":    settings.IdleThresholdSeconds,
		"offline_threshold": settings.OfflineThresholdSeconds,
		"update_policy":     settings.UpdatePolicy,
	}).Debug("Settings applied")
}
