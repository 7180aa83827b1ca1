package repository

import (
	"context"
	"errors"

	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const settingsID = 1

type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

type GormSettingsRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormSettingsRepository(db *gorm.DB) (*GormSettingsRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.Settings{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate settings table")
		return nil, err
	}

	return &GormSettingsRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Get возвращает сохраненные настройки или nil, если их еще нет
func (r *GormSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	result := r.db.WithContext(ctx).First(&settings, settingsID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

func (r *GormSettingsRepository) Save(ctx context.Context, settings *models.Settings) error {
	if !settings.IsValid() {
		return errors.New("некорректные настройки")
	}
	settings.ID = settingsID

	if err := r.db.WithContext(ctx).Save(settings).Error; err != nil {
		r.logger.WithError(err).Error("Failed to save settings")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"idle_threshold":     settings.IdleThresholdSeconds,
		"heartbeat_interval": settings.HeartbeatIntervalSeconds,
		"offline_threshold":  settings.OfflineThresholdSeconds,
		"update_policy":      settings.UpdatePolicy,
	}).Info("Settings saved")
	return nil
}
