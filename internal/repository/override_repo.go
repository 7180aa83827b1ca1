package repository

import (
	"context"
	"errors"
	"time"

	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OverrideRepository хранит ручные корректировки и системные сбои
type OverrideRepository interface {
	CreateAdjustment(ctx context.Context, adjustment *models.ManualAdjustment) error
	UpdateAdjustment(ctx context.Context, adjustment *models.ManualAdjustment) error
	GetAdjustment(ctx context.Context, id uint) (*models.ManualAdjustment, error)
	ListAdjustments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.ManualAdjustment, error)
	ActiveAdjustments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.ManualAdjustment, error)

	CreateIncident(ctx context.Context, incident *models.SystemIncident) error
	UpdateIncident(ctx context.Context, incident *models.SystemIncident) error
	GetIncident(ctx context.Context, id uint) (*models.SystemIncident, error)
	ListIncidents(ctx context.Context, from, to time.Time) ([]models.SystemIncident, error)
	ActiveIncidents(ctx context.Context, from, to time.Time) ([]models.SystemIncident, error)
}

type GormOverrideRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormOverrideRepository(db *gorm.DB) (*GormOverrideRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.ManualAdjustment{}, &models.SystemIncident{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate override tables")
		return nil, err
	}

	return &GormOverrideRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormOverrideRepository) CreateAdjustment(ctx context.Context, adjustment *models.ManualAdjustment) error {
	adjustment.StartAt = adjustment.StartAt.UTC()
	adjustment.EndAt = adjustment.EndAt.UTC()
	if adjustment.Status == "" {
		adjustment.Status = models.OverrideActive
	}
	if !adjustment.IsValid() {
		return errors.New("некорректная корректировка")
	}

	if err := r.db.WithContext(ctx).Create(adjustment).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create manual adjustment")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":            adjustment.ID,
		"employee_code": adjustment.EmployeeCode,
	}).Info("Manual adjustment created")
	return nil
}

func (r *GormOverrideRepository) UpdateAdjustment(ctx context.Context, adjustment *models.ManualAdjustment) error {
	adjustment.StartAt = adjustment.StartAt.UTC()
	adjustment.EndAt = adjustment.EndAt.UTC()
	if !adjustment.IsValid() {
		return errors.New("некорректная корректировка")
	}
	if err := r.db.WithContext(ctx).Save(adjustment).Error; err != nil {
		r.logger.WithError(err).Error("Failed to update manual adjustment")
		return err
	}
	return nil
}

func (r *GormOverrideRepository) GetAdjustment(ctx context.Context, id uint) (*models.ManualAdjustment, error) {
	var adjustment models.ManualAdjustment
	result := r.db.WithContext(ctx).First(&adjustment, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &adjustment, nil
}

// ListAdjustments возвращает корректировки в любом статусе, пересекающие интервал
func (r *GormOverrideRepository) ListAdjustments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.ManualAdjustment, error) {
	query := r.db.WithContext(ctx).Where("start_at < ? AND end_at > ?", to.UTC(), from.UTC())
	if employeeCode != "" {
		query = query.Where("employee_code = ?", employeeCode)
	}

	var adjustments []models.ManualAdjustment
	if err := query.Order("start_at asc, id asc").Find(&adjustments).Error; err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *GormOverrideRepository) ActiveAdjustments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.ManualAdjustment, error) {
	var adjustments []models.ManualAdjustment
	err := r.db.WithContext(ctx).
		Where("employee_code = ? AND status = ? AND start_at < ? AND end_at > ?",
			employeeCode, models.OverrideActive, to.UTC(), from.UTC()).
		Order("start_at asc, id asc").
		Find(&adjustments).Error
	if err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *GormOverrideRepository) CreateIncident(ctx context.Context, incident *models.SystemIncident) error {
	incident.StartAt = incident.StartAt.UTC()
	incident.EndAt = incident.EndAt.UTC()
	if incident.Status == "" {
		incident.Status = models.OverrideActive
	}
	if !incident.IsValid() {
		return errors.New("некорректный сбой")
	}

	if err := r.db.WithContext(ctx).Create(incident).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create system incident")
		return err
	}

	r.logger.WithField("id", incident.ID).Info("System incident created")
	return nil
}

func (r *GormOverrideRepository) UpdateIncident(ctx context.Context, incident *models.SystemIncident) error {
	incident.StartAt = incident.StartAt.UTC()
	incident.EndAt = incident.EndAt.UTC()
	if !incident.IsValid() {
		return errors.New("некорректный сбой")
	}
	if err := r.db.WithContext(ctx).Save(incident).Error; err != nil {
		r.logger.WithError(err).Error("Failed to update system incident")
		return err
	}
	return nil
}

func (r *GormOverrideRepository) GetIncident(ctx context.Context, id uint) (*models.SystemIncident, error) {
	var incident models.SystemIncident
	result := r.db.WithContext(ctx).First(&incident, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &incident, nil
}

func (r *GormOverrideRepository) ListIncidents(ctx context.Context, from, to time.Time) ([]models.SystemIncident, error) {
	var incidents []models.SystemIncident
	err := r.db.WithContext(ctx).
		Where("start_at < ? AND end_at > ?", to.UTC(), from.UTC()).
		Order("start_at asc, id asc").
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *GormOverrideRepository) ActiveIncidents(ctx context.Context, from, to time.Time) ([]models.SystemIncident, error) {
	var incidents []models.SystemIncident
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_at < ? AND end_at > ?", models.OverrideActive, to.UTC(), from.UTC()).
		Order("start_at asc, id asc").
		Find(&incidents).Error
	if err != nil {
		return nil, err
	}
	return incidents, nil
}
