package repository

import (
	"context"
	"errors"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceRuleRepository хранит правила отделов и пороги статусов
type AttendanceRuleRepository interface {
	AttendanceRule(ctx context.Context, departmentID uint) (*models.AttendanceRule, error)
	StatusThresholds(ctx context.Context, departmentID uint) ([]models.StatusThreshold, error)
	ListRules(ctx context.Context) ([]models.AttendanceRule, error)
	SaveDepartment(ctx context.Context, rule *models.AttendanceRule, thresholds []models.StatusThreshold) error
	UpsertThreshold(ctx context.Context, threshold *models.StatusThreshold) error
	DeleteThreshold(ctx context.Context, departmentID uint, statusCode string) error
}

type GormAttendanceRuleRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormAttendanceRuleRepository(db *gorm.DB) (*GormAttendanceRuleRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.AttendanceRule{}, &models.StatusThreshold{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate attendance rule tables")
		return nil, err
	}

	return &GormAttendanceRuleRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormAttendanceRuleRepository) AttendanceRule(ctx context.Context, departmentID uint) (*models.AttendanceRule, error) {
	var rule models.AttendanceRule
	result := r.db.WithContext(ctx).Where("department_id = ?", departmentID).First(&rule)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rule, nil
}

func (r *GormAttendanceRuleRepository) StatusThresholds(ctx context.Context, departmentID uint) ([]models.StatusThreshold, error) {
	var thresholds []models.StatusThreshold
	err := r.db.WithContext(ctx).
		Where("department_id = ?", departmentID).
		Order("status_code asc").
		Find(&thresholds).Error
	if err != nil {
		return nil, err
	}
	return thresholds, nil
}

func (r *GormAttendanceRuleRepository) ListRules(ctx context.Context) ([]models.AttendanceRule, error) {
	var rules []models.AttendanceRule
	if err := r.db.WithContext(ctx).Order("department_id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// SaveDepartment сохраняет правило отдела и upsert-ит пороги по коду статуса
func (r *GormAttendanceRuleRepository) SaveDepartment(ctx context.Context, rule *models.AttendanceRule, thresholds []models.StatusThreshold) error {
	if !rule.IsValid() {
		return errors.New("некорректное правило отдела")
	}
	for i := range thresholds {
		thresholds[i].DepartmentID = rule.DepartmentID
		thresholds[i].Normalize()
		if !thresholds[i].IsValid() {
			return errors.New("некорректный порог статуса " + thresholds[i].StatusCode)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertRule(tx, rule); err != nil {
			return err
		}
		for i := range thresholds {
			if err := upsertThreshold(tx, &thresholds[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to save department rule")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"department_id": rule.DepartmentID,
		"enabled":       rule.Enabled,
		"thresholds":    len(thresholds),
	}).Info("Department rule saved")
	return nil
}

func (r *GormAttendanceRuleRepository) UpsertThreshold(ctx context.Context, threshold *models.StatusThreshold) error {
	threshold.Normalize()
	if threshold.DepartmentID == 0 || !threshold.IsValid() {
		return errors.New("некорректный порог статуса")
	}
	if err := upsertThreshold(r.db.WithContext(ctx), threshold); err != nil {
		r.logger.WithError(err).Error("Failed to upsert threshold")
		return err
	}
	return nil
}

func (r *GormAttendanceRuleRepository) DeleteThreshold(ctx context.Context, departmentID uint, statusCode string) error {
	result := r.db.WithContext(ctx).
		Where("department_id = ? AND status_code = ?", departmentID, statusCode).
		Delete(&models.StatusThreshold{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// upsertRule - ключ правила отдела department_id, а не ID записи
func upsertRule(tx *gorm.DB, rule *models.AttendanceRule) error {
	rule.ID = 0
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "department_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"target_seconds", "max_break_seconds", "max_break_count", "max_break_single_seconds", "enabled",
		}),
	}).Create(rule).Error
}

// upsertThreshold - новый порог для существующего статуса заменяет старый
func upsertThreshold(tx *gorm.DB, threshold *models.StatusThreshold) error {
	threshold.ID = 0
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "department_id"}, {Name: "status_code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_seconds", "max_seconds", "trigger_action", "enabled",
		}),
	}).Create(threshold).Error
}
