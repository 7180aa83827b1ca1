package repository

import (
	"context"
	"errors"

	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailyStatRepository interface {
	Upsert(ctx context.Context, stat *models.DailyStat) error
	GetByEmployeeAndDate(ctx context.Context, employeeCode, workDate string) (*models.DailyStat, error)
	GetByDate(ctx context.Context, workDate string) ([]models.DailyStat, error)
	GetByEmployee(ctx context.Context, employeeCode, from, to string) ([]models.DailyStat, error)
}

type GormDailyStatRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormDailyStatRepository(db *gorm.DB) (*GormDailyStatRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.DailyStat{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate daily_stats table")
		return nil, err
	}

	return &GormDailyStatRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Upsert пересчитывает итоги и заменяет строку за день
func (r *GormDailyStatRepository) Upsert(ctx context.Context, stat *models.DailyStat) error {
	if !stat.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"employee_code": stat.EmployeeCode,
			"work_date":     stat.WorkDate,
		}).Warn("Invalid daily stat data")
		return errors.New("некорректные данные статистики")
	}

	stat.CalculateStats()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "employee_code"}, {Name: "work_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"work_seconds", "normal_seconds", "fish_seconds", "idle_seconds", "break_seconds",
			"offline_seconds", "incident_seconds", "break_count", "target_seconds",
			"attendance_seconds", "effective_seconds", "overtime_seconds", "deficit_seconds",
			"updated_at",
		}),
	}).Create(stat).Error
	if err != nil {
		r.logger.WithError(err).Error("Failed to upsert daily stat")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"employee_code": stat.EmployeeCode,
		"work_date":     stat.WorkDate,
		"effective":     stat.EffectiveSeconds,
		"deficit":       stat.DeficitSeconds,
	}).Debug("Daily stat updated")
	return nil
}

func (r *GormDailyStatRepository) GetByEmployeeAndDate(ctx context.Context, employeeCode, workDate string) (*models.DailyStat, error) {
	var stat models.DailyStat
	result := r.db.WithContext(ctx).
		Where("employee_code = ? AND work_date = ?", employeeCode, workDate).
		First(&stat)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &stat, nil
}

func (r *GormDailyStatRepository) GetByDate(ctx context.Context, workDate string) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := r.db.WithContext(ctx).
		Where("work_date = ?", workDate).
		Order("employee_code asc").
		Find(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *GormDailyStatRepository) GetByEmployee(ctx context.Context, employeeCode, from, to string) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	err := r.db.WithContext(ctx).
		Where("employee_code = ? AND work_date >= ? AND work_date <= ?", employeeCode, from, to).
		Order("work_date asc").
		Find(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
