package repository

import (
	"context"
	"time"

	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// auditListLimit - сколько записей журнала отдается за один запрос
const auditListLimit = 500

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	// List возвращает записи за [from, to), новые первыми
	List(ctx context.Context, from, to time.Time) ([]models.AuditLog, error)
}

type GormAuditRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormAuditRepository(db *gorm.DB) (*GormAuditRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate audit_logs table")
		return nil, err
	}

	return &GormAuditRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormAuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.WithError(err).Error("Failed to write audit log")
		return err
	}
	return nil
}

func (r *GormAuditRepository) List(ctx context.Context, from, to time.Time) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at desc, id desc").
		Limit(auditListLimit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
