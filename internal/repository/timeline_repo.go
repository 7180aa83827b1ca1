package repository

import (
	"context"
	"errors"
	"time"

	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/timeline"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TimelineRepository хранит рабочие сессии и сегменты таймлайна
type TimelineRepository interface {
	timeline.Store
	GetSession(ctx context.Context, id uint) (*models.WorkSession, error)
	ActiveSessions(ctx context.Context) ([]models.WorkSession, error)
	SessionsByEmployee(ctx context.Context, employeeCode string, limit int) ([]models.WorkSession, error)
	LatestSegments(ctx context.Context) ([]models.TimelineSegment, error)
	// OfflineSegments возвращает сегменты offline всех сотрудников, начавшиеся в [from, to)
	OfflineSegments(ctx context.Context, from, to time.Time) ([]models.TimelineSegment, error)
}

type GormTimelineRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ TimelineRepository = (*GormTimelineRepository)(nil)

func NewGormTimelineRepository(db *gorm.DB) (*GormTimelineRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.WorkSession{}, &models.TimelineSegment{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate timeline tables")
		return nil, err
	}

	logger.Debug("Timeline repository initialized")

	return &GormTimelineRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormTimelineRepository) ActiveSession(ctx context.Context, employeeCode string) (*models.WorkSession, error) {
	var session models.WorkSession
	result := r.db.WithContext(ctx).
		Where("employee_code = ? AND status = ? AND end_at IS NULL", employeeCode, models.SessionActive).
		Order("start_at desc").
		First(&session)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &session, nil
}

func (r *GormTimelineRepository) LatestSegment(ctx context.Context, employeeCode string) (*models.TimelineSegment, error) {
	var segment models.TimelineSegment
	result := r.db.WithContext(ctx).
		Where("employee_code = ?", employeeCode).
		Order("start_at desc, id desc").
		First(&segment)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &segment, nil
}

// Apply сохраняет изменения одной транзакцией. При ошибке выданные ID сбрасываются,
// чтобы повторная попытка снова создала записи
func (r *GormTimelineRepository) Apply(ctx context.Context, change *timeline.Change) error {
	var created []*uint
	var linked []*models.TimelineSegment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if change.CloseSession != nil {
			if err := tx.Save(change.CloseSession).Error; err != nil {
				return err
			}
		}
		if change.OpenSession != nil {
			if change.OpenSession.ID == 0 {
				created = append(created, &change.OpenSession.ID)
			}
			if err := tx.Create(change.OpenSession).Error; err != nil {
				return err
			}
		}
		for _, segment := range change.Segments {
			if segment.WorkSessionID == 0 && change.OpenSession != nil {
				segment.WorkSessionID = change.OpenSession.ID
				linked = append(linked, segment)
			}
			if segment.ID == 0 {
				created = append(created, &segment.ID)
				if err := tx.Create(segment).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Save(segment).Error; err != nil {
				return err
			}
		}
		if change.Review != nil {
			change.Review.StartAt = change.Review.StartAt.UTC()
			change.Review.EndAt = change.Review.EndAt.UTC()
			created = append(created, &change.Review.ID)
			if err := tx.Create(change.Review).Error; err != nil {
				return err
			}
		}
		if change.Record != nil {
			created = append(created, &change.Record.ID)
			if err := tx.Create(change.Record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, id := range created {
			*id = 0
		}
		for _, segment := range linked {
			segment.WorkSessionID = 0
		}
		r.logger.WithError(err).Error("Failed to apply timeline change")
		return err
	}
	return nil
}

// Segments возвращает сегменты, пересекающие [from, to).
// Правая граница сегмента - last_report_at, для закрытых она равна end_at
func (r *GormTimelineRepository) Segments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.TimelineSegment, error) {
	var segments []models.TimelineSegment
	err := r.db.WithContext(ctx).
		Where("employee_code = ? AND start_at < ? AND last_report_at > ?", employeeCode, to.UTC(), from.UTC()).
		Order("start_at asc, id asc").
		Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *GormTimelineRepository) GetSession(ctx context.Context, id uint) (*models.WorkSession, error) {
	var session models.WorkSession
	result := r.db.WithContext(ctx).First(&session, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &session, nil
}

func (r *GormTimelineRepository) ActiveSessions(ctx context.Context) ([]models.WorkSession, error) {
	var sessions []models.WorkSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_at IS NULL", models.SessionActive).
		Order("start_at asc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *GormTimelineRepository) SessionsByEmployee(ctx context.Context, employeeCode string, limit int) ([]models.WorkSession, error) {
	if limit <= 0 {
		limit = 30
	}
	var sessions []models.WorkSession
	err := r.db.WithContext(ctx).
		Where("employee_code = ?", employeeCode).
		Order("start_at desc").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// LatestSegments возвращает последний сегмент каждого сотрудника
func (r *GormTimelineRepository) LatestSegments(ctx context.Context) ([]models.TimelineSegment, error) {
	latest := r.db.Model(&models.TimelineSegment{}).Select("MAX(id)").Group("employee_code")

	var segments []models.TimelineSegment
	err := r.db.WithContext(ctx).
		Where("id IN (?)", latest).
		Order("employee_code asc").
		Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *GormTimelineRepository) OfflineSegments(ctx context.Context, from, to time.Time) ([]models.TimelineSegment, error) {
	var segments []models.TimelineSegment
	err := r.db.WithContext(ctx).
		Where("status_code = ? AND start_at >= ? AND start_at < ?", models.StatusOffline, from.UTC(), to.UTC()).
		Order("start_at asc, id asc").
		Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}
