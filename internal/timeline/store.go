// Package timeline сводит поток статусов сотрудника в непрерывные сегменты.
package timeline

import (
	"context"
	"time"

	"worksentry/internal/models"
)

// Change - набор изменений одного отчета, применяется одной транзакцией
type Change struct {
	// CloseSession сохраняется первой
	CloseSession *models.WorkSession
	// OpenSession создается до сегментов, сегменты с WorkSessionID = 0 получают ее ID
	OpenSession *models.WorkSession
	// Segments сохраняются по порядку: ID = 0 создает запись, иначе обновляет
	Segments []*models.TimelineSegment
	// Review и Record создаются вместе с закрытием сессии
	Review *models.CheckoutReview
	Record *models.CheckoutRecord
}

func (c *Change) IsEmpty() bool {
	return c.CloseSession == nil && c.OpenSession == nil && len(c.Segments) == 0 &&
		c.Review == nil && c.Record == nil
}

// Closing - записи, которые сохраняются одной транзакцией с закрытием сессии
type Closing struct {
	Review *models.CheckoutReview
	Record *models.CheckoutRecord
}

// Finalizer получает закрываемую сессию и ее таймлайн до момента закрытия.
// Ошибка оставляет сессию открытой
type Finalizer func(ctx context.Context, session *models.WorkSession, entries []models.TimelineEntry) (Closing, error)

// Store хранит сессии и сегменты
type Store interface {
	// ActiveSession возвращает активную сессию сотрудника или nil
	ActiveSession(ctx context.Context, employeeCode string) (*models.WorkSession, error)
	// LatestSegment возвращает последний по времени сегмент сотрудника или nil
	LatestSegment(ctx context.Context, employeeCode string) (*models.TimelineSegment, error)
	// Apply атомарно применяет изменения
	Apply(ctx context.Context, change *Change) error
	// Segments возвращает сегменты, пересекающие [from, to), по возрастанию начала
	Segments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.TimelineSegment, error)
}

// OverrideSource возвращает действующие корректировки и сбои для интервала
type OverrideSource interface {
	Overrides(ctx context.Context, employeeCode string, from, to time.Time) ([]models.Override, error)
}
