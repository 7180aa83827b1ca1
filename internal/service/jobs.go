package service

import (
	"context"
	"time"

	"worksentry/internal/logging"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	offlineRefreshInterval = time.Minute
	autoCloseInterval      = 10 * time.Minute
)

// Jobs - фоновые задачи сервера
type Jobs struct {
	live           *LiveService
	checkout       *CheckoutService
	timeline       repository.TimelineRepository
	employees      repository.EmployeeRepository
	autoCloseAfter time.Duration
	now            func() time.Time
	logger         *logrus.Logger
}

func NewJobs(
	liveService *LiveService,
	checkout *CheckoutService,
	timelineRepo repository.TimelineRepository,
	employees repository.EmployeeRepository,
	autoCloseAfter time.Duration,
) *Jobs {
	return &Jobs{
		live:           liveService,
		checkout:       checkout,
		timeline:       timelineRepo,
		employees:      employees,
		autoCloseAfter: autoCloseAfter,
		now:            time.Now,
		logger:         logging.New(),
	}
}

// SetClock подменяет часы (для тестов)
func (j *Jobs) SetClock(now func() time.Time) {
	j.now = now
}

// Run выполняет задачи по расписанию до отмены ctx
func (j *Jobs) Run(ctx context.Context) {
	offline := time.NewTicker(offlineRefreshInterval)
	defer offline.Stop()
	autoClose := time.NewTicker(autoCloseInterval)
	defer autoClose.Stop()

	j.logger.Info("Background jobs started")
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Background jobs stopped")
			return
		case <-offline.C:
			j.live.RefreshOffline()
		case <-autoClose.C:
			if _, err := j.AutoCloseStale(ctx); err != nil {
				j.logger.WithError(err).Error("Auto-close job failed")
			}
		}
	}
}

// AutoCloseStale закрывает сессии, в которых давно не было отчетов
func (j *Jobs) AutoCloseStale(ctx context.Context) (int, error) {
	if j.autoCloseAfter <= 0 {
		return 0, nil
	}

	sessions, err := j.timeline.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := j.now().UTC().Add(-j.autoCloseAfter)
	closed := 0
	for _, session := range sessions {
		employee, err := j.employees.GetByCode(ctx, session.EmployeeCode)
		if err != nil {
			return closed, err
		}
		if employee == nil {
			j.logger.WithField("employee_code", session.EmployeeCode).Warn("Active session of unknown employee")
			continue
		}

		review, err := j.checkout.AutoClose(ctx, employee, cutoff)
		if err != nil {
			j.logger.WithError(err).WithField("employee_code", employee.Code).Error("Failed to auto-close session")
			continue
		}
		if review != nil {
			j.live.MarkOffwork(employee.Code, review.EndAt)
			closed++
		}
	}

	if closed > 0 {
		j.logger.WithField("count", closed).Info("Stale sessions auto-closed")
	}
	return closed, nil
}
