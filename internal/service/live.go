package service

import (
	"context"
	"sync"
	"time"

	"worksentry/internal/live"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

// LiveService отдает live-состояние с именами сотрудников
type LiveService struct {
	tracker   *live.Tracker
	hub       *live.Hub
	timeline  repository.TimelineRepository
	employees repository.EmployeeRepository
	logger    *logrus.Logger

	mu    sync.RWMutex
	names map[string]string
}

func NewLiveService(
	tracker *live.Tracker,
	hub *live.Hub,
	timelineRepo repository.TimelineRepository,
	employees repository.EmployeeRepository,
) *LiveService {
	return &LiveService{
		tracker:   tracker,
		hub:       hub,
		timeline:  timelineRepo,
		employees: employees,
		logger:    logging.New(),
		names:     make(map[string]string),
	}
}

// Rebuild восстанавливает состояние по последнему сегменту каждого сотрудника.
// Сотрудник без активной сессии считается ушедшим с работы
func (s *LiveService) Rebuild(ctx context.Context) (int, error) {
	if err := s.RefreshNames(ctx); err != nil {
		return 0, err
	}

	segments, err := s.timeline.LatestSegments(ctx)
	if err != nil {
		return 0, err
	}
	sessions, err := s.timeline.ActiveSessions(ctx)
	if err != nil {
		return 0, err
	}
	working := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		working[session.EmployeeCode] = true
	}

	states := make([]models.LiveState, 0, len(segments))
	for _, segment := range segments {
		states = append(states, models.LiveState{
			EmployeeCode: segment.EmployeeCode,
			StatusCode:   segment.StatusCode,
			LastSeenAt:   segment.Extent(),
			Description:  segment.Description,
			Offwork:      !working[segment.EmployeeCode],
		})
	}
	return s.tracker.Rebuild(states), nil
}

// RefreshNames перечитывает справочник имен
func (s *LiveService) RefreshNames(ctx context.Context) error {
	employees, err := s.employees.List(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load employee names")
		return err
	}

	names := make(map[string]string, len(employees))
	for _, e := range employees {
		names[e.Code] = e.Name
	}

	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

// Decorate добавляет имя сотрудника
func (s *LiveService) Decorate(view models.LiveView) models.LiveView {
	s.mu.RLock()
	view.EmployeeName = s.names[view.EmployeeCode]
	s.mu.RUnlock()
	return view
}

// Snapshot возвращает состояние всех сотрудников
func (s *LiveService) Snapshot() []models.LiveView {
	views := s.tracker.Snapshot()
	for i := range views {
		views[i] = s.Decorate(views[i])
	}
	if views == nil {
		views = []models.LiveView{}
	}
	return views
}

// Subscribe подписывает на поток изменений
func (s *LiveService) Subscribe() *live.Subscription {
	return s.hub.Subscribe()
}

// RefreshOffline рассылает переходы в offline
func (s *LiveService) RefreshOffline() int {
	changed := s.tracker.RefreshOffline()
	if len(changed) > 0 {
		s.logger.WithField("count", len(changed)).Debug("Offline transitions published")
	}
	return len(changed)
}

// MarkOffwork переводит сотрудника в состояние "вне работы" после закрытия сессии сервером
func (s *LiveService) MarkOffwork(employeeCode string, at time.Time) {
	s.tracker.Update(live.Update{
		EmployeeCode: employeeCode,
		StatusCode:   models.StatusOffwork,
		LastSeenAt:   at,
		ReportType:   models.ReportWorkEnd,
	})
}
