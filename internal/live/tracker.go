// Package live хранит текущее состояние сотрудников и рассылает изменения.
package live

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
)

// Update - принятый отчет сотрудника
type Update struct {
	EmployeeCode string
	StatusCode   string
	LastSeenAt   time.Time
	ReportType   string
	Description  string
}

type entry struct {
	mu    sync.Mutex
	state models.LiveState
	// offlineAnnounced - переход в offline уже разослан
	offlineAnnounced bool
}

// Tracker хранит последний отчет каждого сотрудника. Обновления одного сотрудника
// сериализуются, при гонке побеждает более поздний lastSeenAt
type Tracker struct {
	entries          sync.Map // employeeCode -> *entry
	hub              *Hub
	now              func() time.Time
	offlineThreshold atomic.Int64
	logger           *logrus.Logger
}

func NewTracker(hub *Hub, offlineThresholdSeconds int, logger *logrus.Logger) *Tracker {
	t := &Tracker{
		hub:    hub,
		now:    time.Now,
		logger: logger,
	}
	t.SetOfflineThreshold(offlineThresholdSeconds)
	return t
}

// SetClock подменяет часы (для тестов)
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

func (t *Tracker) SetOfflineThreshold(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.offlineThreshold.Store(int64(seconds))
}

func (t *Tracker) OfflineThreshold() int64 {
	return t.offlineThreshold.Load()
}

func (t *Tracker) entry(employeeCode string) *entry {
	e, _ := t.entries.LoadOrStore(employeeCode, &entry{})
	return e.(*entry)
}

// Update применяет отчет. Второе значение false, если отчет старше сохраненного и отброшен
func (t *Tracker) Update(u Update) (models.LiveState, bool) {
	u.EmployeeCode = strings.TrimSpace(u.EmployeeCode)
	e := t.entry(u.EmployeeCode)

	e.mu.Lock()
	prev := e.state
	if !prev.LastSeenAt.IsZero() && u.LastSeenAt.Before(prev.LastSeenAt) {
		e.mu.Unlock()
		t.logger.WithFields(logrus.Fields{
			"employee_code": u.EmployeeCode,
			"last_seen_at":  u.LastSeenAt.Format(time.RFC3339),
		}).Debug("Dropped out-of-order live update")
		return prev, false
	}

	next := models.LiveState{
		EmployeeCode: u.EmployeeCode,
		StatusCode:   u.StatusCode,
		LastSeenAt:   u.LastSeenAt,
		Description:  u.Description,
	}
	switch {
	case u.ReportType == models.ReportWorkEnd:
		next.Offwork = true
		next.StatusCode = models.StatusOffwork
		next.Description = ""
	case u.ReportType == models.ReportWorkStart:
		next.Offwork = false
	case prev.Offwork:
		// до следующего начала дня сотрудник остается вне работы
		next.Offwork = true
		next.StatusCode = models.StatusOffwork
		next.Description = ""
	}
	next.StatusLabel = models.StatusLabel(next.StatusCode)
	next.DelaySeconds = delaySeconds(t.now(), next.LastSeenAt)

	e.state = next
	e.offlineAnnounced = false
	if t.hub != nil {
		// публикация под блокировкой сотрудника сохраняет порядок обновлений
		t.hub.Publish(Derive(next, t.now(), t.OfflineThreshold()))
	}
	e.mu.Unlock()

	return next, true
}

// Get возвращает состояние сотрудника
func (t *Tracker) Get(employeeCode string) (models.LiveView, bool) {
	v, ok := t.entries.Load(employeeCode)
	if !ok {
		return models.LiveView{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return Derive(e.state, t.now(), t.OfflineThreshold()), true
}

// Snapshot возвращает производное состояние всех сотрудников, по коду
func (t *Tracker) Snapshot() []models.LiveView {
	now := t.now()
	threshold := t.OfflineThreshold()

	var views []models.LiveView
	t.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.state.LastSeenAt.IsZero() {
			views = append(views, Derive(e.state, now, threshold))
		}
		e.mu.Unlock()
		return true
	})

	sort.Slice(views, func(i, j int) bool {
		return views[i].EmployeeCode < views[j].EmployeeCode
	})
	return views
}

// Rebuild восстанавливает состояние после перезапуска, более свежие данные не затираются
func (t *Tracker) Rebuild(states []models.LiveState) int {
	restored := 0
	for _, s := range states {
		if s.EmployeeCode == "" || s.LastSeenAt.IsZero() {
			continue
		}
		e := t.entry(s.EmployeeCode)
		e.mu.Lock()
		if e.state.LastSeenAt.IsZero() || s.LastSeenAt.After(e.state.LastSeenAt) {
			if s.Offwork {
				s.StatusCode = models.StatusOffwork
			}
			s.StatusLabel = models.StatusLabel(s.StatusCode)
			e.state = s
			restored++
		}
		e.mu.Unlock()
	}

	t.logger.WithField("count", restored).Info("Live state rebuilt")
	return restored
}

// RefreshOffline рассылает обновления для сотрудников, которые только что перешли в offline
func (t *Tracker) RefreshOffline() []models.LiveView {
	now := t.now()
	threshold := t.OfflineThreshold()

	var changed []models.LiveView
	t.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		view := Derive(e.state, now, threshold)
		if view.StatusCode == models.StatusOffline && !e.offlineAnnounced && !e.state.LastSeenAt.IsZero() {
			e.offlineAnnounced = true
			changed = append(changed, view)
			if t.hub != nil {
				t.hub.Publish(view)
			}
		}
		e.mu.Unlock()
		return true
	})

	return changed
}

// Derive вычисляет отображаемый статус на момент now.
// Задержка больше порога означает offline с нулевым остатком, иначе остаток идет обратным отсчетом
func Derive(state models.LiveState, now time.Time, offlineThresholdSeconds int64) models.LiveView {
	view := models.LiveView{
		EmployeeCode:   state.EmployeeCode,
		StatusCode:     state.StatusCode,
		ReportedStatus: state.StatusCode,
		LastSeenAt:     state.LastSeenAt,
		DelaySeconds:   delaySeconds(now, state.LastSeenAt),
		Description:    state.Description,
	}

	switch {
	case state.Offwork:
		view.StatusCode = models.StatusOffwork
	case offlineThresholdSeconds > 0 && view.DelaySeconds > offlineThresholdSeconds:
		view.StatusCode = models.StatusOffline
	default:
		if offlineThresholdSeconds > 0 {
			view.RemainingSeconds = offlineThresholdSeconds - view.DelaySeconds
		}
		view.Working = view.StatusCode != models.StatusOffline
	}
	view.StatusLabel = models.StatusLabel(view.StatusCode)
	return view
}

func delaySeconds(now, lastSeenAt time.Time) int64 {
	if lastSeenAt.IsZero() || !now.After(lastSeenAt) {
		return 0
	}
	return int64(now.Sub(lastSeenAt) / time.Second)
}
