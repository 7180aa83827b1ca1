package timeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
)

// Report - классифицированный отчет агента
type Report struct {
	EmployeeCode string
	StatusCode   string
	Timestamp    time.Time
	ReportType   string
	Description  string
}

// Действия, которые выполнил агрегатор
const (
	ActionOpened   = "opened"
	ActionExtended = "extended"
	ActionRolled   = "rolled"
	ActionClosed   = "closed"
	ActionIgnored  = "ignored"
)

// Result - итог обработки отчета
type Result struct {
	Action  string
	Segment *models.TimelineSegment
	Session *models.WorkSession
	// ForceClosed - сессия, закрытая новым началом дня
	ForceClosed *models.WorkSession
}

// Stats - счетчики обработки отчетов
type Stats struct {
	Ingested      int64 `json:"ingested"`
	Coalesced     int64 `json:"coalesced"`
	StaleDropped  int64 `json:"staleDropped"`
	ForceClosed   int64 `json:"forceClosed"`
	IgnoredEnds   int64 `json:"ignoredEnds"`
	NoSession     int64 `json:"noSession"`
	OfflineGaps   int64 `json:"offlineGaps"`
	WriteFailures int64 `json:"writeFailures"`
}

type counters struct {
	ingested      atomic.Int64
	coalesced     atomic.Int64
	staleDropped  atomic.Int64
	forceClosed   atomic.Int64
	ignoredEnds   atomic.Int64
	noSession     atomic.Int64
	offlineGaps   atomic.Int64
	writeFailures atomic.Int64
}

// employeeState - то, что агрегатор знает о сотруднике. Меняется только под mu
type employeeState struct {
	mu      sync.Mutex
	loaded  bool
	session *models.WorkSession
	latest  *models.TimelineSegment
}

func (st *employeeState) open() *models.TimelineSegment {
	if st.latest != nil && st.latest.IsOpen() {
		return st.latest
	}
	return nil
}

// known - последний момент истории, раньше которого отчеты не принимаются
func (st *employeeState) known() time.Time {
	var known time.Time
	if st.latest != nil {
		known = st.latest.Extent()
	}
	if st.session != nil && st.session.StartAt.After(known) {
		known = st.session.StartAt
	}
	return known
}

// Aggregator строит таймлайн. Отчеты одного сотрудника обрабатываются последовательно,
// разные сотрудники не блокируют друг друга
type Aggregator struct {
	store     Store
	overrides OverrideSource
	logger    *logrus.Logger

	states sync.Map // employeeCode -> *employeeState

	offlineThreshold atomic.Int64 // секунды, 0 отключает разрывы
	retryDelays      []time.Duration
	stats            counters
}

func NewAggregator(store Store, overrides OverrideSource, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		store:       store,
		overrides:   overrides,
		logger:      logger,
		retryDelays: []time.Duration{50 * time.Millisecond, 100 * time.Millisecond},
	}
}

// SetOfflineThreshold задает паузу между отчетами, после которой вставляется сегмент offline
func (a *Aggregator) SetOfflineThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	a.offlineThreshold.Store(int64(d / time.Second))
}

func (a *Aggregator) gapThreshold() time.Duration {
	return time.Duration(a.offlineThreshold.Load()) * time.Second
}

// Stats возвращает снимок счетчиков
func (a *Aggregator) Stats() Stats {
	return Stats{
		Ingested:      a.stats.ingested.Load(),
		Coalesced:     a.stats.coalesced.Load(),
		StaleDropped:  a.stats.staleDropped.Load(),
		ForceClosed:   a.stats.forceClosed.Load(),
		IgnoredEnds:   a.stats.ignoredEnds.Load(),
		NoSession:     a.stats.noSession.Load(),
		OfflineGaps:   a.stats.offlineGaps.Load(),
		WriteFailures: a.stats.writeFailures.Load(),
	}
}

func (a *Aggregator) state(employeeCode string) *employeeState {
	st, _ := a.states.LoadOrStore(employeeCode, &employeeState{})
	return st.(*employeeState)
}

// lock захватывает состояние сотрудника и при необходимости загружает его из хранилища
func (a *Aggregator) lock(ctx context.Context, employeeCode string) (*employeeState, error) {
	st := a.state(employeeCode)
	st.mu.Lock()
	if st.loaded {
		return st, nil
	}

	session, err := a.store.ActiveSession(ctx, employeeCode)
	if err != nil {
		st.mu.Unlock()
		return nil, err
	}
	latest, err := a.store.LatestSegment(ctx, employeeCode)
	if err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.session = session
	st.latest = latest
	st.loaded = true
	return st, nil
}

func validateReport(r *Report) error {
	r.EmployeeCode = strings.TrimSpace(r.EmployeeCode)
	r.StatusCode = strings.TrimSpace(strings.ToLower(r.StatusCode))
	r.ReportType = strings.TrimSpace(strings.ToLower(r.ReportType))
	if r.EmployeeCode == "" {
		return apperr.Invalid("employeeCode", "не указан код сотрудника")
	}
	if !models.IsThresholdStatus(r.StatusCode) {
		return apperr.Invalid("statusCode", "неизвестный статус")
	}
	if r.Timestamp.IsZero() {
		return apperr.Invalid("timestamp", "не указано время отчета")
	}
	if r.ReportType == "" {
		r.ReportType = models.ReportHeartbeat
	}
	if !models.IsValidReportType(r.ReportType) {
		return apperr.Invalid("reportType", "неизвестный тип отчета")
	}
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Second)
	return nil
}

// Ingest вносит отчет в таймлайн сотрудника
func (a *Aggregator) Ingest(ctx context.Context, report Report) (Result, error) {
	if err := validateReport(&report); err != nil {
		a.logger.WithError(err).Warn("Rejected invalid report")
		return Result{}, err
	}

	st, err := a.lock(ctx, report.EmployeeCode)
	if err != nil {
		return Result{}, err
	}
	defer st.mu.Unlock()

	if err := a.checkStale(st, report); err != nil {
		return Result{}, err
	}

	var result Result
	switch report.ReportType {
	case models.ReportWorkStart:
		result, err = a.startSession(ctx, st, report)
	case models.ReportWorkEnd:
		result, err = a.endSession(ctx, st, report.EmployeeCode, report.Timestamp, models.SessionCompleted, Closing{})
	default:
		result, err = a.advance(ctx, st, report)
	}
	if err != nil {
		return Result{}, err
	}

	a.stats.ingested.Add(1)
	return result, nil
}

func (a *Aggregator) checkStale(st *employeeState, report Report) error {
	known := st.known()
	if known.IsZero() || !report.Timestamp.Before(known) {
		return nil
	}
	a.stats.staleDropped.Add(1)
	a.logger.WithFields(logrus.Fields{
		"employee_code": report.EmployeeCode,
		"report_type":   report.ReportType,
		"at":            report.Timestamp.Format(time.RFC3339),
		"known":         known.Format(time.RFC3339),
	}).Debug("Dropped stale report")
	return &apperr.StaleReportError{
		EmployeeCode: report.EmployeeCode,
		At:           report.Timestamp,
		Known:        known,
	}
}

// Finish завершает день отчетом work_end. finalize вызывается под блокировкой сотрудника,
// поэтому таймлайн, который он видит, совпадает с тем, что будет сохранен. Сессия закрывается
// только если finalize вернул nil, итог дня сохраняется той же транзакцией
func (a *Aggregator) Finish(ctx context.Context, report Report, finalize Finalizer) (Result, Closing, error) {
	report.ReportType = models.ReportWorkEnd
	if err := validateReport(&report); err != nil {
		a.logger.WithError(err).Warn("Rejected invalid report")
		return Result{}, Closing{}, err
	}

	st, err := a.lock(ctx, report.EmployeeCode)
	if err != nil {
		return Result{}, Closing{}, err
	}
	defer st.mu.Unlock()

	if err := a.checkStale(st, report); err != nil {
		return Result{}, Closing{}, err
	}

	closing, err := a.finalize(ctx, st, report.EmployeeCode, report.Timestamp, models.SessionCompleted, finalize)
	if err != nil {
		return Result{}, Closing{}, err
	}
	result, err := a.endSession(ctx, st, report.EmployeeCode, report.Timestamp, models.SessionCompleted, closing)
	if err != nil {
		return Result{}, Closing{}, err
	}

	a.stats.ingested.Add(1)
	return result, closing, nil
}

// finalize строит таймлайн закрываемой сессии и передает его в finalize
func (a *Aggregator) finalize(ctx context.Context, st *employeeState, employeeCode string, at time.Time, status string, finalize Finalizer) (Closing, error) {
	if st.session == nil || finalize == nil {
		return Closing{}, nil
	}
	entries, err := a.preview(ctx, st, employeeCode, at)
	if err != nil {
		return Closing{}, err
	}
	session := *st.session
	session.Close(at, status)
	return finalize(ctx, &session, entries)
}

func (a *Aggregator) startSession(ctx context.Context, st *employeeState, report Report) (Result, error) {
	change := &Change{}
	var forced *models.WorkSession

	if open := st.open(); open != nil {
		closed := *open
		closed.Close(report.Timestamp)
		change.Segments = append(change.Segments, &closed)
	}
	if st.session != nil {
		s := *st.session
		s.Close(report.Timestamp, models.SessionForceEnded)
		change.CloseSession = &s
		forced = &s
	}

	session := &models.WorkSession{
		EmployeeCode: report.EmployeeCode,
		WorkDate:     models.WorkDateOf(report.Timestamp),
		StartAt:      report.Timestamp,
		Status:       models.SessionActive,
	}
	segment := models.NewOpenSegment(report.EmployeeCode, 0, report.StatusCode, report.Timestamp, report.Description)
	change.OpenSession = session
	change.Segments = append(change.Segments, segment)

	if err := a.apply(ctx, change); err != nil {
		return Result{}, err
	}

	if forced != nil {
		a.stats.forceClosed.Add(1)
		a.logger.WithFields(logrus.Fields{
			"employee_code": report.EmployeeCode,
			"session_id":    forced.ID,
		}).Warn("Force-closed unfinished session on work start")
	}

	st.session = session
	st.latest = segment

	a.logger.WithFields(logrus.Fields{
		"employee_code": report.EmployeeCode,
		"session_id":    session.ID,
		"segment_id":    segment.ID,
		"status":        segment.StatusCode,
	}).Info("Work session started")

	return Result{Action: ActionOpened, Segment: copySegment(segment), Session: copySession(session), ForceClosed: forced}, nil
}

func (a *Aggregator) advance(ctx context.Context, st *employeeState, report Report) (Result, error) {
	if st.session == nil {
		a.stats.noSession.Add(1)
		return Result{Action: ActionIgnored}, nil
	}

	change := &Change{}
	open := st.open()
	action := ActionRolled

	switch {
	case open == nil:
		// сессия без открытого сегмента, начинаем новый
		next := models.NewOpenSegment(report.EmployeeCode, st.session.ID, report.StatusCode, report.Timestamp, report.Description)
		change.Segments = append(change.Segments, next)
		action = ActionOpened
	case a.isGap(open, report.Timestamp):
		change.Segments = append(change.Segments, a.gapSegments(open, report)...)
	case open.StatusCode == report.StatusCode:
		if !report.Timestamp.After(open.LastReportAt) {
			a.stats.coalesced.Add(1)
			return Result{Action: ActionExtended, Segment: copySegment(open), Session: copySession(st.session)}, nil
		}
		extended := *open
		extended.Extend(report.Timestamp)
		change.Segments = append(change.Segments, &extended)
		action = ActionExtended
	default:
		closed := *open
		closed.Close(report.Timestamp)
		next := models.NewOpenSegment(report.EmployeeCode, st.session.ID, report.StatusCode, report.Timestamp, report.Description)
		change.Segments = append(change.Segments, &closed, next)
	}

	if err := a.apply(ctx, change); err != nil {
		return Result{}, err
	}

	latest := change.Segments[len(change.Segments)-1]
	st.latest = latest

	if action == ActionExtended {
		a.stats.coalesced.Add(1)
	} else {
		a.logger.WithFields(logrus.Fields{
			"employee_code": report.EmployeeCode,
			"segment_id":    latest.ID,
			"status":        latest.StatusCode,
		}).Debug("Opened timeline segment")
	}

	return Result{Action: action, Segment: copySegment(latest), Session: copySession(st.session)}, nil
}

func (a *Aggregator) isGap(open *models.TimelineSegment, at time.Time) bool {
	threshold := a.gapThreshold()
	return threshold > 0 && at.Sub(open.LastReportAt) > threshold
}

// gapSegments закрывает сегмент на последнем отчете и закрывает паузу сегментом offline
func (a *Aggregator) gapSegments(open *models.TimelineSegment, report Report) []*models.TimelineSegment {
	a.stats.offlineGaps.Add(1)

	closed := *open
	closed.Close(open.LastReportAt)

	gap := models.NewOpenSegment(open.EmployeeCode, open.WorkSessionID, models.StatusOffline, open.LastReportAt, "")
	gap.Close(report.Timestamp)

	segments := []*models.TimelineSegment{&closed, gap}
	if report.ReportType != models.ReportWorkEnd {
		next := models.NewOpenSegment(open.EmployeeCode, open.WorkSessionID, report.StatusCode, report.Timestamp, report.Description)
		segments = append(segments, next)
	}
	return segments
}

func (a *Aggregator) endSession(ctx context.Context, st *employeeState, employeeCode string, at time.Time, status string, closing Closing) (Result, error) {
	if st.session == nil {
		a.stats.ignoredEnds.Add(1)
		a.logger.WithField("employee_code", employeeCode).Warn("Work end without active session")
		return Result{Action: ActionIgnored}, nil
	}

	change := &Change{}
	if open := st.open(); open != nil {
		if a.isGap(open, at) {
			change.Segments = a.gapSegments(open, Report{ReportType: models.ReportWorkEnd, Timestamp: at})
		} else {
			closed := *open
			closed.Close(at)
			change.Segments = append(change.Segments, &closed)
		}
	}
	session := *st.session
	session.Close(at, status)
	change.CloseSession = &session
	change.Review = closing.Review
	change.Record = closing.Record

	if err := a.apply(ctx, change); err != nil {
		return Result{}, err
	}

	if n := len(change.Segments); n > 0 {
		st.latest = change.Segments[n-1]
	}
	st.session = nil

	a.logger.WithFields(logrus.Fields{
		"employee_code": employeeCode,
		"session_id":    session.ID,
		"status":        status,
	}).Info("Work session closed")

	return Result{Action: ActionClosed, Segment: copySegment(st.latest), Session: &session}, nil
}

// AutoClose закрывает сессию, если последний отчет старше cutoff. Сессия закрывается на последнем отчете,
// finalize работает так же, как в Finish
func (a *Aggregator) AutoClose(ctx context.Context, employeeCode string, cutoff time.Time, finalize Finalizer) (*models.WorkSession, Closing, error) {
	st, err := a.lock(ctx, employeeCode)
	if err != nil {
		return nil, Closing{}, err
	}
	defer st.mu.Unlock()

	if st.session == nil {
		return nil, Closing{}, nil
	}
	extent := st.known()
	if !extent.Before(cutoff) {
		return nil, Closing{}, nil
	}

	closing, err := a.finalize(ctx, st, employeeCode, extent, models.SessionAutoClosed, finalize)
	if err != nil {
		return nil, Closing{}, err
	}
	// закрытие на последнем отчете не создает разрыва offline
	result, err := a.endSession(ctx, st, employeeCode, extent, models.SessionAutoClosed, closing)
	if err != nil {
		return nil, Closing{}, err
	}
	return result.Session, closing, nil
}

// ActiveSession возвращает активную сессию и момент последнего отчета
func (a *Aggregator) ActiveSession(ctx context.Context, employeeCode string) (*models.WorkSession, time.Time, error) {
	st, err := a.lock(ctx, employeeCode)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer st.mu.Unlock()
	return copySession(st.session), st.known(), nil
}

func (a *Aggregator) apply(ctx context.Context, change *Change) error {
	if change.IsEmpty() {
		return nil
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = a.store.Apply(ctx, change)
		if err == nil {
			return nil
		}
		a.stats.writeFailures.Add(1)
		if attempt >= len(a.retryDelays) || errors.Is(err, context.Canceled) {
			break
		}
		a.logger.WithError(err).WithField("attempt", attempt+1).Warn("Timeline write failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.retryDelays[attempt]):
		}
	}
	a.logger.WithError(err).Error("Timeline write failed")
	return err
}

func copySegment(s *models.TimelineSegment) *models.TimelineSegment {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copySession(s *models.WorkSession) *models.WorkSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
