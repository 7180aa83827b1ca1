package service

import (
	"context"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/classifier"
	"worksentry/internal/live"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/timeline"

	"github.com/sirupsen/logrus"
)

// ReportInput - отчет агента
type ReportInput struct {
	models.ActivitySample
	Reason string `json:"reason"`
	// Checkout - заполненная анкета, передается с work_end
	Checkout *models.CheckoutSubmission `json:"checkout,omitempty"`
}

// ReportReply - ответ агенту: действующая политика и принятый статус
type ReportReply struct {
	models.ClientPolicy
	Accepted    bool      `json:"accepted"`
	StatusCode  string    `json:"statusCode"`
	StatusLabel string    `json:"statusLabel"`
	Action      string    `json:"action,omitempty"`
	ReviewID    uint      `json:"reviewId,omitempty"`
	RecordID    uint      `json:"recordId,omitempty"`
	ServerTime  time.Time `json:"serverTime"`
}

// ReportService принимает отчеты агентов: классифицирует, обновляет таймлайн и live-состояние
type ReportService struct {
	rules      *RuleService
	settings   *SettingsService
	aggregator *timeline.Aggregator
	tracker    *live.Tracker
	checkout   *CheckoutService
	now        func() time.Time
	logger     *logrus.Logger
}

func NewReportService(
	rules *RuleService,
	settings *SettingsService,
	aggregator *timeline.Aggregator,
	tracker *live.Tracker,
	checkout *CheckoutService,
) *ReportService {
	return &ReportService{
		rules:      rules,
		settings:   settings,
		aggregator: aggregator,
		tracker:    tracker,
		checkout:   checkout,
		now:        time.Now,
		logger:     logging.New(),
	}
}

// SetClock подменяет часы (для тестов)
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

// Report обрабатывает отчет сотрудника. Устаревший отчет отбрасывается без ошибки
func (s *ReportService) Report(ctx context.Context, employee *models.Employee, in ReportInput) (*ReportReply, error) {
	settings := s.settings.Current()
	if settings.RequiresUpdate(in.ClientVersion) {
		return nil, apperr.ErrUpdateRequired
	}

	now := s.now().UTC().Truncate(time.Second)
	sample := in.ActivitySample
	sample.EmployeeCode = employee.Code
	// время агента в будущем не принимается
	if sample.Timestamp.IsZero() || sample.Timestamp.After(now) {
		sample.Timestamp = now
	}
	sample.Normalize()
	if !sample.IsValid() {
		return nil, apperr.Invalid("reportType", "некорректный отчет")
	}

	status := classifier.Classify(sample, s.rules.RuleSet(), settings.IdleThresholdSeconds)
	description := classifier.DescribeSample(sample)

	reply := &ReportReply{
		ClientPolicy: settings.Policy(),
		StatusCode:   status,
		StatusLabel:  models.StatusLabel(status),
		ServerTime:   now,
	}

	var result timeline.Result
	if sample.ReportType == models.ReportWorkEnd {
		outcome, err := s.checkout.Checkout(ctx, CheckoutInput{
			Employee:    employee,
			At:          sample.Timestamp,
			StatusCode:  status,
			Description: description,
			Reason:      strings.TrimSpace(in.Reason),
			Form:        in.Checkout,
		})
		if apperr.IsStale(err) {
			return reply, nil
		}
		if err != nil {
			return nil, err
		}
		result = outcome.Result
		if outcome.Review != nil {
			reply.ReviewID = outcome.Review.ID
		}
		if outcome.Record != nil {
			reply.RecordID = outcome.Record.ID
		}
	} else {
		var err error
		result, err = s.aggregator.Ingest(ctx, timeline.Report{
			EmployeeCode: employee.Code,
			StatusCode:   status,
			Timestamp:    sample.Timestamp,
			ReportType:   sample.ReportType,
			Description:  description,
		})
		if apperr.IsStale(err) {
			return reply, nil
		}
		if err != nil {
			s.logger.WithError(err).WithField("employee_code", employee.Code).Error("Failed to ingest report")
			return nil, err
		}
	}

	update := live.Update{
		EmployeeCode: employee.Code,
		StatusCode:   status,
		LastSeenAt:   sample.Timestamp,
		ReportType:   sample.ReportType,
		Description:  description,
	}
	// без рабочей сессии сотрудник не на работе, что бы ни присылал агент
	if result.Action == timeline.ActionIgnored {
		update.ReportType = models.ReportWorkEnd
	}
	s.tracker.Update(update)

	reply.Accepted = true
	reply.Action = result.Action

	s.logger.WithFields(logrus.Fields{
		"employee_code": employee.Code,
		"status":        status,
		"report_type":   sample.ReportType,
		"action":        result.Action,
	}).Debug("Report accepted")

	return reply, nil
}
