package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/policy"
	"worksentry/internal/timeline"

	"github.com/sirupsen/logrus"
)

// CheckoutInput - отчет work_end после классификации
type CheckoutInput struct {
	Employee    *models.Employee
	At          time.Time
	StatusCode  string
	Description string
	Reason      string
	Form        *models.CheckoutSubmission
}

// CheckoutOutcome - результат завершения дня
type CheckoutOutcome struct {
	Result     timeline.Result
	Evaluation policy.Evaluation
	// Review = nil, если активной сессии не было
	Review *models.CheckoutReview
	Record *models.CheckoutRecord
}

// CheckoutService завершает рабочий день: оценивает таймлайн и закрывает сессию
// одной транзакцией с итогом дня и анкетой
type CheckoutService struct {
	aggregator *timeline.Aggregator
	evaluator  *policy.Evaluator
	forms      *CheckoutFormService
	stats      *DailyStatService
	notifier   Notifier
	now        func() time.Time
	logger     *logrus.Logger

	wg sync.WaitGroup
}

func NewCheckoutService(
	aggregator *timeline.Aggregator,
	evaluator *policy.Evaluator,
	forms *CheckoutFormService,
	stats *DailyStatService,
	notifier Notifier,
) *CheckoutService {
	return &CheckoutService{
		aggregator: aggregator,
		evaluator:  evaluator,
		forms:      forms,
		stats:      stats,
		notifier:   notifier,
		now:        time.Now,
		logger:     logging.New(),
	}
}

// Checkout завершает день. Если нарушения требуют причину, а ее нет,
// возвращает NeedReasonError и оставляет сессию открытой
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutOutcome, error) {
	employee := in.Employee
	reason := strings.TrimSpace(in.Reason)

	var evaluation policy.Evaluation
	finalize := func(ctx context.Context, session *models.WorkSession, entries []models.TimelineEntry) (timeline.Closing, error) {
		var record *models.CheckoutRecord
		if s.forms != nil {
			var err error
			if record, err = s.forms.BuildRecord(ctx, employee, session, in.Form); err != nil {
				return timeline.Closing{}, err
			}
		}

		var err error
		evaluation, err = s.evaluator.Evaluate(ctx, employee.DepartmentID, employee.Code, entries)
		if err != nil {
			return timeline.Closing{}, err
		}
		if evaluation.ReasonRequired && reason == "" {
			s.logger.WithFields(logrus.Fields{
				"employee_code": employee.Code,
				"violations":    len(evaluation.Violations),
			}).Info("Work end blocked until reason is supplied")
			return timeline.Closing{}, &apperr.NeedReasonError{
				Violations: evaluation.Violations,
				Summary:    evaluation.Summary,
			}
		}

		return timeline.Closing{Review: s.newReview(employee, session, evaluation, reason), Record: record}, nil
	}

	result, closing, err := s.aggregator.Finish(ctx, timeline.Report{
		EmployeeCode: employee.Code,
		StatusCode:   in.StatusCode,
		Timestamp:    in.At,
		Description:  in.Description,
	}, finalize)
	if err != nil {
		return nil, err
	}

	outcome := &CheckoutOutcome{Result: result, Evaluation: evaluation, Review: closing.Review, Record: closing.Record}
	if closing.Review != nil {
		s.afterClose(employee, closing.Review)
	}
	return outcome, nil
}

// AutoClose закрывает сессию, если последний отчет старше cutoff.
// Итог дня ждет причину, так как сотрудник не завершил день сам
func (s *CheckoutService) AutoClose(ctx context.Context, employee *models.Employee, cutoff time.Time) (*models.CheckoutReview, error) {
	finalize := func(ctx context.Context, session *models.WorkSession, entries []models.TimelineEntry) (timeline.Closing, error) {
		evaluation, err := s.evaluator.Evaluate(ctx, employee.DepartmentID, employee.Code, entries)
		if err != nil {
			return timeline.Closing{}, err
		}
		review := s.newReview(employee, session, evaluation, "")
		review.AutoClosed = true
		review.ReasonRequired = true
		return timeline.Closing{Review: review}, nil
	}

	closed, closing, err := s.aggregator.AutoClose(ctx, employee.Code, cutoff, finalize)
	if err != nil {
		return nil, err
	}
	if closed == nil || closing.Review == nil {
		return nil, nil
	}

	s.logger.WithFields(logrus.Fields{
		"employee_code": employee.Code,
		"session_id":    closed.ID,
		"last_report":   closing.Review.EndAt.Format(time.RFC3339),
	}).Info("Stale work session auto-closed")

	s.afterClose(employee, closing.Review)
	return closing.Review, nil
}

// Wait ждет фоновые пересчеты и уведомления
func (s *CheckoutService) Wait() {
	s.wg.Wait()
}

func (s *CheckoutService) newReview(employee *models.Employee, session *models.WorkSession, evaluation policy.Evaluation, reason string) *models.CheckoutReview {
	end := session.StartAt
	if session.EndAt != nil {
		end = *session.EndAt
	}
	review := &models.CheckoutReview{
		EmployeeCode:   employee.Code,
		WorkDate:       session.WorkDate,
		WorkSessionID:  session.ID,
		DepartmentID:   employee.DepartmentID,
		StartAt:        session.StartAt.UTC(),
		EndAt:          end.UTC(),
		Violations:     evaluation.Violations,
		ReasonRequired: evaluation.ReasonRequired,
		Reason:         reason,
	}
	if reason != "" {
		at := s.now().UTC()
		review.ReasonAt = &at
	}
	review.ApplySummary(evaluation.Summary)
	return review
}

// afterClose пересчитывает дневные итоги и уведомляет администратора в фоне
func (s *CheckoutService) afterClose(employee *models.Employee, review *models.CheckoutReview) {
	dates := []string{review.WorkDate}
	if endDate := models.WorkDateOf(review.EndAt); endDate != review.WorkDate {
		dates = append(dates, endDate)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if s.stats != nil {
			for _, date := range dates {
				if _, err := s.stats.Recalculate(ctx, employee.Code, date); err != nil {
					s.logger.WithError(err).Error("Failed to update daily stats after checkout")
				}
			}
		}

		if s.notifier != nil && (review.HasViolations() || review.AutoClosed) {
			if err := s.notifier.Notify(FormatReview(review, employee.Name)); err != nil {
				s.logger.WithError(err).Warn("Failed to send review notification")
			}
		}
	}()
}
