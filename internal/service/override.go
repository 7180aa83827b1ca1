package service

import (
	"context"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

// OverrideService управляет ручными корректировками и сбоями
// и отдает действующие перекрытия для построения таймлайна
type OverrideService struct {
	repo   repository.OverrideRepository
	logger *logrus.Logger
}

func NewOverrideService(repo repository.OverrideRepository) *OverrideService {
	return &OverrideService{
		repo:   repo,
		logger: logging.New(),
	}
}

// Overrides возвращает активные корректировки сотрудника и активные сбои за интервал
func (s *OverrideService) Overrides(ctx context.Context, employeeCode string, from, to time.Time) ([]models.Override, error) {
	adjustments, err := s.repo.ActiveAdjustments(ctx, employeeCode, from, to)
	if err != nil {
		return nil, err
	}
	incidents, err := s.repo.ActiveIncidents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	overrides := make([]models.Override, 0, len(adjustments)+len(incidents))
	for i := range incidents {
		overrides = append(overrides, incidents[i].AsOverride())
	}
	for i := range adjustments {
		overrides = append(overrides, adjustments[i].AsOverride())
	}
	return overrides, nil
}

// AdjustmentInput - данные корректировки из запроса администратора
type AdjustmentInput struct {
	EmployeeCode string    `json:"employeeCode"`
	StartAt      time.Time `json:"startAt"`
	EndAt        time.Time `json:"endAt"`
	Reason       string    `json:"reason"`
	Note         string    `json:"note"`
}

func (in AdjustmentInput) validate() error {
	if strings.TrimSpace(in.EmployeeCode) == "" {
		return apperr.Invalid("employeeCode", "не указан код сотрудника")
	}
	return validateInterval(in.StartAt, in.EndAt, in.Reason)
}

func validateInterval(start, end time.Time, reason string) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Invalid("startAt", "не указан интервал")
	}
	if !end.After(start) {
		return apperr.Invalid("endAt", "конец интервала должен быть позже начала")
	}
	if strings.TrimSpace(reason) == "" {
		return apperr.Invalid("reason", "не указана причина")
	}
	return nil
}

func (s *OverrideService) CreateAdjustment(ctx context.Context, in AdjustmentInput) (*models.ManualAdjustment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	adjustment := &models.ManualAdjustment{
		EmployeeCode: strings.TrimSpace(in.EmployeeCode),
		StartAt:      in.StartAt.Truncate(time.Second),
		EndAt:        in.EndAt.Truncate(time.Second),
		Reason:       strings.TrimSpace(in.Reason),
		Note:         strings.TrimSpace(in.Note),
		Status:       models.OverrideActive,
	}
	if err := s.repo.CreateAdjustment(ctx, adjustment); err != nil {
		return nil, err
	}
	return adjustment, nil
}

func (s *OverrideService) UpdateAdjustment(ctx context.Context, id uint, in AdjustmentInput) (*models.ManualAdjustment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	adjustment, err := s.repo.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if adjustment == nil {
		return nil, apperr.ErrNotFound
	}

	adjustment.EmployeeCode = strings.TrimSpace(in.EmployeeCode)
	adjustment.StartAt = in.StartAt.Truncate(time.Second)
	adjustment.EndAt = in.EndAt.Truncate(time.Second)
	adjustment.Reason = strings.TrimSpace(in.Reason)
	adjustment.Note = strings.TrimSpace(in.Note)
	if err := s.repo.UpdateAdjustment(ctx, adjustment); err != nil {
		return nil, err
	}
	return adjustment, nil
}

// RevokeAdjustment отзывает корректировку, запись остается в истории
func (s *OverrideService) RevokeAdjustment(ctx context.Context, id uint) error {
	adjustment, err := s.repo.GetAdjustment(ctx, id)
	if err != nil {
		return err
	}
	if adjustment == nil {
		return apperr.ErrNotFound
	}
	if !adjustment.IsActive() {
		return nil
	}

	adjustment.Status = models.OverrideRevoked
	if err := s.repo.UpdateAdjustment(ctx, adjustment); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"id":            id,
		"employee_code": adjustment.EmployeeCode,
	}).Info("Manual adjustment revoked")
	return nil
}

func (s *OverrideService) ListAdjustments(ctx context.Context, employeeCode string, from, to time.Time) ([]models.ManualAdjustment, error) {
	return s.repo.ListAdjustments(ctx, strings.TrimSpace(employeeCode), from, to)
}

// IncidentInput - данные сбоя из запроса администратора
type IncidentInput struct {
	StartAt time.Time `json:"startAt"`
	EndAt   time.Time `json:"endAt"`
	Reason  string    `json:"reason"`
	Note    string    `json:"note"`
}

func (s *OverrideService) CreateIncident(ctx context.Context, in IncidentInput) (*models.SystemIncident, error) {
	if err := validateInterval(in.StartAt, in.EndAt, in.Reason); err != nil {
		return nil, err
	}

	incident := &models.SystemIncident{
		StartAt: in.StartAt.Truncate(time.Second),
		EndAt:   in.EndAt.Truncate(time.Second),
		Reason:  strings.TrimSpace(in.Reason),
		Note:    strings.TrimSpace(in.Note),
		Status:  models.OverrideActive,
	}
	if err := s.repo.CreateIncident(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

func (s *OverrideService) UpdateIncident(ctx context.Context, id uint, in IncidentInput) (*models.SystemIncident, error) {
	if err := validateInterval(in.StartAt, in.EndAt, in.Reason); err != nil {
		return nil, err
	}

	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, apperr.ErrNotFound
	}

	incident.StartAt = in.StartAt.Truncate(time.Second)
	incident.EndAt = in.EndAt.Truncate(time.Second)
	incident.Reason = strings.TrimSpace(in.Reason)
	incident.Note = strings.TrimSpace(in.Note)
	if err := s.repo.UpdateIncident(ctx, incident); err != nil {
		return nil, err
	}
	return incident, nil
}

func (s *OverrideService) RevokeIncident(ctx context.Context, id uint) error {
	incident, err := s.repo.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if incident == nil {
		return apperr.ErrNotFound
	}
	if !incident.IsActive() {
		return nil
	}

	incident.Status = models.OverrideRevoked
	if err := s.repo.UpdateIncident(ctx, incident); err != nil {
		return err
	}

	s.logger.WithField("id", id).Info("System incident revoked")
	return nil
}

func (s *OverrideService) ListIncidents(ctx context.Context, from, to time.Time) ([]models.SystemIncident, error) {
	return s.repo.ListIncidents(ctx, from, to)
}
