package service

import (
	"context"
	"encoding/json"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

// Действия журнала
const (
	AuditEmployeeCreate    = "employee.create"
	AuditEmployeeUpdate    = "employee.update"
	AuditDeviceReset       = "employee.reset_device"
	AuditDepartmentCreate  = "department.create"
	AuditDepartmentUpdate  = "department.update"
	AuditDepartmentDelete  = "department.delete"
	AuditRulesUpdate       = "rules.update"
	AuditRulesReload       = "rules.reload"
	AuditAttendanceUpdate  = "attendance_rule.update"
	AuditSettingsUpdate    = "settings.update"
	AuditOverrideCreate    = "override.create"
	AuditOverrideDelete    = "override.delete"
	AuditTemplateChange    = "checkout_template.change"
	AuditFieldChange       = "checkout_field.change"
	AuditReviewReasonGiven = "review.reason"
)

// AuditService ведет журнал изменений настроек, сотрудников и отделов
type AuditService struct {
	audit  repository.AuditRepository
	logger *logrus.Logger
}

func NewAuditService(audit repository.AuditRepository) *AuditService {
	return &AuditService{
		audit:  audit,
		logger: logging.New(),
	}
}

// Record пишет запись журнала. Ошибка записи не отменяет само изменение
func (s *AuditService) Record(ctx context.Context, operator, action, targetType, targetID string, detail any) {
	if s == nil {
		return
	}
	entry := &models.AuditLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Operator:   operator,
	}
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			s.logger.WithError(err).WithField("action", action).Warn("Failed to encode audit detail")
		} else {
			entry.Detail = raw
		}
	}

	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"target_id": targetID,
		}).Error("Failed to record audit entry")
	}
}

// List возвращает журнал за дату 2006-01-02
func (s *AuditService) List(ctx context.Context, date string) ([]models.AuditLog, error) {
	from, to, err := models.DayWindow(date)
	if err != nil {
		return nil, apperr.Invalid("date", "дата должна быть в формате ГГГГ-ММ-ДД")
	}
	entries, err := s.audit.List(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return entries, nil
}
