// Package apperr описывает ошибки, которые различают слои сервиса.
package apperr

import (
	"errors"
	"fmt"
	"time"

	"worksentry/internal/models"
)

var (
	ErrNotFound        = errors.New("запись не найдена")
	ErrUnauthorized    = errors.New("нет доступа")
	ErrReviewFinalized = errors.New("причина уже указана и не может быть изменена")
	ErrDepartmentInUse = errors.New("в отделе есть сотрудники, удаление невозможно")
	ErrTemplateChanged = errors.New("анкета обновлена, загрузите ее заново")

	ErrEmployeeDisabled = errors.New("сотрудник отключен")
	ErrDeviceMismatch   = errors.New("устройство не совпадает, обратитесь к администратору для сброса привязки")
	ErrUpdateRequired   = errors.New("требуется обновить агент")
)

// ValidationError - некорректные входные данные, состояние не меняется
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StaleReportError - отчет старше уже известной истории сотрудника
type StaleReportError struct {
	EmployeeCode string
	At           time.Time
	Known        time.Time
}

func (e *StaleReportError) Error() string {
	return fmt.Sprintf("устаревший отчет %s: %s раньше %s",
		e.EmployeeCode,
		e.At.Format(time.RFC3339),
		e.Known.Format(time.RFC3339))
}

// NeedReasonError - завершение дня заблокировано до указания причины
type NeedReasonError struct {
	Violations []models.Violation
	Summary    models.TimelineSummary
}

func (e *NeedReasonError) Error() string {
	return "для завершения рабочего дня нужно указать причину"
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsStale(err error) bool {
	var target *StaleReportError
	return errors.As(err, &target)
}
