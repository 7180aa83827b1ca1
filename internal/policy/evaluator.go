// Package policy проверяет завершенный день сотрудника по правилам отдела.
package policy

import (
	"context"
	"fmt"

	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
)

// RuleSource отдает настройки отдела. Отсутствие правила не ошибка: (nil, nil)
type RuleSource interface {
	AttendanceRule(ctx context.Context, departmentID uint) (*models.AttendanceRule, error)
	StatusThresholds(ctx context.Context, departmentID uint) ([]models.StatusThreshold, error)
}

// Evaluation - результат проверки
type Evaluation struct {
	Enabled        bool                   `json:"enabled"`
	Violations     []models.Violation     `json:"violations"`
	ReasonRequired bool                   `json:"reasonRequired"`
	Summary        models.TimelineSummary `json:"summary"`
}

type Evaluator struct {
	rules  RuleSource
	logger *logrus.Logger
}

func NewEvaluator(rules RuleSource, logger *logrus.Logger) *Evaluator {
	return &Evaluator{
		rules:  rules,
		logger: logger,
	}
}

// Evaluate проверяет таймлайн. Если отдел не настроен или правило выключено, нарушений нет
func (e *Evaluator) Evaluate(ctx context.Context, departmentID uint, employeeCode string, timeline []models.TimelineEntry) (Evaluation, error) {
	result := Evaluation{Summary: models.Summarize(timeline)}

	rule, err := e.rules.AttendanceRule(ctx, departmentID)
	if err != nil {
		return result, err
	}
	if rule != nil && !rule.Enabled {
		e.logger.WithField("department_id", departmentID).Debug("Attendance rule disabled")
		return result, nil
	}

	thresholds, err := e.rules.StatusThresholds(ctx, departmentID)
	if err != nil {
		return result, err
	}
	if rule == nil && len(thresholds) == 0 {
		return result, nil
	}

	result.Enabled = true
	if rule != nil {
		result.Violations = append(result.Violations, ruleViolations(rule, result.Summary)...)
	}
	for i := range thresholds {
		result.Violations = append(result.Violations, thresholdViolations(&thresholds[i], result.Summary)...)
	}
	for _, v := range result.Violations {
		if v.RequiresReason() {
			result.ReasonRequired = true
			break
		}
	}

	if len(result.Violations) > 0 {
		e.logger.WithFields(logrus.Fields{
			"employee_code":   employeeCode,
			"department_id":   departmentID,
			"violations":      len(result.Violations),
			"reason_required": result.ReasonRequired,
		}).Info("Attendance violations found")
	}
	return result, nil
}

// ruleViolations проверяет перерывы и целевое время. Нулевой лимит не проверяется
func ruleViolations(rule *models.AttendanceRule, summary models.TimelineSummary) []models.Violation {
	var violations []models.Violation

	if rule.MaxBreakCount > 0 && summary.BreakCount > rule.MaxBreakCount {
		violations = append(violations, models.Violation{
			Type:          models.ViolationBreakCount,
			StatusCode:    models.StatusBreak,
			StatusLabel:   models.StatusLabel(models.StatusBreak),
			TriggerAction: models.TriggerRequireReason,
			ActualSeconds: summary.BreakCount,
			LimitSeconds:  rule.MaxBreakCount,
			LimitType:     models.LimitMax,
			Message:       fmt.Sprintf("Перерывов: %d, допустимо не более %d", summary.BreakCount, rule.MaxBreakCount),
		})
	}
	if rule.MaxBreakSingleSeconds > 0 && summary.MaxSingleBreakSeconds > rule.MaxBreakSingleSeconds {
		violations = append(violations, models.Violation{
			Type:          models.ViolationBreakSingle,
			StatusCode:    models.StatusBreak,
			StatusLabel:   models.StatusLabel(models.StatusBreak),
			TriggerAction: models.TriggerRequireReason,
			ActualSeconds: summary.MaxSingleBreakSeconds,
			LimitSeconds:  rule.MaxBreakSingleSeconds,
			LimitType:     models.LimitMax,
			Message: fmt.Sprintf("Самый долгий перерыв %s, допустимо не более %s",
				FormatDuration(summary.MaxSingleBreakSeconds), FormatDuration(rule.MaxBreakSingleSeconds)),
		})
	}
	if rule.MaxBreakSeconds > 0 && summary.BreakSeconds > rule.MaxBreakSeconds {
		violations = append(violations, models.Violation{
			Type:          models.ViolationBreakTotal,
			StatusCode:    models.StatusBreak,
			StatusLabel:   models.StatusLabel(models.StatusBreak),
			TriggerAction: models.TriggerRequireReason,
			ActualSeconds: summary.BreakSeconds,
			LimitSeconds:  rule.MaxBreakSeconds,
			LimitType:     models.LimitMax,
			Message: fmt.Sprintf("Перерывы всего %s, допустимо не более %s",
				FormatDuration(summary.BreakSeconds), FormatDuration(rule.MaxBreakSeconds)),
		})
	}
	if rule.TargetSeconds > 0 && summary.ProductiveSeconds < rule.TargetSeconds {
		violations = append(violations, models.Violation{
			Type:          models.ViolationTarget,
			TriggerAction: models.TriggerRequireReason,
			ActualSeconds: summary.ProductiveSeconds,
			LimitSeconds:  rule.TargetSeconds,
			LimitType:     models.LimitMin,
			Message: fmt.Sprintf("Отработано %s при норме %s",
				FormatDuration(summary.ProductiveSeconds), FormatDuration(rule.TargetSeconds)),
		})
	}
	return violations
}

// thresholdViolations сравнивает сумму статуса с обеими границами, заданными независимо
func thresholdViolations(t *models.StatusThreshold, summary models.TimelineSummary) []models.Violation {
	if !t.Enabled {
		return nil
	}
	total := summary.StatusTotals[t.StatusCode]
	label := models.StatusLabel(t.StatusCode)

	var violations []models.Violation
	if t.MinSeconds > 0 && total < t.MinSeconds {
		violations = append(violations, models.Violation{
			Type:          models.ViolationStatusThreshold,
			StatusCode:    t.StatusCode,
			StatusLabel:   label,
			TriggerAction: t.TriggerAction,
			ActualSeconds: total,
			LimitSeconds:  t.MinSeconds,
			LimitType:     models.LimitMin,
			Message:       fmt.Sprintf("%s: %s, минимум %s", label, FormatDuration(total), FormatDuration(t.MinSeconds)),
		})
	}
	if t.MaxSeconds > 0 && total > t.MaxSeconds {
		violations = append(violations, models.Violation{
			Type:          models.ViolationStatusThreshold,
			StatusCode:    t.StatusCode,
			StatusLabel:   label,
			TriggerAction: t.TriggerAction,
			ActualSeconds: total,
			LimitSeconds:  t.MaxSeconds,
			LimitType:     models.LimitMax,
			Message:       fmt.Sprintf("%s: %s, максимум %s", label, FormatDuration(total), FormatDuration(t.MaxSeconds)),
		})
	}
	return violations
}

// FormatDuration форматирует секунды как "1ч 05м"
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours == 0 {
		return fmt.Sprintf("%dм", minutes)
	}
	return fmt.Sprintf("%dч %02dм", hours, minutes)
}
