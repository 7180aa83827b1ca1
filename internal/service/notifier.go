package service

import (
	"fmt"
	"strings"
	"time"

	"worksentry/internal/models"
	"worksentry/internal/policy"
)

// Notifier отправляет уведомления администратору
type Notifier interface {
	Notify(text string) error
}

// FormatReview форматирует итог дня для уведомления
func FormatReview(review *models.CheckoutReview, employeeName string) string {
	if review == nil {
		return "❌ Итог дня не найден"
	}

	who := review.EmployeeCode
	if employeeName != "" {
		who = fmt.Sprintf("%s (%s)", employeeName, review.EmployeeCode)
	}

	title := "🏁 Завершение рабочего дня"
	if review.AutoClosed {
		title = "⏱ Рабочий день закрыт автоматически"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n👤 %s\n📅 %s\n", title, who, review.WorkDate)
	fmt.Fprintf(&b, "⏰ %s - %s\n",
		review.StartAt.In(time.Local).Format("15:04"),
		review.EndAt.In(time.Local).Format("15:04"))
	fmt.Fprintf(&b, "✅ В зачет: %s\n☕ Перерывы: %s (%d)\n",
		policy.FormatDuration(review.ProductiveSeconds),
		policy.FormatDuration(review.BreakSeconds),
		review.BreakCount)

	if review.HasViolations() {
		b.WriteString("\n⚠️ Нарушения:\n")
		for _, v := range review.Violations {
			marker := "•"
			if v.RequiresReason() {
				marker = "❗"
			}
			fmt.Fprintf(&b, "%s %s\n", marker, v.Message)
		}
	}

	switch review.ReasonStatus() {
	case models.ReasonSubmitted:
		fmt.Fprintf(&b, "\n📝 Причина: %s", review.Reason)
	case models.ReasonPending:
		b.WriteString("\n📝 Причина ожидается")
	}

	return strings.TrimRight(b.String(), "\n")
}
