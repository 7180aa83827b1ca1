package models

import (
	"strings"
	"time"
)

// CheckoutReview - итог завершения рабочего дня с нарушениями и причиной.
// Запись только дополняется: указанную причину изменить нельзя
type CheckoutReview struct {
	ID                uint             `gorm:"primarykey" json:"id"`
	EmployeeCode      string           `gorm:"type:varchar(32);not null;index:idx_reviews_employee_date,priority:1" json:"employeeCode"`
	WorkDate          string           `gorm:"type:varchar(10);not null;index:idx_reviews_employee_date,priority:2" json:"workDate"`
	WorkSessionID     uint             `gorm:"index" json:"workSessionId"`
	DepartmentID      uint             `gorm:"index" json:"departmentId"`
	StartAt           time.Time        `gorm:"not null" json:"startAt"`
	EndAt             time.Time        `gorm:"not null" json:"endAt"`
	Violations        []Violation      `gorm:"serializer:json" json:"violations"`
	StatusTotals      map[string]int64 `gorm:"serializer:json" json:"statusTotals"`
	ProductiveSeconds int64            `gorm:"not null;default:0" json:"productiveSeconds"`
	BreakSeconds      int64            `gorm:"not null;default:0" json:"breakSeconds"`
	BreakCount        int64            `gorm:"not null;default:0" json:"breakCount"`
	ReasonRequired    bool             `gorm:"not null" json:"reasonRequired"`
	Reason            string           `json:"reason"`
	ReasonAt          *time.Time       `json:"reasonAt"`
	AutoClosed        bool             `gorm:"not null" json:"autoClosed"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"createdAt"`
}

func (CheckoutReview) TableName() string {
	return "checkout_reviews"
}

// Состояние причины в записи
const (
	ReasonNotRequired = "not_required"
	ReasonPending     = "pending"
	ReasonSubmitted   = "submitted"
)

// ReasonStatus возвращает состояние причины
func (r *CheckoutReview) ReasonStatus() string {
	if strings.TrimSpace(r.Reason) != "" {
		return ReasonSubmitted
	}
	if r.ReasonRequired {
		return ReasonPending
	}
	return ReasonNotRequired
}

// CanSubmitReason - причину можно указать один раз
func (r *CheckoutReview) CanSubmitReason() bool {
	return strings.TrimSpace(r.Reason) == ""
}

// HasViolations проверяет, есть ли нарушения
func (r *CheckoutReview) HasViolations() bool {
	return len(r.Violations) > 0
}

// ApplySummary копирует агрегаты таймлайна в запись
func (r *CheckoutReview) ApplySummary(summary TimelineSummary) {
	r.StatusTotals = summary.StatusTotals
	r.ProductiveSeconds = summary.ProductiveSeconds
	r.BreakSeconds = summary.BreakSeconds
	r.BreakCount = summary.BreakCount
}
