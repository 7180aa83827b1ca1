package models

import "strings"

// AttendanceRule - правило отдела для оценки завершенного дня
type AttendanceRule struct {
	ID                    uint  `gorm:"primarykey" json:"id"`
	DepartmentID          uint  `gorm:"uniqueIndex;not null" json:"departmentId"`
	TargetSeconds         int64 `gorm:"not null;default:0" json:"targetSeconds"`
	MaxBreakSeconds       int64 `gorm:"not null;default:0" json:"maxBreakSeconds"`
	MaxBreakCount         int64 `gorm:"not null;default:0" json:"maxBreakCount"`
	MaxBreakSingleSeconds int64 `gorm:"not null;default:0" json:"maxBreakSingleSeconds"`
	Enabled               bool  `gorm:"not null" json:"enabled"`
}

func (AttendanceRule) TableName() string {
	return "attendance_rules"
}

// IsValid проверяет валидность данных
func (r *AttendanceRule) IsValid() bool {
	if r.DepartmentID == 0 {
		return false
	}
	return r.TargetSeconds >= 0 && r.MaxBreakSeconds >= 0 && r.MaxBreakCount >= 0 && r.MaxBreakSingleSeconds >= 0
}

// Действия при нарушении порога
const (
	TriggerShowOnly      = "show_only"
	TriggerRequireReason = "require_reason"
)

// StatusThreshold - порог длительности статуса, один на статус в отделе.
// MinSeconds и MaxSeconds независимы, ноль означает "граница не задана"
type StatusThreshold struct {
	ID            uint   `gorm:"primarykey" json:"id"`
	DepartmentID  uint   `gorm:"not null;uniqueIndex:idx_thresholds_department_status,priority:1" json:"departmentId"`
	StatusCode    string `gorm:"type:varchar(16);not null;uniqueIndex:idx_thresholds_department_status,priority:2" json:"statusCode"`
	MinSeconds    int64  `gorm:"not null;default:0" json:"minSeconds"`
	MaxSeconds    int64  `gorm:"not null;default:0" json:"maxSeconds"`
	TriggerAction string `gorm:"type:varchar(20);not null" json:"triggerAction"`
	Enabled       bool   `gorm:"not null" json:"enabled"`
}

func (StatusThreshold) TableName() string {
	return "status_thresholds"
}

// IsValid проверяет валидность данных
func (t *StatusThreshold) IsValid() bool {
	if !IsThresholdStatus(t.StatusCode) {
		return false
	}
	if t.MinSeconds < 0 || t.MaxSeconds < 0 {
		return false
	}
	if t.MinSeconds > 0 && t.MaxSeconds > 0 && t.MinSeconds > t.MaxSeconds {
		return false
	}
	return t.TriggerAction == TriggerShowOnly || t.TriggerAction == TriggerRequireReason
}

// Normalize приводит поля к каноническому виду
func (t *StatusThreshold) Normalize() {
	t.StatusCode = strings.TrimSpace(strings.ToLower(t.StatusCode))
	t.TriggerAction = strings.TrimSpace(strings.ToLower(t.TriggerAction))
	if t.TriggerAction == "" {
		t.TriggerAction = TriggerShowOnly
	}
}
