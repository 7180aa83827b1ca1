package models

import (
	"strings"
	"time"
)

// ManualAdjustment - ручная корректировка интервала сотрудника.
// При построении отчета перекрывает данные агента, сами данные не удаляются
type ManualAdjustment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EmployeeCode string    `gorm:"type:varchar(32);not null;index" json:"employeeCode"`
	StartAt      time.Time `gorm:"not null;index" json:"startAt"`
	EndAt        time.Time `gorm:"not null;index" json:"endAt"`
	Reason       string    `gorm:"not null" json:"reason"`
	Note         string    `json:"note"`
	Status       string    `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (ManualAdjustment) TableName() string {
	return "manual_adjustments"
}

// SystemIncident - глобальный сбой, действует на всех сотрудников
type SystemIncident struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StartAt   time.Time `gorm:"not null;index" json:"startAt"`
	EndAt     time.Time `gorm:"not null;index" json:"endAt"`
	Reason    string    `gorm:"not null" json:"reason"`
	Note      string    `json:"note"`
	Status    string    `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (SystemIncident) TableName() string {
	return "system_incidents"
}

const (
	OverrideActive  = "active"
	OverrideRevoked = "revoked"
)

// IsValid проверяет валидность данных
func (m *ManualAdjustment) IsValid() bool {
	if strings.TrimSpace(m.EmployeeCode) == "" || strings.TrimSpace(m.Reason) == "" {
		return false
	}
	return m.EndAt.After(m.StartAt)
}

func (m *ManualAdjustment) IsActive() bool {
	return m.Status == OverrideActive
}

// IsValid проверяет валидность данных
func (i *SystemIncident) IsValid() bool {
	if strings.TrimSpace(i.Reason) == "" {
		return false
	}
	return i.EndAt.After(i.StartAt)
}

func (i *SystemIncident) IsActive() bool {
	return i.Status == OverrideActive
}

// Override - общий вид перекрытия для наложения на таймлайн
type Override struct {
	StartAt    time.Time
	EndAt      time.Time
	StatusCode string
	Source     string
	Label      string
	// Fill - заполнять интервал даже там, где нет данных агента
	Fill bool
}

// AsOverride - корректировка засчитывается как работа на всем интервале
func (m *ManualAdjustment) AsOverride() Override {
	return Override{
		StartAt:    m.StartAt,
		EndAt:      m.EndAt,
		StatusCode: StatusWork,
		Source:     SourceManual,
		Label:      m.Reason,
		Fill:       true,
	}
}

// AsOverride - сбой затеняет только интервалы, где есть данные агента
func (i *SystemIncident) AsOverride() Override {
	return Override{
		StartAt:    i.StartAt,
		EndAt:      i.EndAt,
		StatusCode: StatusIncident,
		Source:     SourceIncident,
		Label:      i.Reason,
	}
}
