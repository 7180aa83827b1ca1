package models

import (
	"time"
)

type WorkSession struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	EmployeeCode string     `gorm:"type:varchar(32);not null;index" json:"employeeCode"`
	WorkDate     string     `gorm:"type:varchar(10);not null;index" json:"workDate"`
	StartAt      time.Time  `gorm:"not null" json:"startAt"`
	EndAt        *time.Time `json:"endAt"`
	Status       string     `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (WorkSession) TableName() string {
	return "work_sessions"
}

// Статусы рабочих сессий
const (
	SessionActive     = "active"      // На работе
	SessionCompleted  = "completed"   // Рабочий день завершен
	SessionForceEnded = "force_ended" // Закрыта новым началом дня
	SessionAutoClosed = "auto_closed" // Закрыта фоновой задачей
)

// IsActive проверяет, активна ли сессия
func (ws *WorkSession) IsActive() bool {
	return ws.Status == SessionActive && ws.EndAt == nil
}

// Close завершает сессию с указанным статусом
func (ws *WorkSession) Close(at time.Time, status string) {
	end := at
	ws.EndAt = &end
	ws.Status = status
}

// DurationSeconds возвращает продолжительность сессии на момент now
func (ws *WorkSession) DurationSeconds(now time.Time) int64 {
	end := now
	if ws.EndAt != nil {
		end = *ws.EndAt
	}
	if end.Before(ws.StartAt) {
		return 0
	}
	return int64(end.Sub(ws.StartAt) / time.Second)
}

// IsValid проверяет валидность данных
func (ws *WorkSession) IsValid() bool {
	if ws.EmployeeCode == "" {
		return false
	}
	if ws.StartAt.IsZero() || ws.WorkDate == "" {
		return false
	}
	if ws.EndAt != nil && ws.EndAt.Before(ws.StartAt) {
		return false
	}
	switch ws.Status {
	case SessionActive, SessionCompleted, SessionForceEnded, SessionAutoClosed:
		return true
	default:
		return false
	}
}
