package models

import (
	"time"
)

// DailyStat - итоги дня сотрудника, пересчитываются при завершении дня
type DailyStat struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	EmployeeCode string `gorm:"type:varchar(32);not null;uniqueIndex:idx_daily_stats_employee_date,priority:1" json:"employeeCode"`
	WorkDate     string `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_stats_employee_date,priority:2" json:"workDate"`

	// Длительность по статусам
	WorkSeconds     int64 `gorm:"not null;default:0" json:"workSeconds"`
	NormalSeconds   int64 `gorm:"not null;default:0" json:"normalSeconds"`
	FishSeconds     int64 `gorm:"not null;default:0" json:"fishSeconds"`
	IdleSeconds     int64 `gorm:"not null;default:0" json:"idleSeconds"`
	BreakSeconds    int64 `gorm:"not null;default:0" json:"breakSeconds"`
	OfflineSeconds  int64 `gorm:"not null;default:0" json:"offlineSeconds"`
	IncidentSeconds int64 `gorm:"not null;default:0" json:"incidentSeconds"`
	BreakCount      int64 `gorm:"not null;default:0" json:"breakCount"`

	// Плановые и итоговые показатели
	TargetSeconds     int64 `gorm:"not null;default:0" json:"targetSeconds"`
	AttendanceSeconds int64 `gorm:"not null;default:0" json:"attendanceSeconds"`
	EffectiveSeconds  int64 `gorm:"not null;default:0" json:"effectiveSeconds"`
	OvertimeSeconds   int64 `gorm:"not null;default:0" json:"overtimeSeconds"`
	DeficitSeconds    int64 `gorm:"not null;default:0" json:"deficitSeconds"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (DailyStat) TableName() string {
	return "daily_stats"
}

// Reset обнуляет накопленные длительности перед пересчетом
func (ds *DailyStat) Reset() {
	ds.WorkSeconds = 0
	ds.NormalSeconds = 0
	ds.FishSeconds = 0
	ds.IdleSeconds = 0
	ds.BreakSeconds = 0
	ds.OfflineSeconds = 0
	ds.IncidentSeconds = 0
	ds.BreakCount = 0
}

// AddEntry добавляет запись таймлайна к итогам
func (ds *DailyStat) AddEntry(entry TimelineEntry) {
	switch entry.StatusCode {
	case StatusWork:
		ds.WorkSeconds += entry.DurationSeconds
	case StatusNormal:
		ds.NormalSeconds += entry.DurationSeconds
	case StatusFish:
		ds.FishSeconds += entry.DurationSeconds
	case StatusIdle:
		ds.IdleSeconds += entry.DurationSeconds
	case StatusBreak:
		ds.BreakSeconds += entry.DurationSeconds
		ds.BreakCount++
	case StatusOffline:
		ds.OfflineSeconds += entry.DurationSeconds
	case StatusIncident:
		ds.IncidentSeconds += entry.DurationSeconds
	}
}

// CalculateStats вычисляет присутствие, эффективное время, переработку и недобор
func (ds *DailyStat) CalculateStats() {
	// сбой не по вине сотрудника засчитывается как присутствие
	ds.AttendanceSeconds = ds.WorkSeconds + ds.NormalSeconds + ds.FishSeconds + ds.IncidentSeconds
	ds.EffectiveSeconds = ds.WorkSeconds
	if ds.TargetSeconds <= 0 {
		ds.OvertimeSeconds = 0
		ds.DeficitSeconds = 0
		return
	}
	diff := ds.WorkSeconds + ds.NormalSeconds - ds.TargetSeconds
	if diff > 0 {
		ds.OvertimeSeconds = diff
		ds.DeficitSeconds = 0
	} else {
		ds.OvertimeSeconds = 0
		ds.DeficitSeconds = -diff
	}
}

// IsValid проверяет валидность данных
func (ds *DailyStat) IsValid() bool {
	if ds.EmployeeCode == "" {
		return false
	}
	if _, err := time.ParseInLocation("2006-01-02", ds.WorkDate, time.Local); err != nil {
		return false
	}
	return ds.TargetSeconds >= 0
}
