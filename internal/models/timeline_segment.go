package models

import "time"

// TimelineSegment - непрерывный отрезок одного статуса.
// У открытого сегмента EndAt = nil, а LastReportAt хранит последний покрытый момент
type TimelineSegment struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	EmployeeCode    string     `gorm:"type:varchar(32);not null;index:idx_segments_employee_date,priority:1" json:"employeeCode"`
	WorkDate        string     `gorm:"type:varchar(10);not null;index:idx_segments_employee_date,priority:2" json:"workDate"`
	WorkSessionID   uint       `gorm:"index" json:"workSessionId"`
	StatusCode      string     `gorm:"type:varchar(16);not null" json:"statusCode"`
	StartAt         time.Time  `gorm:"not null;index" json:"startAt"`
	EndAt           *time.Time `json:"endAt"`
	LastReportAt    time.Time  `gorm:"not null;index" json:"lastReportAt"`
	DurationSeconds int64      `gorm:"not null;default:0" json:"durationSeconds"`
	Description     string     `json:"description"`
	Source          string     `gorm:"type:varchar(16);not null" json:"source"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (TimelineSegment) TableName() string {
	return "timeline_segments"
}

// NewOpenSegment открывает сегмент агента с нулевой длительностью
func NewOpenSegment(employeeCode string, sessionID uint, status string, at time.Time, description string) *TimelineSegment {
	return &TimelineSegment{
		EmployeeCode:  employeeCode,
		WorkDate:      WorkDateOf(at),
		WorkSessionID: sessionID,
		StatusCode:    status,
		StartAt:       at,
		LastReportAt:  at,
		Description:   description,
		Source:        SourceAgent,
	}
}

func (s *TimelineSegment) IsOpen() bool {
	return s.EndAt == nil
}

// Extent - последний момент, покрытый сегментом
func (s *TimelineSegment) Extent() time.Time {
	if s.EndAt != nil {
		return *s.EndAt
	}
	return s.LastReportAt
}

// Extend продлевает открытый сегмент до at
func (s *TimelineSegment) Extend(at time.Time) {
	if at.Before(s.LastReportAt) {
		return
	}
	s.LastReportAt = at
	s.DurationSeconds = secondsBetween(s.StartAt, at)
}

// Close закрывает сегмент в момент at
func (s *TimelineSegment) Close(at time.Time) {
	if at.Before(s.StartAt) {
		at = s.StartAt
	}
	end := at
	s.EndAt = &end
	s.LastReportAt = at
	s.DurationSeconds = secondsBetween(s.StartAt, at)
}

func secondsBetween(start, end time.Time) int64 {
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}
