package models

import (
	"strings"
	"time"
)

// ActivitySample - один отчет агента. В базе не хранится, сохраняется только статус
type ActivitySample struct {
	EmployeeCode  string    `json:"employeeCode"`
	Timestamp     time.Time `json:"timestamp"`
	ProcessName   string    `json:"processName"`
	WindowTitle   string    `json:"windowTitle"`
	IdleSeconds   int       `json:"idleSeconds"`
	ReportType    string    `json:"reportType"`
	ClientVersion string    `json:"clientVersion"`
}

// Normalize приводит поля к каноническому виду
func (s *ActivitySample) Normalize() {
	s.EmployeeCode = strings.TrimSpace(s.EmployeeCode)
	s.ProcessName = strings.TrimSpace(s.ProcessName)
	s.WindowTitle = strings.TrimSpace(s.WindowTitle)
	s.ReportType = strings.TrimSpace(strings.ToLower(s.ReportType))
	if s.ReportType == "" {
		s.ReportType = ReportHeartbeat
	}
	s.Timestamp = s.Timestamp.Truncate(time.Second)
}

// IsValid проверяет валидность данных
func (s *ActivitySample) IsValid() bool {
	if s.EmployeeCode == "" {
		return false
	}
	if s.Timestamp.IsZero() {
		return false
	}
	if s.IdleSeconds < 0 {
		return false
	}
	return IsValidReportType(s.ReportType)
}
