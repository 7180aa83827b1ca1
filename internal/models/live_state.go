package models

import "time"

// LiveState - последний принятый отчет сотрудника. Хранится только в памяти
type LiveState struct {
	EmployeeCode string    `json:"employeeCode"`
	StatusCode   string    `json:"statusCode"`
	StatusLabel  string    `json:"statusLabel"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
	DelaySeconds int64     `json:"delaySeconds"`
	Description  string    `json:"description"`
	// Offwork держится с work_end до следующего work_start
	Offwork bool `json:"offwork"`
}

// LiveView - состояние с учетом задержки на момент запроса
type LiveView struct {
	EmployeeCode     string    `json:"employeeCode"`
	EmployeeName     string    `json:"employeeName,omitempty"`
	StatusCode       string    `json:"statusCode"`
	StatusLabel      string    `json:"statusLabel"`
	ReportedStatus   string    `json:"reportedStatus"`
	LastSeenAt       time.Time `json:"lastSeenAt"`
	DelaySeconds     int64     `json:"delaySeconds"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	Description      string    `json:"description"`
	Working          bool      `json:"working"`
}
