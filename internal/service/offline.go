package service

import (
	"context"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/models"
	"worksentry/internal/policy"
	"worksentry/internal/repository"
)

// OfflineSegment - пропадание связи сотрудника
type OfflineSegment struct {
	EmployeeCode    string    `json:"employeeCode"`
	EmployeeName    string    `json:"employeeName"`
	DepartmentID    uint      `json:"departmentId"`
	DepartmentName  string    `json:"departmentName"`
	StartAt         time.Time `json:"startAt"`
	EndAt           time.Time `json:"endAt"`
	DurationSeconds int64     `json:"durationSeconds"`
	Duration        string    `json:"duration"`
}

// OfflineReportService собирает сегменты offline за день
type OfflineReportService struct {
	timeline    repository.TimelineRepository
	employees   repository.EmployeeRepository
	departments *DepartmentService
}

func NewOfflineReportService(
	timelineRepo repository.TimelineRepository,
	employees repository.EmployeeRepository,
	departments *DepartmentService,
) *OfflineReportService {
	return &OfflineReportService{
		timeline:    timelineRepo,
		employees:   employees,
		departments: departments,
	}
}

// Segments возвращает сегменты offline, начавшиеся в дату 2006-01-02.
// Пустой employeeCode - все сотрудники
func (s *OfflineReportService) Segments(ctx context.Context, date, employeeCode string) ([]OfflineSegment, error) {
	from, to, err := models.DayWindow(date)
	if err != nil {
		return nil, apperr.Invalid("date", "дата должна быть в формате ГГГГ-ММ-ДД")
	}
	segments, err := s.timeline.OfflineSegments(ctx, from, to)
	if err != nil {
		return nil, err
	}

	employees, err := s.employees.List(ctx)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]models.Employee, len(employees))
	for _, e := range employees {
		byCode[e.Code] = e
	}
	names, err := s.departments.Names(ctx)
	if err != nil {
		return nil, err
	}

	code := strings.TrimSpace(employeeCode)
	result := make([]OfflineSegment, 0, len(segments))
	for _, seg := range segments {
		if code != "" && seg.EmployeeCode != code {
			continue
		}
		employee := byCode[seg.EmployeeCode]
		result = append(result, OfflineSegment{
			EmployeeCode:    seg.EmployeeCode,
			EmployeeName:    employee.Name,
			DepartmentID:    employee.DepartmentID,
			DepartmentName:  names[employee.DepartmentID],
			StartAt:         seg.StartAt,
			EndAt:           seg.Extent(),
			DurationSeconds: seg.DurationSeconds,
			Duration:        policy.FormatDuration(seg.DurationSeconds),
		})
	}
	return result, nil
}
