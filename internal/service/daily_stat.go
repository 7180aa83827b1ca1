package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/policy"
	"worksentry/internal/repository"
	"worksentry/internal/timeline"

	"github.com/sirupsen/logrus"
)

// DailyStatService пересчитывает дневные итоги сотрудников по отчетному таймлайну
type DailyStatService struct {
	statRepo   repository.DailyStatRepository
	employees  repository.EmployeeRepository
	rules      policy.RuleSource
	aggregator *timeline.Aggregator
	logger     *logrus.Logger
}

func NewDailyStatService(
	statRepo repository.DailyStatRepository,
	employees repository.EmployeeRepository,
	rules policy.RuleSource,
	aggregator *timeline.Aggregator,
) *DailyStatService {
	return &DailyStatService{
		statRepo:   statRepo,
		employees:  employees,
		rules:      rules,
		aggregator: aggregator,
		logger:     logging.New(),
	}
}

// Recalculate строит таймлайн за дату и сохраняет итоги дня
func (s *DailyStatService) Recalculate(ctx context.Context, employeeCode, workDate string) (*models.DailyStat, error) {
	entries, err := s.aggregator.Timeline(ctx, employeeCode, workDate)
	if err != nil {
		return nil, err
	}

	stat := &models.DailyStat{
		EmployeeCode: employeeCode,
		WorkDate:     workDate,
	}
	for _, entry := range entries {
		stat.AddEntry(entry)
	}

	employee, err := s.employees.GetByCode(ctx, employeeCode)
	if err != nil {
		return nil, err
	}
	if employee != nil {
		rule, err := s.rules.AttendanceRule(ctx, employee.DepartmentID)
		if err != nil {
			return nil, err
		}
		if rule != nil && rule.Enabled {
			stat.TargetSeconds = rule.TargetSeconds
		}
	}

	if err := s.statRepo.Upsert(ctx, stat); err != nil {
		s.logger.WithError(err).Error("Failed to store daily stat")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"employee_code": employeeCode,
		"work_date":     workDate,
		"attendance":    stat.AttendanceSeconds,
		"effective":     stat.EffectiveSeconds,
	}).Info("Daily stat recalculated")

	return stat, nil
}

// Get возвращает итоги дня. Если их нет, они вычисляются на лету
func (s *DailyStatService) Get(ctx context.Context, employeeCode, workDate string) (*models.DailyStat, error) {
	stat, err := s.statRepo.GetByEmployeeAndDate(ctx, employeeCode, workDate)
	if err != nil {
		return nil, err
	}
	if stat != nil {
		return stat, nil
	}
	return s.Recalculate(ctx, employeeCode, workDate)
}

// ByDate возвращает сохраненные итоги всех сотрудников за дату
func (s *DailyStatService) ByDate(ctx context.Context, workDate string) ([]models.DailyStat, error) {
	if _, _, err := models.DayWindow(workDate); err != nil {
		return nil, apperr.Invalid("date", "дата должна быть в формате ГГГГ-ММ-ДД")
	}
	return s.statRepo.GetByDate(ctx, workDate)
}

// ByEmployee возвращает итоги сотрудника за диапазон дат включительно
func (s *DailyStatService) ByEmployee(ctx context.Context, employeeCode, from, to string) ([]models.DailyStat, error) {
	return s.statRepo.GetByEmployee(ctx, employeeCode, from, to)
}

// rankSize - сколько сотрудников попадает в рейтинг
const rankSize = 10

// RankItem - строка рейтинга
type RankItem struct {
	EmployeeCode string  `json:"employeeCode"`
	EmployeeName string  `json:"employeeName"`
	DepartmentID uint    `json:"departmentId"`
	Seconds      int64   `json:"seconds"`
	Ratio        float64 `json:"ratio,omitempty"`
	Display      string  `json:"display"`
}

// Rank - рейтинги дня: по эффективному времени и по доле посторонних занятий
type Rank struct {
	Date string     `json:"date"`
	Work []RankItem `json:"work"`
	Fish []RankItem `json:"fish"`
}

// Rank строит рейтинги за дату. departmentID = 0 - все отделы
func (s *DailyStatService) Rank(ctx context.Context, workDate string, departmentID uint) (*Rank, error) {
	stats, err := s.ByDate(ctx, workDate)
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

	rank := &Rank{Date: workDate, Work: []RankItem{}, Fish: []RankItem{}}
	for _, stat := range stats {
		employee, ok := byCode[stat.EmployeeCode]
		if !ok || (departmentID != 0 && employee.DepartmentID != departmentID) {
			continue
		}
		item := RankItem{
			EmployeeCode: stat.EmployeeCode,
			EmployeeName: employee.Name,
			DepartmentID: employee.DepartmentID,
		}

		work := item
		work.Seconds = stat.EffectiveSeconds
		work.Display = policy.FormatDuration(stat.EffectiveSeconds)
		rank.Work = append(rank.Work, work)

		if stat.AttendanceSeconds > 0 && stat.FishSeconds > 0 {
			fish := item
			fish.Seconds = stat.FishSeconds
			fish.Ratio = float64(stat.FishSeconds) / float64(stat.AttendanceSeconds)
			fish.Display = fmt.Sprintf("%.1f%%", fish.Ratio*100)
			rank.Fish = append(rank.Fish, fish)
		}
	}

	slices.SortStableFunc(rank.Work, func(a, b RankItem) int {
		return cmp.Or(cmp.Compare(b.Seconds, a.Seconds), cmp.Compare(a.EmployeeCode, b.EmployeeCode))
	})
	slices.SortStableFunc(rank.Fish, func(a, b RankItem) int {
		return cmp.Or(cmp.Compare(b.Ratio, a.Ratio), cmp.Compare(a.EmployeeCode, b.EmployeeCode))
	})
	if len(rank.Work) > rankSize {
		rank.Work = rank.Work[:rankSize]
	}
	if len(rank.Fish) > rankSize {
		rank.Fish = rank.Fish[:rankSize]
	}
	return rank, nil
}

// FormatStat форматирует итоги дня для отображения
func (s *DailyStatService) FormatStat(stat *models.DailyStat) string {
	if stat == nil {
		return "❌ Статистика не найдена"
	}

	result := fmt.Sprintf(
		`📊 %s за %s

✅ Работа: %s
💼 Обычная активность: %s
🐟 Посторонние занятия: %s
💤 Простой: %s
☕ Перерывы: %s (%d)
📴 Нет связи: %s`,
		stat.EmployeeCode, stat.WorkDate,
		policy.FormatDuration(stat.WorkSeconds),
		policy.FormatDuration(stat.NormalSeconds),
		policy.FormatDuration(stat.FishSeconds),
		policy.FormatDuration(stat.IdleSeconds),
		policy.FormatDuration(stat.BreakSeconds), stat.BreakCount,
		policy.FormatDuration(stat.OfflineSeconds),
	)

	if stat.IncidentSeconds > 0 {
		result += fmt.Sprintf("\n⚠️ Сбой: %s", policy.FormatDuration(stat.IncidentSeconds))
	}
	if stat.TargetSeconds > 0 {
		result += fmt.Sprintf("\n\n📋 Норма: %s", policy.FormatDuration(stat.TargetSeconds))
	}
	if stat.OvertimeSeconds > 0 {
		result += fmt.Sprintf("\n➕ Переработка: %s", policy.FormatDuration(stat.OvertimeSeconds))
	}
	if stat.DeficitSeconds > 0 {
		result += fmt.Sprintf("\n➖ Недобор: %s", policy.FormatDuration(stat.DeficitSeconds))
	}

	return result
}
