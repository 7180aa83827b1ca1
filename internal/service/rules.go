package service

import (
	"context"
	"strings"
	"sync"

	"worksentry/internal/apperr"
	"worksentry/internal/classifier"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"
	"worksentry/pkg/ruleset"

	"github.com/sirupsen/logrus"
)

// RuleService хранит правила классификации и правила отделов.
// Включенные правила классификации держатся в памяти и обновляются при каждом изменении
type RuleService struct {
	rules      repository.RuleRepository
	attendance repository.AttendanceRuleRepository
	logger     *logrus.Logger

	mu    sync.RWMutex
	cache classifier.RuleSet
}

func NewRuleService(rules repository.RuleRepository, attendance repository.AttendanceRuleRepository) *RuleService {
	return &RuleService{
		rules:      rules,
		attendance: attendance,
		logger:     logging.New(),
		cache:      classifier.NewRuleSet(nil),
	}
}

// Reload перечитывает включенные правила из базы
func (s *RuleService) Reload(ctx context.Context) error {
	enabled, err := s.rules.ListEnabled(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load classification rules")
		return err
	}

	set := classifier.NewRuleSet(enabled)
	s.mu.Lock()
	s.cache = set
	s.mu.Unlock()

	s.logger.WithField("count", set.Len()).Info("Classification rules loaded")
	return nil
}

// RuleSet возвращает текущий набор правил
func (s *RuleService) RuleSet() classifier.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

func (s *RuleService) List(ctx context.Context) ([]models.ClassificationRule, error) {
	return s.rules.List(ctx)
}

func (s *RuleService) Create(ctx context.Context, rule *models.ClassificationRule) error {
	rule.ID = 0
	rule.Normalize()
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (s *RuleService) Update(ctx context.Context, rule *models.ClassificationRule) error {
	rule.Normalize()
	if err := validateRule(rule); err != nil {
		return err
	}
	existing, err := s.rules.GetByID(ctx, rule.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.ErrNotFound
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func (s *RuleService) Delete(ctx context.Context, id uint) error {
	existing, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.ErrNotFound
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	return s.Reload(ctx)
}

func validateRule(rule *models.ClassificationRule) error {
	if rule.RuleType != models.RuleBlack && rule.RuleType != models.RuleWhite {
		return apperr.Invalid("ruleType", "допустимые значения black или white")
	}
	if rule.MatchMode != models.MatchProcess && rule.MatchMode != models.MatchTitle {
		return apperr.Invalid("matchMode", "допустимые значения process или title")
	}
	if rule.MatchValue == "" {
		return apperr.Invalid("matchValue", "значение не может быть пустым")
	}
	return nil
}

// Department - правило отдела вместе с порогами
type Department struct {
	Rule       *models.AttendanceRule   `json:"rule"`
	Thresholds []models.StatusThreshold `json:"thresholds"`
}

// Department возвращает правило отдела. Без правила Rule = nil
func (s *RuleService) Department(ctx context.Context, departmentID uint) (Department, error) {
	rule, err := s.attendance.AttendanceRule(ctx, departmentID)
	if err != nil {
		return Department{}, err
	}
	thresholds, err := s.attendance.StatusThresholds(ctx, departmentID)
	if err != nil {
		return Department{}, err
	}
	return Department{Rule: rule, Thresholds: thresholds}, nil
}

func (s *RuleService) Departments(ctx context.Context) ([]models.AttendanceRule, error) {
	return s.attendance.ListRules(ctx)
}

// SaveDepartment сохраняет правило отдела и заменяет пороги по коду статуса
func (s *RuleService) SaveDepartment(ctx context.Context, rule *models.AttendanceRule, thresholds []models.StatusThreshold) error {
	if rule.DepartmentID == 0 {
		return apperr.Invalid("departmentId", "не указан отдел")
	}
	if !rule.IsValid() {
		return apperr.Invalid("rule", "лимиты не могут быть отрицательными")
	}
	for i := range thresholds {
		if err := validateThreshold(&thresholds[i]); err != nil {
			return err
		}
	}

	if err := s.attendance.SaveDepartment(ctx, rule, thresholds); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"department_id": rule.DepartmentID,
		"enabled":       rule.Enabled,
	}).Info("Department rule updated")
	return nil
}

// UpsertThreshold заменяет порог отдела для статуса
func (s *RuleService) UpsertThreshold(ctx context.Context, threshold *models.StatusThreshold) error {
	if threshold.DepartmentID == 0 {
		return apperr.Invalid("departmentId", "не указан отдел")
	}
	if err := validateThreshold(threshold); err != nil {
		return err
	}
	return s.attendance.UpsertThreshold(ctx, threshold)
}

func (s *RuleService) DeleteThreshold(ctx context.Context, departmentID uint, statusCode string) error {
	return s.attendance.DeleteThreshold(ctx, departmentID, strings.TrimSpace(statusCode))
}

func validateThreshold(t *models.StatusThreshold) error {
	t.Normalize()
	if !models.IsThresholdStatus(t.StatusCode) {
		return apperr.Invalid("statusCode", "неизвестный статус "+t.StatusCode)
	}
	if !t.IsValid() {
		return apperr.Invalid("threshold", "некорректные границы порога "+t.StatusCode)
	}
	return nil
}

// ApplyFile заменяет правила классификации и сохраняет отделы из файла правил
func (s *RuleService) ApplyFile(ctx context.Context, file *ruleset.File) error {
	rules := make([]models.ClassificationRule, 0, len(file.Rules))
	for _, r := range file.Rules {
		rules = append(rules, models.ClassificationRule{
			RuleType:   strings.ToLower(r.Type),
			MatchMode:  strings.ToLower(r.Match),
			MatchValue: r.Value,
			Enabled:    r.IsEnabled(),
			Note:       r.Note,
		})
	}
	if err := s.rules.ReplaceAll(ctx, rules); err != nil {
		return err
	}

	for _, dept := range file.Departments {
		rule := &models.AttendanceRule{
			DepartmentID:          dept.ID,
			TargetSeconds:         dept.Target.Seconds(),
			MaxBreakSeconds:       dept.MaxBreak.Seconds(),
			MaxBreakCount:         dept.MaxBreakCount,
			MaxBreakSingleSeconds: dept.MaxBreakSingle.Seconds(),
			Enabled:               dept.IsEnabled(),
		}
		thresholds := make([]models.StatusThreshold, 0, len(dept.Thresholds))
		for _, t := range dept.Thresholds {
			thresholds = append(thresholds, models.StatusThreshold{
				DepartmentID:  dept.ID,
				StatusCode:    t.Status,
				MinSeconds:    t.Min.Seconds(),
				MaxSeconds:    t.Max.Seconds(),
				TriggerAction: t.Trigger,
				Enabled:       t.IsEnabled(),
			})
		}
		if err := s.SaveDepartment(ctx, rule, thresholds); err != nil {
			return err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"rules":       len(rules),
		"departments": len(file.Departments),
	}).Info("Rules file applied")
	return s.Reload(ctx)
}
