package repository

import (
	"context"
	"errors"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *models.ClassificationRule) error
	Update(ctx context.Context, rule *models.ClassificationRule) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.ClassificationRule, error)
	List(ctx context.Context) ([]models.ClassificationRule, error)
	ListEnabled(ctx context.Context) ([]models.ClassificationRule, error)
	ReplaceAll(ctx context.Context, rules []models.ClassificationRule) error
}

type GormRuleRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormRuleRepository(db *gorm.DB) (*GormRuleRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.ClassificationRule{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate classification_rules table")
		return nil, err
	}

	return &GormRuleRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormRuleRepository) Create(ctx context.Context, rule *models.ClassificationRule) error {
	rule.Normalize()
	if !rule.IsValid() {
		return errors.New("некорректное правило")
	}
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create rule")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":          rule.ID,
		"rule_type":   rule.RuleType,
		"match_mode":  rule.MatchMode,
		"match_value": rule.MatchValue,
	}).Info("Classification rule created")
	return nil
}

func (r *GormRuleRepository) Update(ctx context.Context, rule *models.ClassificationRule) error {
	rule.Normalize()
	if !rule.IsValid() {
		return errors.New("некорректное правило")
	}

	existing, err := r.GetByID(ctx, rule.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperr.ErrNotFound
	}

	rule.CreatedAt = existing.CreatedAt
	if err := r.db.WithContext(ctx).Save(rule).Error; err != nil {
		r.logger.WithError(err).Error("Failed to update rule")
		return err
	}
	return nil
}

func (r *GormRuleRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ClassificationRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GormRuleRepository) GetByID(ctx context.Context, id uint) (*models.ClassificationRule, error) {
	var rule models.ClassificationRule
	result := r.db.WithContext(ctx).First(&rule, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rule, nil
}

func (r *GormRuleRepository) List(ctx context.Context) ([]models.ClassificationRule, error) {
	var rules []models.ClassificationRule
	if err := r.db.WithContext(ctx).Order("rule_type asc, id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *GormRuleRepository) ListEnabled(ctx context.Context) ([]models.ClassificationRule, error) {
	var rules []models.ClassificationRule
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("rule_type asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// ReplaceAll заменяет все правила одним набором (загрузка из файла)
func (r *GormRuleRepository) ReplaceAll(ctx context.Context, rules []models.ClassificationRule) error {
	for i := range rules {
		rules[i].ID = 0
		rules[i].Normalize()
		if !rules[i].IsValid() {
			return errors.New("некорректное правило: " + rules[i].MatchValue)
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ClassificationRule{}).Error; err != nil {
			return err
		}
		if len(rules) == 0 {
			return nil
		}
		return tx.Create(&rules).Error
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to replace rules")
		return err
	}

	r.logger.WithField("count", len(rules)).Info("Classification rules replaced")
	return nil
}
