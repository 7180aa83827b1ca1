package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReviewFilter - фильтр списка итогов дня
type ReviewFilter struct {
	EmployeeCode string
	From         string // дата 2006-01-02 включительно
	To           string // дата 2006-01-02 включительно
	ReasonStatus string
	OnlyViolated bool
}

type ReviewRepository interface {
	Create(ctx context.Context, review *models.CheckoutReview) error
	GetByID(ctx context.Context, id uint) (*models.CheckoutReview, error)
	LatestPending(ctx context.Context, employeeCode string) (*models.CheckoutReview, error)
	List(ctx context.Context, filter ReviewFilter, page, pageSize int) ([]models.CheckoutReview, int64, error)
	SubmitReason(ctx context.Context, id uint, reason string, at time.Time) error
}

type GormReviewRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormReviewRepository(db *gorm.DB) (*GormReviewRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.CheckoutReview{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate checkout_reviews table")
		return nil, err
	}

	return &GormReviewRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormReviewRepository) Create(ctx context.Context, review *models.CheckoutReview) error {
	if review.EmployeeCode == "" || review.WorkDate == "" {
		return errors.New("некорректные данные итога дня")
	}
	review.StartAt = review.StartAt.UTC()
	review.EndAt = review.EndAt.UTC()
	if review.Reason != "" && review.ReasonAt == nil {
		now := time.Now().UTC()
		review.ReasonAt = &now
	}

	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create checkout review")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":              review.ID,
		"employee_code":   review.EmployeeCode,
		"work_date":       review.WorkDate,
		"violations":      len(review.Violations),
		"reason_required": review.ReasonRequired,
	}).Info("Checkout review stored")
	return nil
}

func (r *GormReviewRepository) GetByID(ctx context.Context, id uint) (*models.CheckoutReview, error) {
	var review models.CheckoutReview
	result := r.db.WithContext(ctx).First(&review, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &review, nil
}

// LatestPending возвращает последний итог сотрудника, который ждет причину
func (r *GormReviewRepository) LatestPending(ctx context.Context, employeeCode string) (*models.CheckoutReview, error) {
	var review models.CheckoutReview
	result := r.db.WithContext(ctx).
		Where("employee_code = ? AND reason_required = ? AND (reason IS NULL OR reason = '')", employeeCode, true).
		Order("end_at desc, id desc").
		First(&review)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &review, nil
}

// List возвращает страницу итогов, page начинается с 1
func (r *GormReviewRepository) List(ctx context.Context, filter ReviewFilter, page, pageSize int) ([]models.CheckoutReview, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	query := r.db.WithContext(ctx).Model(&models.CheckoutReview{})

	if code := strings.TrimSpace(filter.EmployeeCode); code != "" {
		query = query.Where("employee_code = ?", code)
	}
	if filter.From != "" {
		query = query.Where("work_date >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("work_date <= ?", filter.To)
	}
	switch filter.ReasonStatus {
	case models.ReasonSubmitted:
		query = query.Where("reason IS NOT NULL AND reason <> ''")
	case models.ReasonPending:
		query = query.Where("reason_required = ? AND (reason IS NULL OR reason = '')", true)
	case models.ReasonNotRequired:
		query = query.Where("reason_required = ? AND (reason IS NULL OR reason = '')", false)
	}
	if filter.OnlyViolated {
		query = query.Where("violations IS NOT NULL AND violations <> '' AND violations <> 'null' AND violations <> '[]'")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.CheckoutReview
	err := query.
		Order("work_date desc, end_at desc, id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// SubmitReason записывает причину, только если ее еще нет
func (r *GormReviewRepository) SubmitReason(ctx context.Context, id uint, reason string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.Invalid("reason", "причина не может быть пустой")
	}

	result := r.db.WithContext(ctx).Model(&models.CheckoutReview{}).
		Where("id = ? AND (reason IS NULL OR reason = '')", id).
		Updates(map[string]any{
			"reason":    reason,
			"reason_at": at.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperr.ErrNotFound
		}
		return apperr.ErrReviewFinalized
	}

	r.logger.WithField("id", id).Info("Checkout review reason submitted")
	return nil
}
