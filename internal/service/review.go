package service

import (
	"context"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// ReviewPage - страница итогов дня
type ReviewPage struct {
	Items    []models.CheckoutReview `json:"items"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

type ReviewService struct {
	reviews repository.ReviewRepository
	now     func() time.Time
	logger  *logrus.Logger
}

func NewReviewService(reviews repository.ReviewRepository) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		now:     time.Now,
		logger:  logging.New(),
	}
}

// NormalizePage приводит номер и размер страницы к допустимым значениям
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func (s *ReviewService) List(ctx context.Context, filter repository.ReviewFilter, page, pageSize int) (ReviewPage, error) {
	page, pageSize = NormalizePage(page, pageSize)

	switch filter.ReasonStatus {
	case "", models.ReasonNotRequired, models.ReasonPending, models.ReasonSubmitted:
	default:
		return ReviewPage{}, apperr.Invalid("reasonStatus", "неизвестное состояние причины")
	}

	items, total, err := s.reviews.List(ctx, filter, page, pageSize)
	if err != nil {
		return ReviewPage{}, err
	}
	if items == nil {
		items = []models.CheckoutReview{}
	}
	return ReviewPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *ReviewService) Get(ctx context.Context, id uint) (*models.CheckoutReview, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, apperr.ErrNotFound
	}
	return review, nil
}

// SubmitReason записывает причину. Указанную причину изменить нельзя
func (s *ReviewService) SubmitReason(ctx context.Context, id uint, reason string) (*models.CheckoutReview, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Invalid("reason", "причина не может быть пустой")
	}
	if err := s.reviews.SubmitReason(ctx, id, reason, s.now()); err != nil {
		return nil, err
	}

	s.logger.WithField("review_id", id).Info("Review reason submitted")
	return s.Get(ctx, id)
}

// SubmitEmployeeReason - причина от агента. Без id берется последний итог, ожидающий причину
func (s *ReviewService) SubmitEmployeeReason(ctx context.Context, employeeCode string, id uint, reason string) (*models.CheckoutReview, error) {
	var review *models.CheckoutReview
	var err error
	if id == 0 {
		review, err = s.reviews.LatestPending(ctx, employeeCode)
	} else {
		review, err = s.reviews.GetByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if review == nil || review.EmployeeCode != employeeCode {
		return nil, apperr.ErrNotFound
	}
	return s.SubmitReason(ctx, review.ID, reason)
}

// Pending возвращает итоги, ожидающие причину
func (s *ReviewService) Pending(ctx context.Context, limit int) ([]models.CheckoutReview, error) {
	page, err := s.List(ctx, repository.ReviewFilter{ReasonStatus: models.ReasonPending}, 1, limit)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
