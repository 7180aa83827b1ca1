package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/models"

	"github.com/gin-gonic/gin"
)

// respondError переводит ошибку сервиса в HTTP-ответ вида {"error", "code"}
func (h *Handler) respondError(c *gin.Context, err error) {
	var validation *apperr.ValidationError
	var needReason *apperr.NeedReasonError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "code": "invalid", "field": validation.Field})
	case errors.As(err, &needReason):
		c.JSON(http.StatusConflict, gin.H{
			"error":      needReason.Error(),
			"code":       "need_reason",
			"violations": needReason.Violations,
			"summary":    needReason.Summary,
		})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "unauthorized"})
	case errors.Is(err, apperr.ErrEmployeeDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "employee_disabled"})
	case errors.Is(err, apperr.ErrDeviceMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "device_mismatch"})
	case errors.Is(err, apperr.ErrUpdateRequired):
		c.JSON(http.StatusUpgradeRequired, gin.H{"error": err.Error(), "code": "update_required"})
	case errors.Is(err, apperr.ErrDepartmentInUse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "department_in_use"})
	case errors.Is(err, apperr.ErrTemplateChanged):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "template_updated"})
	case errors.Is(err, apperr.ErrReviewFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "reason_finalized"})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера", "code": "internal"})
	}
}

// audit пишет изменение администратора в журнал
func (h *Handler) audit(c *gin.Context, action, targetType, targetID string, detail any) {
	h.services.Audit.Record(c.Request.Context(), models.OperatorAdmin, action, targetType, targetID, detail)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "invalid"})
}

func idParam(c *gin.Context, name string) (uint, bool) {
	return parseID(c.Param(name))
}

func idQuery(c *gin.Context, name string) (uint, bool) {
	return parseID(c.Query(name))
}

func parseID(value string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, name string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return 0
	}
	return value
}

// dateQuery возвращает дату из параметра или сегодняшнюю
func dateQuery(c *gin.Context, name string) (string, bool) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return models.WorkDateOf(time.Now()), true
	}
	if _, _, err := models.DayWindow(value); err != nil {
		return "", false
	}
	return value, true
}

// rangeQuery читает интервал from/to (RFC 3339 или дата). Без параметров - текущие сутки
func rangeQuery(c *gin.Context) (time.Time, time.Time, bool) {
	fromValue := strings.TrimSpace(c.Query("from"))
	toValue := strings.TrimSpace(c.Query("to"))
	if fromValue == "" && toValue == "" {
		date, ok := dateQuery(c, "date")
		if !ok {
			return time.Time{}, time.Time{}, false
		}
		from, to, err := models.DayWindow(date)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return from.UTC(), to.UTC(), true
	}

	from, ok := parseBound(fromValue, false)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := parseBound(toValue, true)
	if !ok || !to.After(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseBound(value string, end bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	from, to, err := models.DayWindow(value)
	if err != nil {
		return time.Time{}, false
	}
	if end {
		return to.UTC(), true
	}
	return from.UTC(), true
}
