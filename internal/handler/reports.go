package handler

import (
	"net/http"
	"strconv"
	"strings"

	"worksentry/internal/models"
	"worksentry/internal/repository"
	"worksentry/internal/service"

	"github.com/gin-gonic/gin"
)

type timelineReply struct {
	EmployeeCode string                 `json:"employeeCode"`
	Date         string                 `json:"date"`
	Entries      []models.TimelineEntry `json:"entries"`
	Summary      models.TimelineSummary `json:"summary"`
}

type reviewReasonBody struct {
	ID     uint   `json:"id"`
	Reason string `json:"reason"`
}

func (h *Handler) LiveSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Live.Snapshot())
}

// ReportTimeline - таймлайн сотрудника за дату с наложенными корректировками
func (h *Handler) ReportTimeline(c *gin.Context) {
	code := strings.TrimSpace(c.Query("employeeCode"))
	if code == "" {
		badRequest(c, "не указан employeeCode")
		return
	}
	date, ok := dateQuery(c, "date")
	if !ok {
		badRequest(c, "дата должна быть в формате ГГГГ-ММ-ДД")
		return
	}

	entries, err := h.services.Aggregator.Timeline(c.Request.Context(), code, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.TimelineEntry{}
	}
	c.JSON(http.StatusOK, timelineReply{
		EmployeeCode: code,
		Date:         date,
		Entries:      entries,
		Summary:      models.Summarize(entries),
	})
}

// ReportDaily - итоги дня. С employeeCode и from/to - итоги сотрудника за период
func (h *Handler) ReportDaily(c *gin.Context) {
	ctx := c.Request.Context()
	code := strings.TrimSpace(c.Query("employeeCode"))
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))

	if code != "" && from != "" && to != "" {
		stats, err := h.services.Stats.ByEmployee(ctx, code, from, to)
		if err != nil {
			h.respondError(c, err)
			return
		}
		if stats == nil {
			stats = []models.DailyStat{}
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	date, ok := dateQuery(c, "date")
	if !ok {
		badRequest(c, "дата должна быть в формате ГГГГ-ММ-ДД")
		return
	}

	if code != "" {
		stat, err := h.services.Stats.Get(ctx, code, date)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stat)
		return
	}

	stats, err := h.services.Stats.ByDate(ctx, date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if stats == nil {
		stats = []models.DailyStat{}
	}
	c.JSON(http.StatusOK, stats)
}

// ListReviews - итоги завершения дней с фильтрами и постраничным выводом
func (h *Handler) ListReviews(c *gin.Context) {
	filter := repository.ReviewFilter{
		EmployeeCode: strings.TrimSpace(c.Query("employeeCode")),
		From:         strings.TrimSpace(c.Query("from")),
		To:           strings.TrimSpace(c.Query("to")),
		ReasonStatus: strings.TrimSpace(c.Query("reasonStatus")),
		OnlyViolated: c.Query("onlyViolated") == "true",
	}

	page, err := h.services.Reviews.List(c.Request.Context(), filter, intQuery(c, "page"), intQuery(c, "pageSize"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetReview(c *gin.Context) {
	id, ok := idQuery(c, "id")
	if !ok {
		badRequest(c, "некорректный id")
		return
	}

	review, err := h.services.Reviews.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// SubmitReviewReason - причину вносит администратор со слов сотрудника
func (h *Handler) SubmitReviewReason(c *gin.Context) {
	var req reviewReasonBody
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == 0 {
		badRequest(c, "некорректный запрос")
		return
	}

	review, err := h.services.Reviews.SubmitReason(c.Request.Context(), req.ID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditReviewReasonGiven, "work_session_review", strconv.FormatUint(uint64(req.ID), 10), gin.H{"reason": req.Reason})
	c.JSON(http.StatusOK, review)
}

// ReportRank - рейтинги дня, с departmentId - только по отделу
func (h *Handler) ReportRank(c *gin.Context) {
	date, ok := dateQuery(c, "date")
	if !ok {
		badRequest(c, "дата должна быть в формате ГГГГ-ММ-ДД")
		return
	}
	var departmentID uint
	if strings.TrimSpace(c.Query("departmentId")) != "" {
		id, ok := idQuery(c, "departmentId")
		if !ok {
			badRequest(c, "некорректный departmentId")
			return
		}
		departmentID = id
	}

	rank, err := h.services.Stats.Rank(c.Request.Context(), date, departmentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rank)
}

// ListOfflineSegments - пропадания связи за дату
func (h *Handler) ListOfflineSegments(c *gin.Context) {
	date, ok := dateQuery(c, "date")
	if !ok {
		badRequest(c, "дата должна быть в формате ГГГГ-ММ-ДД")
		return
	}

	segments, err := h.services.Offline.Segments(c.Request.Context(), date, c.Query("employeeCode"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, segments)
}
