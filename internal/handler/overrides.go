package handler

import (
	"net/http"
	"strconv"
	"strings"

	"worksentry/internal/models"
	"worksentry/internal/service"

	"github.com/gin-gonic/gin"
)

// ListAdjustments - корректировки, пересекающие интервал (по умолчанию текущие сутки)
func (h *Handler) ListAdjustments(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		badRequest(c, "некорректный интервал")
		return
	}

	items, err := h.services.Overrides.ListAdjustments(c.Request.Context(), strings.TrimSpace(c.Query("employeeCode")), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if items == nil {
		items = []models.ManualAdjustment{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateAdjustment(c *gin.Context) {
	var req service.AdjustmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректная корректировка")
		return
	}

	adjustment, err := h.services.Overrides.CreateAdjustment(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditOverrideCreate, "adjustment", strconv.FormatUint(uint64(adjustment.ID), 10), req)
	c.JSON(http.StatusCreated, adjustment)
}

func (h *Handler) UpdateAdjustment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id")
		return
	}
	var req service.AdjustmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректная корректировка")
		return
	}

	adjustment, err := h.services.Overrides.UpdateAdjustment(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, adjustment)
}

// RevokeAdjustment отзывает корректировку, запись остается в истории
func (h *Handler) RevokeAdjustment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id")
		return
	}

	if err := h.services.Overrides.RevokeAdjustment(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditOverrideDelete, "adjustment", c.Param("id"), nil)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListIncidents(c *gin.Context) {
	from, to, ok := rangeQuery(c)
	if !ok {
		badRequest(c, "некорректный интервал")
		return
	}

	items, err := h.services.Overrides.ListIncidents(c.Request.Context(), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if items == nil {
		items = []models.SystemIncident{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateIncident(c *gin.Context) {
	var req service.IncidentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный сбой")
		return
	}

	incident, err := h.services.Overrides.CreateIncident(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditOverrideCreate, "incident", strconv.FormatUint(uint64(incident.ID), 10), req)
	c.JSON(http.StatusCreated, incident)
}

func (h *Handler) UpdateIncident(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id")
		return
	}
	var req service.IncidentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный сбой")
		return
	}

	incident, err := h.services.Overrides.UpdateIncident(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, incident)
}

func (h *Handler) RevokeIncident(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id")
		return
	}

	if err := h.services.Overrides.RevokeIncident(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditOverrideDelete, "incident", c.Param("id"), nil)
	c.Status(http.StatusNoContent)
}
