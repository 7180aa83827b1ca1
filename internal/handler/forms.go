package handler

import (
	"net/http"
	"strconv"
	"strings"

	"worksentry/internal/repository"
	"worksentry/internal/service"

	"github.com/gin-gonic/gin"
)

// ListCheckoutTemplates - анкеты завершения дня, с departmentId - только анкеты отдела
func (h *Handler) ListCheckoutTemplates(c *gin.Context) {
	var departmentID uint
	if strings.TrimSpace(c.Query("departmentId")) != "" {
		id, ok := idQuery(c, "departmentId")
		if !ok {
			badRequest(c, "некорректный departmentId")
			return
		}
		departmentID = id
	}

	templates, err := h.services.Forms.Templates(c.Request.Context(), departmentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *Handler) CreateCheckoutTemplate(c *gin.Context) {
	var req service.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректная анкета")
		return
	}

	template, err := h.services.Forms.CreateTemplate(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditTemplateChange, "checkout_template", strconv.FormatUint(uint64(template.ID), 10), req)
	c.JSON(http.StatusCreated, template)
}

func (h *Handler) UpdateCheckoutTemplate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id анкеты")
		return
	}
	var req service.TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректная анкета")
		return
	}

	template, err := h.services.Forms.UpdateTemplate(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditTemplateChange, "checkout_template", c.Param("id"), req)
	c.JSON(http.StatusOK, template)
}

func (h *Handler) DeleteCheckoutTemplate(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id анкеты")
		return
	}

	if err := h.services.Forms.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditTemplateChange, "checkout_template", c.Param("id"), gin.H{"deleted": true})
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListCheckoutFields(c *gin.Context) {
	templateID, ok := idQuery(c, "templateId")
	if !ok {
		badRequest(c, "некорректный templateId")
		return
	}

	fields, err := h.services.Forms.Fields(c.Request.Context(), templateID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

func (h *Handler) CreateCheckoutField(c *gin.Context) {
	var req service.FieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректное поле анкеты")
		return
	}

	field, err := h.services.Forms.CreateField(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditFieldChange, "checkout_field", strconv.FormatUint(uint64(field.ID), 10), req)
	c.JSON(http.StatusCreated, field)
}

func (h *Handler) UpdateCheckoutField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id поля")
		return
	}
	var req service.FieldInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректное поле анкеты")
		return
	}

	field, err := h.services.Forms.UpdateField(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditFieldChange, "checkout_field", c.Param("id"), req)
	c.JSON(http.StatusOK, field)
}

func (h *Handler) DeleteCheckoutField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id поля")
		return
	}

	if err := h.services.Forms.DeleteField(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditFieldChange, "checkout_field", c.Param("id"), gin.H{"deleted": true})
	c.Status(http.StatusNoContent)
}

// ListCheckoutRecords - заполненные анкеты с фильтрами, не больше 100 на странице
func (h *Handler) ListCheckoutRecords(c *gin.Context) {
	filter := repository.RecordFilter{
		From:         strings.TrimSpace(c.Query("from")),
		To:           strings.TrimSpace(c.Query("to")),
		EmployeeCode: strings.TrimSpace(c.Query("employeeCode")),
	}
	if id, ok := idQuery(c, "departmentId"); ok {
		filter.DepartmentID = id
	}
	if id, ok := idQuery(c, "templateId"); ok {
		filter.TemplateID = id
	}

	page, err := h.services.Forms.Records(c.Request.Context(), filter, intQuery(c, "page"), intQuery(c, "pageSize"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetCheckoutRecord(c *gin.Context) {
	id, ok := idQuery(c, "id")
	if !ok {
		badRequest(c, "некорректный id")
		return
	}

	record, err := h.services.Forms.Record(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ClientCheckoutTemplate - анкета, которую агент показывает при завершении дня
func (h *Handler) ClientCheckoutTemplate(c *gin.Context) {
	template, err := h.services.Forms.ClientTemplate(c.Request.Context(), currentEmployee(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}
