package handler

import (
	"net/http"
	"strconv"

	"worksentry/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListDepartments(c *gin.Context) {
	departments, err := h.services.Departments.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

func (h *Handler) CreateDepartment(c *gin.Context) {
	var req service.DepartmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный отдел")
		return
	}

	department, err := h.services.Departments.Create(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditDepartmentCreate, "department", strconv.FormatUint(uint64(department.ID), 10), req)
	c.JSON(http.StatusCreated, department)
}

func (h *Handler) UpdateDepartment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id отдела")
		return
	}
	var req service.DepartmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный отдел")
		return
	}

	department, err := h.services.Departments.Update(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditDepartmentUpdate, "department", c.Param("id"), req)
	c.JSON(http.StatusOK, department)
}

// DeleteDepartment удаляет отдел. Отдел с сотрудниками - 409
func (h *Handler) DeleteDepartment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id отдела")
		return
	}

	if err := h.services.Departments.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditDepartmentDelete, "department", c.Param("id"), nil)
	c.Status(http.StatusNoContent)
}

// ListAuditLogs - журнал изменений за дату
func (h *Handler) ListAuditLogs(c *gin.Context) {
	date, ok := dateQuery(c, "date")
	if !ok {
		badRequest(c, "дата должна быть в формате ГГГГ-ММ-ДД")
		return
	}

	entries, err := h.services.Audit.List(c.Request.Context(), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
