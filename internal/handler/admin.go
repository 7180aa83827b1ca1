package handler

import (
	"net/http"
	"strconv"
	"strings"

	"worksentry/internal/models"
	"worksentry/internal/service"

	"github.com/gin-gonic/gin"
)

type departmentRequest struct {
	Rule       models.AttendanceRule    `json:"rule"`
	Thresholds []models.StatusThreshold `json:"thresholds"`
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Settings.Current())
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректные настройки")
		return
	}

	saved, err := h.services.Settings.Save(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditSettingsUpdate, "settings", "", saved)
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.services.Rules.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if rules == nil {
		rules = []models.ClassificationRule{}
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var rule models.ClassificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "некорректное правило")
		return
	}
	rule.ID = 0

	if err := h.services.Rules.Create(c.Request.Context(), &rule); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditRulesUpdate, "rule", strconv.FormatUint(uint64(rule.ID), 10), rule)
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id правила")
		return
	}

	var rule models.ClassificationRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "некорректное правило")
		return
	}
	rule.ID = id

	if err := h.services.Rules.Update(c.Request.Context(), &rule); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditRulesUpdate, "rule", c.Param("id"), rule)
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		badRequest(c, "некорректный id правила")
		return
	}

	if err := h.services.Rules.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditRulesUpdate, "rule", c.Param("id"), gin.H{"deleted": true})
	c.Status(http.StatusNoContent)
}

// GetDepartmentRule - правило отдела с порогами. Без departmentId - список правил
func (h *Handler) GetDepartmentRule(c *gin.Context) {
	if strings.TrimSpace(c.Query("departmentId")) == "" {
		rules, err := h.services.Rules.Departments(c.Request.Context())
		if err != nil {
			h.respondError(c, err)
			return
		}
		if rules == nil {
			rules = []models.AttendanceRule{}
		}
		c.JSON(http.StatusOK, rules)
		return
	}

	departmentID, ok := idQuery(c, "departmentId")
	if !ok {
		badRequest(c, "некорректный departmentId")
		return
	}

	dept, err := h.services.Rules.Department(c.Request.Context(), departmentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if dept.Thresholds == nil {
		dept.Thresholds = []models.StatusThreshold{}
	}
	c.JSON(http.StatusOK, dept)
}

func (h *Handler) SaveDepartmentRule(c *gin.Context) {
	var req departmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректное правило отдела")
		return
	}

	if err := h.services.Rules.SaveDepartment(c.Request.Context(), &req.Rule, req.Thresholds); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditAttendanceUpdate, "department", strconv.FormatUint(uint64(req.Rule.DepartmentID), 10), req)

	dept, err := h.services.Rules.Department(c.Request.Context(), req.Rule.DepartmentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dept)
}

func (h *Handler) UpsertThreshold(c *gin.Context) {
	var threshold models.StatusThreshold
	if err := c.ShouldBindJSON(&threshold); err != nil {
		badRequest(c, "некорректный порог")
		return
	}
	threshold.ID = 0

	if err := h.services.Rules.UpsertThreshold(c.Request.Context(), &threshold); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditAttendanceUpdate, "department", strconv.FormatUint(uint64(threshold.DepartmentID), 10), threshold)
	c.JSON(http.StatusOK, threshold)
}

func (h *Handler) DeleteThreshold(c *gin.Context) {
	departmentID, ok := idQuery(c, "departmentId")
	if !ok {
		badRequest(c, "некорректный departmentId")
		return
	}
	statusCode := strings.TrimSpace(c.Query("statusCode"))
	if statusCode == "" {
		badRequest(c, "не указан statusCode")
		return
	}

	if err := h.services.Rules.DeleteThreshold(c.Request.Context(), departmentID, statusCode); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditAttendanceUpdate, "department", c.Query("departmentId"), gin.H{"deletedThreshold": statusCode})
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	employees, err := h.services.Clients.Employees(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if employees == nil {
		employees = []models.Employee{}
	}
	c.JSON(http.StatusOK, employees)
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var req service.EmployeeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректные данные сотрудника")
		return
	}

	employee, err := h.services.Clients.CreateEmployee(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditEmployeeCreate, "employee", employee.Code, req)
	if err := h.services.Live.RefreshNames(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("Failed to refresh employee names")
	}
	c.JSON(http.StatusCreated, employee)
}

func (h *Handler) GetEmployee(c *gin.Context) {
	employee, err := h.services.Clients.Employee(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (h *Handler) UpdateEmployee(c *gin.Context) {
	var req service.EmployeeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректные данные сотрудника")
		return
	}

	employee, err := h.services.Clients.UpdateEmployee(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditEmployeeUpdate, "employee", employee.Code, req)
	if err := h.services.Live.RefreshNames(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("Failed to refresh employee names")
	}
	c.JSON(http.StatusOK, employee)
}

// ResetDevice снимает привязку устройства, агент должен пройти привязку заново
func (h *Handler) ResetDevice(c *gin.Context) {
	if err := h.services.Clients.ResetDevice(c.Request.Context(), c.Param("code")); err != nil {
		h.respondError(c, err)
		return
	}
	h.audit(c, service.AuditDeviceReset, "employee", c.Param("code"), nil)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
