package handler

import (
	"net/http"

	"worksentry/internal/models"
	"worksentry/internal/service"

	"github.com/gin-gonic/gin"
)

type bindReply struct {
	Token        string `json:"token"`
	EmployeeCode string `json:"employeeCode"`
	models.ClientPolicy
}

type reviewReasonRequest struct {
	ReviewID uint   `json:"reviewId"`
	Reason   string `json:"reason"`
}

// ClientBind привязывает устройство и выдает токен агента
func (h *Handler) ClientBind(c *gin.Context) {
	var req service.BindInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный запрос привязки")
		return
	}

	token, err := h.services.Clients.Bind(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	settings := h.services.Settings.Current()
	c.JSON(http.StatusOK, bindReply{
		Token:        token,
		EmployeeCode: req.EmployeeCode,
		ClientPolicy: settings.Policy(),
	})
}

// ClientReport принимает отчет агента. Устаревший отчет подтверждается с accepted=false
func (h *Handler) ClientReport(c *gin.Context) {
	var req service.ReportInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный отчет")
		return
	}

	reply, err := h.services.Reports.Report(c.Request.Context(), currentEmployee(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// ClientReviewReason - причина от сотрудника для итога дня.
// Без reviewId берется последний итог, ожидающий причину
func (h *Handler) ClientReviewReason(c *gin.Context) {
	var req reviewReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "некорректный запрос")
		return
	}

	review, err := h.services.Reviews.SubmitEmployeeReason(c.Request.Context(), currentEmployee(c).Code, req.ReviewID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}
