// Package handler - HTTP API сервера (gin), поток live-обновлений
// и бот администратора в Telegram.
package handler

import (
	"net/http"
	"strings"

	"worksentry/internal/logging"
	"worksentry/internal/service"
	"worksentry/internal/timeline"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Services - сервисы, которые обслуживает API
type Services struct {
	Clients     *service.ClientService
	Reports     *service.ReportService
	Reviews     *service.ReviewService
	Rules       *service.RuleService
	Settings    *service.SettingsService
	Overrides   *service.OverrideService
	Stats       *service.DailyStatService
	Live        *service.LiveService
	Departments *service.DepartmentService
	Forms       *service.CheckoutFormService
	Offline     *service.OfflineReportService
	Audit       *service.AuditService
	Aggregator  *timeline.Aggregator
}

type Handler struct {
	services Services
	adminKey string
	logger   *logrus.Logger
}

func NewHandler(services Services, adminKey string) *Handler {
	return &Handler{
		services: services,
		adminKey: strings.TrimSpace(adminKey),
		logger:   logging.New(),
	}
}

// Router собирает маршруты API
func (h *Handler) Router(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	r.GET("/healthz", h.Health)
	r.GET("/ws/v1/live", h.AdminKey(), h.LiveWS)

	client := r.Group("/api/v1/client")
	{
		client.POST("/bind", h.ClientBind)
		client.POST("/report", h.ClientAuth(), h.ClientReport)
		client.POST("/review-reason", h.ClientAuth(), h.ClientReviewReason)
		client.GET("/checkout-template", h.ClientAuth(), h.ClientCheckoutTemplate)
	}

	admin := r.Group("/api/v1/admin")
	admin.Use(h.AdminKey())
	{
		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.UpdateSettings)

		admin.GET("/rules", h.ListRules)
		admin.POST("/rules", h.CreateRule)
		admin.PUT("/rules/:id", h.UpdateRule)
		admin.DELETE("/rules/:id", h.DeleteRule)

		admin.GET("/department-rules", h.GetDepartmentRule)
		admin.PUT("/department-rules", h.SaveDepartmentRule)
		admin.PUT("/department-thresholds", h.UpsertThreshold)
		admin.DELETE("/department-thresholds", h.DeleteThreshold)

		admin.GET("/live-snapshot", h.LiveSnapshot)
		admin.GET("/reports/timeline", h.ReportTimeline)
		admin.GET("/reports/daily", h.ReportDaily)
		admin.GET("/reports/rank", h.ReportRank)
		admin.GET("/offline-segments", h.ListOfflineSegments)
		admin.GET("/audit-logs", h.ListAuditLogs)

		admin.GET("/work-session-reviews", h.ListReviews)
		admin.GET("/work-session-review", h.GetReview)
		admin.POST("/work-session-review/reason", h.SubmitReviewReason)

		admin.GET("/manual-adjustments", h.ListAdjustments)
		admin.POST("/manual-adjustments", h.CreateAdjustment)
		admin.PUT("/manual-adjustments/:id", h.UpdateAdjustment)
		admin.DELETE("/manual-adjustments/:id", h.RevokeAdjustment)

		admin.GET("/system-incidents", h.ListIncidents)
		admin.POST("/system-incidents", h.CreateIncident)
		admin.PUT("/system-incidents/:id", h.UpdateIncident)
		admin.DELETE("/system-incidents/:id", h.RevokeIncident)

		admin.GET("/employees", h.ListEmployees)
		admin.POST("/employees", h.CreateEmployee)
		admin.GET("/employees/:code", h.GetEmployee)
		admin.PUT("/employees/:code", h.UpdateEmployee)
		admin.POST("/employees/:code/reset-device", h.ResetDevice)

		admin.GET("/departments", h.ListDepartments)
		admin.POST("/departments", h.CreateDepartment)
		admin.PUT("/departments/:id", h.UpdateDepartment)
		admin.DELETE("/departments/:id", h.DeleteDepartment)

		admin.GET("/checkout-templates", h.ListCheckoutTemplates)
		admin.POST("/checkout-templates", h.CreateCheckoutTemplate)
		admin.PUT("/checkout-templates/:id", h.UpdateCheckoutTemplate)
		admin.DELETE("/checkout-templates/:id", h.DeleteCheckoutTemplate)

		admin.GET("/checkout-fields", h.ListCheckoutFields)
		admin.POST("/checkout-fields", h.CreateCheckoutField)
		admin.PUT("/checkout-fields/:id", h.UpdateCheckoutField)
		admin.DELETE("/checkout-fields/:id", h.DeleteCheckoutField)

		admin.GET("/checkout-records", h.ListCheckoutRecords)
		admin.GET("/checkout-record", h.GetCheckoutRecord)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "маршрут не найден", "code": "not_found"})
	})

	return r
}
