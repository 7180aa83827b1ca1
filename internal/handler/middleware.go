package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"worksentry/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const employeeKey = "employee"

// ClientAuth проверяет bearer-токен агента и кладет сотрудника в контекст
func (h *Handler) ClientAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "нет токена агента", "code": "unauthorized"})
			return
		}

		employee, err := h.services.Clients.Authenticate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}

		c.Set(employeeKey, employee)
		c.Next()
	}
}

// AdminKey проверяет ключ администратора из X-Admin-Key или параметра key.
// Пустой ADMIN_API_KEY отключает проверку
func (h *Handler) AdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminKey == "" {
			c.Next()
			return
		}

		key := c.GetHeader("X-Admin-Key")
		if key == "" {
			key = c.Query("key")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "неверный ключ администратора", "code": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := h.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}

func currentEmployee(c *gin.Context) *models.Employee {
	value, ok := c.Get(employeeKey)
	if !ok {
		return nil
	}
	employee, _ := value.(*models.Employee)
	return employee
}
