package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health - проверка живости и счетчики обработки отчетов
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"ingest": h.services.Aggregator.Stats(),
	})
}
