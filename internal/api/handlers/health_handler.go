// internal/api/handlers/health_handler.go
// 健康檢查 Handler

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mail-merge/internal/services"
)

// Pinger 可檢查連線的外部服務
type Pinger interface {
	Ping(ctx context.Context) bool
}

// HealthHandler 健康檢查 Handler
type HealthHandler struct {
	sender services.MailSender
	runs   *services.RunManager
	keydb  Pinger
}

// NewHealthHandler 建立 Health Handler
// keydb 為 nil 表示使用記憶體儲存
func NewHealthHandler(sender services.MailSender, runs *services.RunManager, keydb Pinger) *HealthHandler {
	return &HealthHandler{
		sender: sender,
		runs:   runs,
		keydb:  keydb,
	}
}

// Health 健康檢查
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	statusStore := "memory"
	response := gin.H{
		"status":      "healthy",
		"version":     "1.0.0",
		"provider":    h.sender.Name(),
		"active_runs": h.runs.ActiveRuns(),
	}

	// 檢查 KeyDB
	if h.keydb != nil {
		statusStore = "ok"
		if !h.keydb.Ping(ctx) {
			statusStore = "error"
			response["status"] = "degraded"
		}
	}
	response["services"] = gin.H{"keydb": statusStore}

	// 回應
	statusCode := http.StatusOK
	if response["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
