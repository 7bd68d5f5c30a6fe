// internal/api/handlers/config_handler.go
// SMTP 設定 Handler - 讀取與儲存 config.json

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mail-merge/internal/models"
	"mail-merge/internal/services"
)

// ConfigHandler 設定 Handler
type ConfigHandler struct {
	configs *services.ConfigStore
}

// NewConfigHandler 建立 Config Handler
func NewConfigHandler(configs *services.ConfigStore) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// SaveConfigRequest 儲存設定請求 (密碼會被忽略)
type SaveConfigRequest struct {
	SMTP    models.SMTPConfig `json:"smtp"`
	Subject string            `json:"subject,omitempty"`
	Preset  string            `json:"preset,omitempty"`
}

// Get 取得已儲存的設定與可用預設值
func (h *ConfigHandler) Get(c *gin.Context) {
	saved, err := h.configs.Load()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"config":  saved,
		"presets": models.SMTPPresets,
	})
}

// Put 儲存設定，指定 preset 時先套用預設主機與埠號
func (h *ConfigHandler) Put(c *gin.Context) {
	var req SaveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cfg := req.SMTP.WithoutPassword()
	if req.Preset != "" {
		preset, ok := models.FindPreset(req.Preset)
		if !ok {
			respondError(c, models.NewValidationError("preset", "unknown preset "+req.Preset))
			return
		}
		preset.Apply(&cfg)
	}
	if cfg.ReplyTo != "" && !models.IsPlausibleEmail(cfg.ReplyTo) {
		respondError(c, models.NewValidationError("reply_to_email", "reply-to email is not a valid address"))
		return
	}

	if err := h.configs.Save(cfg, req.Subject); err != nil {
		respondError(c, err)
		return
	}

	saved, err := h.configs.Load()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"config": saved})
}
