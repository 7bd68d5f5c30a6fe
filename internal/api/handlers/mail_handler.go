// internal/api/handlers/mail_handler.go
// 郵件 API Handler - 收件人解析、預覽、測試發送與批次發送

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/merge"
	"mail-merge/internal/recipients"
	"mail-merge/internal/services"
)

const defaultPreviewRows = 5

// MailHandler 郵件 Handler
type MailHandler struct {
	dispatcher *services.Dispatcher
	runs       *services.RunManager
	drafts     *draftResolver
	logger     *zap.Logger
}

// NewMailHandler 建立 Mail Handler
func NewMailHandler(cfg *config.Config, dispatcher *services.Dispatcher, runs *services.RunManager,
	templates *services.TemplateStore, configs *services.ConfigStore, logger *zap.Logger) *MailHandler {
	return &MailHandler{
		dispatcher: dispatcher,
		runs:       runs,
		drafts:     &draftResolver{cfg: cfg, templates: templates, configs: configs},
		logger:     logger,
	}
}

// ParseRecipientsRequest 解析收件人請求
type ParseRecipientsRequest struct {
	RecipientsRequest
	PreviewRows *int `json:"preview_rows,omitempty"`
}

// PreviewRequest 預覽請求
type PreviewRequest struct {
	DraftRequest
	Recipients RecipientsRequest `json:"recipients"`
	Index      int               `json:"index"`
	To         string            `json:"to,omitempty"` // 僅用於 SendPreview，覆寫收件地址
}

// SendTestRequest 快速測試請求
type SendTestRequest struct {
	DraftRequest
	To   string `json:"to" binding:"required"`
	Name string `json:"name,omitempty"`
}

// RunRequest 批次發送請求
type RunRequest struct {
	DraftRequest
	Recipients RecipientsRequest `json:"recipients"`
}

// ParseRecipients 解析 CSV 並回傳欄位、預覽與可用變數
func (h *MailHandler) ParseRecipients(c *gin.Context) {
	var req ParseRecipientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	table, err := loadTable(&req.RecipientsRequest)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := defaultPreviewRows
	if req.PreviewRows != nil && *req.PreviewRows >= 0 {
		rows = *req.PreviewRows
	}

	respondOK(c, http.StatusOK, gin.H{
		"summary":   recipients.Summarize(table, rows),
		"variables": merge.Variables(table.Columns),
	})
}

// Preview 產生某一列的個人化預覽 (不發送)
func (h *MailHandler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	draft, err := h.drafts.resolve(&req.DraftRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	table, err := loadTable(&req.Recipients)
	if err != nil {
		respondError(c, err)
		return
	}

	preview, err := merge.RenderPreview(table, req.Index, draft.Template())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, preview)
}

// SendPreview 將某一列的個人化郵件寄出 (可覆寫收件地址)
func (h *MailHandler) SendPreview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	draft, err := h.drafts.resolve(&req.DraftRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	table, err := loadTable(&req.Recipients)
	if err != nil {
		respondError(c, err)
		return
	}

	preview, err := h.dispatcher.SendPreviewRow(c.Request.Context(), draft, table, req.Index, req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, preview)
}

// SendTest 快速測試發送 (不需要收件人表格)
func (h *MailHandler) SendTest(c *gin.Context) {
	var req SendTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	draft, err := h.drafts.resolve(&req.DraftRequest)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.dispatcher.SendTest(c.Request.Context(), draft, req.To, req.Name); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"to": req.To, "status": "sent"})
}

// TestConnection 測試 SMTP 連線與認證
func (h *MailHandler) TestConnection(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	draft, err := h.drafts.resolve(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.dispatcher.TestConnection(c.Request.Context(), &draft.Config); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"provider": h.dispatcher.Sender().Name(),
		"status":   "ok",
	})
}

// StartRun 開始批次發送，立即回傳 run ID
func (h *MailHandler) StartRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	draft, err := h.drafts.resolve(&req.DraftRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	table, err := loadTable(&req.Recipients)
	if err != nil {
		respondError(c, err)
		return
	}

	runID, err := h.runs.Start(draft, table)
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Run accepted", zap.String("run_id", runID), zap.Int("rows", table.Len()))
	respondOK(c, http.StatusAccepted, gin.H{
		"run_id": runID,
		"total":  table.Len(),
	})
}

// GetRun 取得批次進度
func (h *MailHandler) GetRun(c *gin.Context) {
	status, err := h.runs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, status)
}

// StopRun 停止批次 (進行中的那封仍會完成)
func (h *MailHandler) StopRun(c *gin.Context) {
	runID := c.Param("id")
	if err := h.runs.Stop(runID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": "stopping",
	})
}
