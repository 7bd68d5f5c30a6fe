// internal/services/mail_sender.go
// 郵件發送服務共用介面

package services

import (
	"context"

	"mail-merge/internal/models"
)

// MailSender 郵件發送服務介面
// 所有郵件發送服務（SMTP、SendGrid 等）都需實作此介面
type MailSender interface {
	// SendOne 發送單封郵件，失敗時回傳 *models.SendError
	SendOne(ctx context.Context, cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) error

	// TestConnection 測試連線與認證，不發送郵件
	TestConnection(ctx context.Context, cfg *models.SMTPConfig) error

	// Name 回傳服務名稱，用於 logging
	Name() string
}

// ConfigValidator 發送服務自訂的設定檢查
// 未實作時使用 SMTPConfig.Validate
type ConfigValidator interface {
	ValidateConfig(cfg *models.SMTPConfig) error
}
