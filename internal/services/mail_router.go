// internal/services/mail_router.go
// 郵件路由服務 - 依 DELIVERY_PROVIDER 選擇對應的郵件服務

package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
)

const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
)

// MailRouter 郵件路由服務
// 實作 MailSender interface，轉交給設定的發送服務
type MailRouter struct {
	provider        string
	smtpService     MailSender
	sendgridService MailSender
	logger          *zap.Logger
}

// NewMailRouter 建立郵件路由服務
func NewMailRouter(cfg *config.Config, smtpService MailSender, sendgridService MailSender, logger *zap.Logger) *MailRouter {
	return &MailRouter{
		provider:        cfg.DeliveryProvider,
		smtpService:     smtpService,
		sendgridService: sendgridService,
		logger:          logger,
	}
}

// Route 選擇對應的郵件服務
func (r *MailRouter) Route() MailSender {
	if r.provider == ProviderSendGrid {
		return r.sendgridService
	}
	return r.smtpService
}

// SendOne 發送郵件 (自動路由到對應服務)
func (r *MailRouter) SendOne(ctx context.Context, cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) error {
	sender := r.Route()
	r.logger.Debug("Routing email", zap.String("provider", sender.Name()), zap.String("to", to))
	return sender.SendOne(ctx, cfg, to, subject, html, atts)
}

// TestConnection 測試對應服務的連線
func (r *MailRouter) TestConnection(ctx context.Context, cfg *models.SMTPConfig) error {
	return r.Route().TestConnection(ctx, cfg)
}

// ValidateConfig 使用對應服務的設定檢查
func (r *MailRouter) ValidateConfig(cfg *models.SMTPConfig) error {
	if v, ok := r.Route().(ConfigValidator); ok {
		return v.ValidateConfig(cfg)
	}
	return cfg.Validate()
}

// Name 回傳實際使用的服務名稱
func (r *MailRouter) Name() string {
	return r.Route().Name()
}

// ValidateConfiguration 驗證郵件服務設定
func (r *MailRouter) ValidateConfiguration() error {
	switch r.provider {
	case ProviderSMTP:
		if r.smtpService == nil {
			return fmt.Errorf("SMTP service is not configured")
		}
	case ProviderSendGrid:
		if r.sendgridService == nil {
			return fmt.Errorf("SendGrid service is not configured")
		}
	default:
		return fmt.Errorf("unknown delivery provider: %s", r.provider)
	}
	return nil
}

// NewDefaultMailRouter 建立 SMTP 與 SendGrid 服務並依設定路由
func NewDefaultMailRouter(cfg *config.Config, logger *zap.Logger) *MailRouter {
	return NewMailRouter(cfg,
		NewSMTPSender(cfg, logger),
		NewSendGridService(cfg, logger),
		logger,
	)
}
