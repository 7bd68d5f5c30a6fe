// internal/services/sendgrid_service.go
// SendGrid 郵件發送服務

package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
)

// SendGridService SendGrid 郵件發送服務
// 實作 MailSender interface，SMTP 設定中只使用寄件者與 Reply-To
type SendGridService struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSendGridService 建立 SendGrid 服務
func NewSendGridService(cfg *config.Config, logger *zap.Logger) *SendGridService {
	return &SendGridService{
		cfg:    cfg,
		logger: logger,
	}
}

// Name 回傳服務名稱
func (s *SendGridService) Name() string {
	return "SendGrid"
}

// IsConfigured 檢查 SendGrid 是否已設定
func (s *SendGridService) IsConfigured() bool {
	return s.cfg.SendGridAPIKey != ""
}

// ValidateConfig SendGrid 只需要寄件者 (Reply-To 選填)
func (s *SendGridService) ValidateConfig(cfg *models.SMTPConfig) error {
	if !models.IsPlausibleEmail(cfg.SenderEmail) {
		return models.NewValidationError("sender_email", "sender email is required")
	}
	if cfg.ReplyTo != "" && !models.IsPlausibleEmail(cfg.ReplyTo) {
		return models.NewValidationError("reply_to_email", "reply-to email is not a valid address")
	}
	if !s.IsConfigured() {
		return models.NewValidationError("sendgrid_api_key", "SendGrid API key is not configured")
	}
	return nil
}

// SendOne 發送單封郵件 (使用 SendGrid v3 API)
func (s *SendGridService) SendOne(ctx context.Context, cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) error {
	if !s.IsConfigured() {
		return models.NewSendError(models.ReasonAuth, errors.New("SendGrid API key is not configured"))
	}

	message, err := buildSendGridMail(cfg, to, subject, html, atts)
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	request := sendgrid.GetRequest(s.cfg.SendGridAPIKey, "/v3/mail/send", s.cfg.SendGridAPIHost)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return classify(ctx, models.ReasonConnection, fmt.Errorf("failed to send email via SendGrid: %w", err))
	}

	if err := statusError(response.StatusCode, response.Body); err != nil {
		return err
	}

	s.logger.Debug("Email sent via SendGrid", zap.String("to", to), zap.Int("status", response.StatusCode))
	return nil
}

// TestConnection 驗證 API key 是否有效
func (s *SendGridService) TestConnection(ctx context.Context, _ *models.SMTPConfig) error {
	if !s.IsConfigured() {
		return models.NewSendError(models.ReasonAuth, errors.New("SendGrid API key is not configured"))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	request := sendgrid.GetRequest(s.cfg.SendGridAPIKey, "/v3/scopes", s.cfg.SendGridAPIHost)
	request.Method = "GET"

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return classify(ctx, models.ReasonConnection, fmt.Errorf("failed to reach SendGrid: %w", err))
	}
	return statusError(response.StatusCode, response.Body)
}

func (s *SendGridService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SendTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.SendTimeout)
	}
	return context.WithCancel(ctx)
}

// buildSendGridMail 建立 SendGrid 郵件
func buildSendGridMail(cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) (*mail.SGMailV3, error) {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail("", cfg.SenderEmail))
	message.Subject = subject
	if cfg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", cfg.ReplyTo))
	}

	personalization := mail.NewPersonalization()
	personalization.AddTos(mail.NewEmail("", to))
	message.AddPersonalizations(personalization)

	message.AddContent(mail.NewContent("text/html", html))

	for i := range atts {
		content, err := atts[i].Data()
		if err != nil {
			return nil, models.NewSendError(models.ReasonAttachment, err)
		}

		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(content))
		attachment.SetType(atts[i].MIMEType())
		attachment.SetFilename(atts[i].Filename)
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	return message, nil
}

// statusError 依 HTTP 狀態碼分類錯誤 (2xx 表示成功)
func statusError(statusCode int, body string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == 401 || statusCode == 403:
		return models.NewSendError(models.ReasonAuth,
			fmt.Errorf("SendGrid rejected credentials (status %d): %s", statusCode, body))
	default:
		return models.NewSendError(models.ReasonTransmission,
			fmt.Errorf("SendGrid API error (status %d): %s", statusCode, body))
	}
}
