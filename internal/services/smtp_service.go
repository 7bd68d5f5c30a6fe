// internal/services/smtp_service.go
// SMTP 郵件發送服務 - STARTTLS + AUTH PLAIN，每封郵件獨立連線

package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
)

// SMTPSender SMTP 郵件發送服務
// 實作 MailSender interface，不做連線池也不重試
type SMTPSender struct {
	cfg       *config.Config
	logger    *zap.Logger
	tlsConfig *tls.Config // 非 nil 時取代預設的 TLS 設定
}

// NewSMTPSender 建立 SMTP 發送服務
func NewSMTPSender(cfg *config.Config, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		logger: logger,
	}
}

// WithTLSConfig 指定 STARTTLS 使用的 TLS 設定 (例如信任自簽憑證)
func (s *SMTPSender) WithTLSConfig(tlsConfig *tls.Config) *SMTPSender {
	s.tlsConfig = tlsConfig
	return s
}

// Name 回傳服務名稱
func (s *SMTPSender) Name() string {
	return "SMTP"
}

// SendOne 發送單封郵件
// 連線 -> STARTTLS -> AUTH PLAIN -> MAIL/RCPT/DATA -> QUIT
func (s *SMTPSender) SendOne(ctx context.Context, cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) error {
	msg, err := buildMessageBytes(cfg, to, subject, html, atts)
	if err != nil {
		var se *models.SendError
		if errors.As(err, &se) {
			return se
		}
		return models.NewSendError(models.ReasonTransmission, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	sess, err := s.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.client.Mail(cfg.SenderEmail, nil); err != nil {
		return classify(ctx, models.ReasonTransmission, fmt.Errorf("MAIL FROM rejected: %w", err))
	}
	if err := sess.client.Rcpt(to, nil); err != nil {
		return classify(ctx, models.ReasonRecipient, fmt.Errorf("recipient %s rejected: %w", to, err))
	}

	wc, err := sess.client.Data()
	if err != nil {
		return classify(ctx, models.ReasonTransmission, fmt.Errorf("DATA rejected: %w", err))
	}
	if _, err := wc.Write(msg); err != nil {
		return classify(ctx, models.ReasonTransmission, fmt.Errorf("failed to write message: %w", err))
	}
	if err := wc.Close(); err != nil {
		return classify(ctx, models.ReasonTransmission, fmt.Errorf("message not accepted: %w", err))
	}

	// 郵件已被接受，QUIT 失敗不影響結果
	if err := sess.client.Quit(); err != nil {
		s.logger.Debug("SMTP QUIT failed", zap.String("server", cfg.Addr()), zap.Error(err))
	}

	s.logger.Debug("Email sent via SMTP",
		zap.String("to", to),
		zap.Int("size", len(msg)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// TestConnection 測試 SMTP 連線與認證 (連線 -> STARTTLS -> AUTH -> QUIT)
func (s *SMTPSender) TestConnection(ctx context.Context, cfg *models.SMTPConfig) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sess, err := s.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.client.Quit(); err != nil {
		return classify(ctx, models.ReasonConnection, fmt.Errorf("failed to close session: %w", err))
	}
	return nil
}

// smtpSession 一次 SMTP 連線
type smtpSession struct {
	client *gosmtp.Client
	stop   func() bool
}

func (ss *smtpSession) close() {
	ss.stop()
	_ = ss.client.Close()
}

// open 建立已完成 STARTTLS 與認證的連線
func (s *SMTPSender) open(ctx context.Context, cfg *models.SMTPConfig) (*smtpSession, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Addr())
	if err != nil {
		return nil, classify(ctx, models.ReasonConnection, fmt.Errorf("failed to connect to %s: %w", cfg.Addr(), err))
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// context 結束時關閉連線，中斷卡住的讀寫
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	// 伺服器未提供 STARTTLS 時 NewClientStartTLS 會回傳錯誤
	client, err := gosmtp.NewClientStartTLS(conn, s.tlsConfigFor(cfg.Server))
	if err != nil {
		stop()
		_ = conn.Close()
		return nil, classify(ctx, models.ReasonConnection, fmt.Errorf("STARTTLS failed on %s: %w", cfg.Addr(), err))
	}
	sess := &smtpSession{client: client, stop: stop}

	if err := sess.client.Auth(sasl.NewPlainClient("", cfg.Username, cfg.Password)); err != nil {
		sess.close()
		return nil, classify(ctx, models.ReasonAuth, fmt.Errorf("authentication failed: %w", err))
	}

	return sess, nil
}

func (s *SMTPSender) tlsConfigFor(host string) *tls.Config {
	if s.tlsConfig != nil {
		return s.tlsConfig.Clone()
	}
	return &tls.Config{
		ServerName:         host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.cfg.SMTPTLSInsecure,
	}
}

func (s *SMTPSender) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SendTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.SendTimeout)
	}
	return context.WithCancel(ctx)
}

// classify 將錯誤包裝為 SendError，逾時一律歸類為 timeout
func classify(ctx context.Context, reason models.SendReason, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return models.NewSendError(models.ReasonTimeout, err)
	}
	return models.NewSendError(reason, err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
