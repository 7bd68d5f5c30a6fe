// internal/smtp/session.go
// SMTP Session 處理 - 接收郵件並解析 MIME 格式

package smtp

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mail-merge/internal/models"
)

var (
	errAuthFailed = &gosmtp.SMTPError{
		Code:         535,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 8},
		Message:      "Authentication failed",
	}
	errAuthRequired = &gosmtp.SMTPError{
		Code:         530,
		EnhancedCode: gosmtp.EnhancedCode{5, 7, 0},
		Message:      "Authentication required",
	}
)

// Session 實作 smtp.Session 與 smtp.AuthSession 介面
// 處理單一 SMTP 連線的郵件接收
type Session struct {
	opts   Options
	store  *Store
	logger *zap.Logger

	username      string
	authenticated bool
	from          string   // 寄件者地址
	to            []string // 收件者地址列表
}

// NewSession 建立新的 Session
func NewSession(opts Options, store *Store, logger *zap.Logger) *Session {
	return &Session{
		opts:   opts,
		store:  store,
		logger: logger,
		to:     make([]string, 0),
	}
}

// AuthMechanisms 支援的認證方式
func (s *Session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

// Auth 處理 PLAIN 認證
// 若 AuthRequired 為 false，則接受任何帳密
func (s *Session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if s.opts.AuthRequired && (username != s.opts.Username || password != s.opts.Password) {
			s.logger.Info("SMTP authentication failed", zap.String("username", username))
			return errAuthFailed
		}
		s.username = username
		s.authenticated = true
		return nil
	}), nil
}

// Mail 處理 MAIL FROM 指令
func (s *Session) Mail(from string, opts *gosmtp.MailOptions) error {
	if s.opts.AuthRequired && !s.authenticated {
		return errAuthRequired
	}

	from = cleanEmail(from)
	s.logger.Debug("MAIL FROM", zap.String("from", from))

	// 檢查是否在允許的網域清單中
	if len(s.opts.AllowedDomains) > 0 && !matchesAny(from, s.opts.AllowedDomains) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Sender domain not allowed: %s", from),
		}
	}

	s.from = from
	return nil
}

// Rcpt 處理 RCPT TO 指令
func (s *Session) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	to = cleanEmail(to)
	s.logger.Debug("RCPT TO", zap.String("to", to))

	if matchesAny(to, s.opts.RejectRecipients) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      fmt.Sprintf("Mailbox unavailable: %s", to),
		}
	}

	s.to = append(s.to, to)
	return nil
}

// Data 處理 DATA 指令，接收郵件內容
func (s *Session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.logger.Warn("Failed to read mail data", zap.Error(err))
		return fmt.Errorf("failed to read mail data: %w", err)
	}

	msg := ParseMessage(raw)
	msg.ID = uuid.New().String()
	msg.Username = s.username
	msg.ReceivedAt = time.Now()
	if s.from != "" {
		msg.From = s.from
	}
	if len(s.to) > 0 {
		msg.To = append([]string(nil), s.to...)
	}

	if err := s.store.Save(msg); err != nil {
		s.logger.Error("Failed to store message", zap.Error(err))
		return fmt.Errorf("failed to store message: %w", err)
	}

	s.logger.Info("Message captured",
		zap.String("id", msg.ID),
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)),
		zap.Int("size", msg.Size),
	)
	return nil
}

// Reset 重置 Session 狀態
func (s *Session) Reset() {
	s.from = ""
	s.to = make([]string, 0)
}

// Logout 處理 QUIT 指令
func (s *Session) Logout() error {
	return nil
}

// ParseMessage 解析 MIME 郵件
// 無法解析時整封內容作為純文字
func ParseMessage(raw []byte) *models.CapturedMessage {
	msg := &models.CapturedMessage{
		Raw:  raw,
		Size: len(raw),
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		msg.Subject = "(No Subject)"
		msg.Text = string(raw)
		return msg
	}
	defer mr.Close()

	header := mr.Header
	msg.Subject, _ = header.Subject()
	msg.MessageID, _ = header.MessageID()
	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = addrs[0].Address
	}
	if addrs, err := header.AddressList("To"); err == nil {
		for _, a := range addrs {
			msg.To = append(msg.To, a.Address)
		}
	}
	if addrs, err := header.AddressList("Reply-To"); err == nil && len(addrs) > 0 {
		msg.ReplyTo = addrs[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			// io.EOF 或格式錯誤的後續部分
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			content, _ := io.ReadAll(part.Body)
			switch {
			case strings.HasPrefix(contentType, "text/html"):
				msg.HTML = string(content)
			case strings.HasPrefix(contentType, "text/plain"):
				msg.Text = string(content)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, models.CapturedAttachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        len(content),
				Content:     content,
			})
		}
	}

	return msg
}

// matchesAny 地址完全相符，或網域相符 (example.com 與 @example.com 皆可)
func matchesAny(address string, patterns []string) bool {
	address = strings.ToLower(address)
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		switch {
		case address == p:
			return true
		case strings.HasPrefix(p, "@") && strings.HasSuffix(address, p):
			return true
		case !strings.Contains(p, "@") && strings.HasSuffix(address, "@"+p):
			return true
		}
	}
	return false
}

// cleanEmail 清理郵件地址（移除角括號）
func cleanEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.TrimPrefix(email, "<")
	email = strings.TrimSuffix(email, ">")
	return email
}
