// internal/smtp/server.go
// SMTP Sink 伺服器 - 啟動與管理本機收信伺服器

package smtp

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"mail-merge/internal/config"
)

// Options SMTP Sink 設定
type Options struct {
	Addr             string
	Domain           string
	TLSConfig        *tls.Config // nil 表示不提供 STARTTLS
	AuthRequired     bool
	Username         string
	Password         string
	AllowedDomains   []string // 允許的寄件網域 (空白表示允許全部)
	RejectRecipients []string // 在 RCPT 階段拒絕的地址或 @網域
	MaxMessageBytes  int64
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
}

// OptionsFromConfig 由應用程式設定建立 Options
// 啟用 TLS 時產生自簽憑證
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		Addr:            fmt.Sprintf(":%s", cfg.SMTPSinkPort),
		Domain:          "mail-merge.local",
		AuthRequired:    cfg.SMTPSinkAuthRequired,
		Username:        cfg.SMTPSinkUsername,
		Password:        cfg.SMTPSinkPassword,
		AllowedDomains:  cfg.SMTPSinkAllowedDomains,
		MaxMessageBytes: int64(cfg.SMTPSinkMaxMessageSize) * 1024 * 1024,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
	}

	if cfg.SMTPSinkTLSEnabled {
		tlsConfig, err := NewSelfSignedTLSConfig()
		if err != nil {
			return Options{}, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	return opts, nil
}

// Server SMTP Sink 伺服器
type Server struct {
	opts       Options
	store      *Store
	logger     *zap.Logger
	smtpServer *gosmtp.Server
	closed     atomic.Bool
}

// NewServer 建立 SMTP Sink 伺服器
func NewServer(opts Options, store *Store, logger *zap.Logger) *Server {
	if opts.Domain == "" {
		opts.Domain = "localhost"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		opts:   opts,
		store:  store,
		logger: logger,
	}

	s.smtpServer = gosmtp.NewServer(NewBackend(opts, store, logger))
	s.smtpServer.Addr = opts.Addr
	s.smtpServer.Domain = opts.Domain
	s.smtpServer.ReadTimeout = opts.ReadTimeout
	s.smtpServer.WriteTimeout = opts.WriteTimeout
	s.smtpServer.MaxMessageBytes = opts.MaxMessageBytes
	s.smtpServer.MaxRecipients = 50
	s.smtpServer.TLSConfig = opts.TLSConfig
	// 沒有 TLS 時允許明文認證 (僅限本機測試)
	s.smtpServer.AllowInsecureAuth = opts.TLSConfig == nil

	return s
}

// Store 回傳收信儲存
func (s *Server) Store() *Store {
	return s.store
}

// Start 啟動伺服器（阻塞式）
func (s *Server) Start() error {
	s.logStartup(s.opts.Addr)

	if err := s.smtpServer.ListenAndServe(); err != nil && !s.closed.Load() {
		return fmt.Errorf("SMTP server error: %w", err)
	}
	return nil
}

// Listen 綁定位址後在背景服務，回傳實際位址 (Addr 可用 127.0.0.1:0)
func (s *Server) Listen() (net.Addr, error) {
	l, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.logStartup(l.Addr().String())

	go func() {
		if err := s.smtpServer.Serve(l); err != nil && !s.closed.Load() {
			s.logger.Error("SMTP server stopped", zap.Error(err))
		}
	}()

	return l.Addr(), nil
}

// Shutdown 關閉伺服器
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down SMTP sink...")
	s.closed.Store(true)
	return s.smtpServer.Close()
}

func (s *Server) logStartup(addr string) {
	s.logger.Info("SMTP sink listening",
		zap.String("addr", addr),
		zap.Bool("starttls", s.opts.TLSConfig != nil),
		zap.Bool("auth_required", s.opts.AuthRequired),
		zap.Int64("max_message_bytes", s.opts.MaxMessageBytes),
		zap.Strings("allowed_domains", s.opts.AllowedDomains),
	)
}
