// internal/smtp/backend.go
// SMTP Backend 介面實作 - 處理連線並建立 Session

package smtp

import (
	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// Backend 實作 smtp.Backend 介面
type Backend struct {
	opts   Options
	store  *Store
	logger *zap.Logger
}

// NewBackend 建立 SMTP Backend
func NewBackend(opts Options, store *Store, logger *zap.Logger) *Backend {
	return &Backend{
		opts:   opts,
		store:  store,
		logger: logger,
	}
}

// NewSession 建立新的 SMTP Session
// 實作 smtp.Backend 介面
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	remote := ""
	if c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}
	b.logger.Debug("New SMTP connection", zap.String("remote", remote), zap.String("hostname", c.Hostname()))

	return NewSession(b.opts, b.store, b.logger.With(zap.String("remote", remote))), nil
}
