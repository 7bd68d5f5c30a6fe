package services

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
	"mail-merge/internal/smtp"
)

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

// fakeSender 記錄呼叫並可指定失敗的收件人
type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMail
	fail    map[string]error
	onSend  func(to string)
	connErr error
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: make(map[string]error)}
}

func (f *fakeSender) SendOne(_ context.Context, _ *models.SMTPConfig, to, subject, html string, _ []models.Attachment) error {
	if f.onSend != nil {
		f.onSend(to)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return f.fail[to]
}

func (f *fakeSender) TestConnection(context.Context, *models.SMTPConfig) error {
	return f.connErr
}

func (f *fakeSender) Name() string {
	return "fake"
}

func (f *fakeSender) calls() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

func testConfig() *config.Config {
	return &config.Config{
		SendDelay:        0,
		SendTimeout:      5 * time.Second,
		DeliveryProvider: ProviderSMTP,
		KeyDBStatusTTL:   time.Hour,
	}
}

func testDraft() *models.Draft {
	return &models.Draft{
		Config: models.SMTPConfig{
			Server:      "127.0.0.1",
			Port:        2525,
			Username:    "user",
			Password:    "secret",
			SenderEmail: "sender@example.com",
		},
		Subject: "Hello {Name}",
		Body:    "<p>Hi {Name}, your code is {Code}</p>",
	}
}

func testTable(rows ...models.Row) *models.Table {
	return &models.Table{
		Columns:     []string{"Email", "Name", "Code"},
		EmailColumn: "Email",
		NameColumn:  "Name",
		Rows:        rows,
	}
}

// startSink 啟動本機 SMTP Sink，回傳伺服器與 host/port
func startSink(t *testing.T, opts smtp.Options) (*smtp.Server, string, int) {
	t.Helper()

	if opts.TLSConfig == nil {
		tlsConfig, err := smtp.NewSelfSignedTLSConfig()
		require.NoError(t, err)
		opts.TLSConfig = tlsConfig
	}
	opts.Addr = "127.0.0.1:0"

	srv := smtp.NewServer(opts, smtp.NewStore(""), zap.NewNop())
	addr, err := srv.Listen()
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })

	tcp := addr.(*net.TCPAddr)
	return srv, tcp.IP.String(), tcp.Port
}

func newTestSMTPSender(cfg *config.Config) *SMTPSender {
	return NewSMTPSender(cfg, zap.NewNop()).WithTLSConfig(&tls.Config{InsecureSkipVerify: true})
}
