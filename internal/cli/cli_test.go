package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mail-merge/internal/models"
	"mail-merge/internal/services"
)

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

// recordingSender 記錄每封郵件，fail 內的地址回傳錯誤
type recordingSender struct {
	mu      sync.Mutex
	sent    []sentMail
	fail    map[string]error
	connErr error
}

func (s *recordingSender) SendOne(_ context.Context, _ *models.SMTPConfig, to, subject, html string, _ []models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, HTML: html})
	return s.fail[to]
}

func (s *recordingSender) TestConnection(context.Context, *models.SMTPConfig) error {
	return s.connErr
}

func (s *recordingSender) Name() string {
	return "recording"
}

func (s *recordingSender) calls() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}

type testEnv struct {
	dir    string
	sender *recordingSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	t.Setenv("CONFIG_FILE", filepath.Join(dir, "config.json"))
	t.Setenv("TEMPLATES_FILE", filepath.Join(dir, "templates.json"))
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SEND_DELAY_MS", "0")
	t.Setenv("DELIVERY_PROVIDER", "smtp")
	t.Setenv("JWT_SECRET", "")

	return &testEnv{
		dir:    dir,
		sender: &recordingSender{fail: make(map[string]error)},
	}
}

// run 執行命令並回傳輸出
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := &app{logger: zap.NewNop(), sender: e.sender}
	cmd := newRootCmd(a)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e *testEnv) saveConfig(t *testing.T) {
	t.Helper()
	_, err := e.run(t, "config", "save",
		"--preset", "gmail",
		"--username", "me@example.com",
		"--sender", "me@example.com")
	require.NoError(t, err)
}

const testCSV = "Name,Email,Company\nAlice,alice@example.com,Acme\nBob,not-an-email,Beta\nCarol,carol@example.com,Gamma\n"

func TestConfigSaveAndShow(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "save",
		"--preset", "gmail",
		"--username", "me@example.com",
		"--sender", "me@example.com",
		"--reply-to", "replies@example.com",
		"--subject", "Hello {Name}")
	require.NoError(t, err)
	assert.Contains(t, out, "smtp.gmail.com")

	out, err = env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "smtp_server:    smtp.gmail.com")
	assert.Contains(t, out, "smtp_port:      587")
	assert.Contains(t, out, "reply_to_email: replies@example.com")
	assert.Contains(t, out, "subject:        Hello {Name}")

	data, err := os.ReadFile(filepath.Join(env.dir, "config.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}

func TestConfigSaveKeepsUnchangedFields(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)

	_, err := env.run(t, "config", "save", "--port", "2525")
	require.NoError(t, err)

	out, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "smtp_server:    smtp.gmail.com")
	assert.Contains(t, out, "smtp_port:      2525")
	assert.Contains(t, out, "username:       me@example.com")
}

func TestConfigSaveRejectsInvalidReplyTo(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "config", "save", "--reply-to", "nope")
	assert.True(t, models.IsValidationError(err))
}

func TestConfigPreset(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "preset")
	require.NoError(t, err)
	assert.Contains(t, out, "aws-ses")
	assert.Contains(t, out, "smtp-mail.outlook.com:587")

	out, err = env.run(t, "config", "preset", "outlook")
	require.NoError(t, err)
	assert.Contains(t, out, "smtp-mail.outlook.com")

	_, err = env.run(t, "config", "preset", "unknown")
	assert.True(t, models.IsValidationError(err))
}

func TestSendAll(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)
	report := filepath.Join(env.dir, "report.json")

	out, err := env.run(t, "send",
		"--csv", csvPath,
		"--subject", "Hi {Name}",
		"--body", "<p>{Name} from {Company}</p>",
		"--report", report)
	require.NoError(t, err)

	calls := env.sender.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "alice@example.com", calls[0].To)
	assert.Equal(t, "Hi Alice", calls[0].Subject)
	assert.Equal(t, "<p>Alice from Acme</p>", calls[0].HTML)
	assert.Equal(t, "carol@example.com", calls[1].To)

	assert.Contains(t, out, "3 rows, 2 with a valid address")
	assert.Contains(t, out, "Completed: 2 sent, 0 failed, 1 skipped (of 3)")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var run models.Run
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, models.RunCompleted, run.State)
	assert.Len(t, run.Results, 2)

	// 主旨會被記住
	out, err = env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "subject:        Hi {Name}")
}

func TestSendReportsFailures(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)
	env.sender.fail["alice@example.com"] = models.NewSendError(models.ReasonRecipient, assert.AnError)

	out, err := env.run(t, "send", "--csv", csvPath, "--subject", "Hi", "--body", "<p>Hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 email(s) failed")

	assert.Len(t, env.sender.calls(), 2)
	assert.Contains(t, out, "FAILED  alice@example.com")
	assert.Contains(t, out, "Completed: 1 sent, 1 failed, 1 skipped (of 3)")
	assert.Contains(t, out, "Failed recipients:")
}

func TestSendDryRun(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)

	out, err := env.run(t, "send", "--csv", csvPath, "--subject", "Hi {Name}", "--body", "<p>x</p>", "--dry-run")
	require.NoError(t, err)

	assert.Empty(t, env.sender.calls())
	assert.Contains(t, out, "would send  alice@example.com")
	assert.Contains(t, out, "Hi Carol")
	assert.Contains(t, out, "skip    row 2")
}

func TestSendWithTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)

	_, err := env.run(t, "templates", "save", "promo", "--subject", "Offer for {Name}", "--body", "<b>{Company}</b>")
	require.NoError(t, err)

	_, err = env.run(t, "send", "--csv", csvPath, "--template", "promo")
	require.NoError(t, err)

	calls := env.sender.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Offer for Carol", calls[1].Subject)
	assert.Equal(t, "<b>Gamma</b>", calls[1].HTML)
}

func TestSendRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	t.Setenv("SMTP_PASSWORD", "")
	csvPath := env.writeFile(t, "list.csv", testCSV)

	_, err := env.run(t, "send", "--csv", csvPath, "--subject", "Hi", "--body", "<p>Hi</p>")
	require.Error(t, err)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
	assert.Empty(t, env.sender.calls())
}

func TestSendRequiresCSV(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "send", "--subject", "Hi", "--body", "<p>Hi</p>")
	assert.Error(t, err)
}

func TestSendRejectsOversizedAttachment(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	t.Setenv("MAX_ATTACHMENT_SIZE_MB", "1")
	csvPath := env.writeFile(t, "list.csv", testCSV)
	big := env.writeFile(t, "big.bin", strings.Repeat("x", 2*1024*1024))

	_, err := env.run(t, "send", "--csv", csvPath, "--subject", "Hi", "--body", "<p>Hi</p>", "--attach", big)
	require.Error(t, err)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "attachments", verr.Field)
}

func TestPreview(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)

	out, err := env.run(t, "preview", "--csv", csvPath, "--row", "3",
		"--subject", "Hi {Name}", "--body", "<p>{Company} {Missing}</p>")
	require.NoError(t, err)

	assert.Contains(t, out, "Variables: {Name} {Email} {Company}")
	assert.Contains(t, out, "To:      carol@example.com")
	assert.Contains(t, out, "Subject: Hi Carol")
	assert.Contains(t, out, "<p>Gamma {Missing}</p>")
	assert.Contains(t, out, "no column for {Missing}")
	assert.Empty(t, env.sender.calls())
}

func TestPreviewRowOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)

	_, err := env.run(t, "preview", "--csv", csvPath, "--row", "9", "--subject", "Hi", "--body", "x")
	assert.True(t, models.IsValidationError(err))
}

func TestPreviewSendTo(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	csvPath := env.writeFile(t, "list.csv", testCSV)

	out, err := env.run(t, "preview", "--csv", csvPath,
		"--subject", "Hi {Name}", "--body", "<p>{Name}</p>",
		"--send-to", "me@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Preview sent to me@example.com")

	calls := env.sender.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "me@example.com", calls[0].To)
	assert.Equal(t, "Hi Alice", calls[0].Subject)
}

func TestTestEmail(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)

	out, err := env.run(t, "test", "--to", "friend@example.com",
		"--subject", "Hello {Name}", "--body", "<p>{Name}</p>")
	require.NoError(t, err)
	assert.Contains(t, out, "Test email sent to friend@example.com")

	calls := env.sender.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Hello friend@example.com", calls[0].Subject)
}

func TestTestEmailWithBuiltinTemplate(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)

	_, err := env.run(t, "test", "--to", "friend@example.com", "--name", "Dana", "--template", "welcome")
	require.NoError(t, err)

	calls := env.sender.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].HTML, "Dana")
}

func TestPasswordFromStdin(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	t.Setenv("SMTP_PASSWORD", "")

	a := &app{logger: zap.NewNop(), sender: env.sender}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"check", "--password-stdin"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Connection OK (recording, smtp.gmail.com:587 as me@example.com)")
}

func TestCheckFailure(t *testing.T) {
	env := newTestEnv(t)
	env.saveConfig(t)
	env.sender.connErr = models.NewSendError(models.ReasonAuth, assert.AnError)

	_, err := env.run(t, "check")
	require.Error(t, err)
	assert.Equal(t, models.ReasonAuth, models.SendReasonOf(err))
}

func TestTemplatesCommands(t *testing.T) {
	env := newTestEnv(t)
	bodyFile := env.writeFile(t, "body.html", "<p>Dear {Name}, see {Link}</p>")

	_, err := env.run(t, "templates", "save", "news", "--subject", "News for {Name}", "--body-file", bodyFile)
	require.NoError(t, err)

	out, err := env.run(t, "templates", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "news")
	assert.Contains(t, out, "welcome")

	out, err = env.run(t, "templates", "show", "news")
	require.NoError(t, err)
	assert.Contains(t, out, "Subject:      News for {Name}")
	assert.Contains(t, out, "{Name} {Link}")

	_, err = env.run(t, "templates", "delete", "news")
	require.NoError(t, err)

	_, err = env.run(t, "templates", "show", "news")
	assert.True(t, models.IsValidationError(err))
}

func TestTemplatesBuiltin(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "templates", "builtin")
	require.NoError(t, err)
	for name := range services.Builtins() {
		assert.Contains(t, out, name)
	}

	_, err = env.run(t, "templates", "builtin", "welcome")
	require.NoError(t, err)

	store := services.NewTemplateStore(filepath.Join(env.dir, "templates.json"), zap.NewNop())
	_, ok := store.Get("welcome")
	assert.True(t, ok)

	_, err = env.run(t, "templates", "builtin", "nope")
	assert.True(t, models.IsValidationError(err))
}

func TestToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "token")
	assert.ErrorIs(t, err, services.ErrTokenDisabled)

	t.Setenv("JWT_SECRET", "test-secret")
	out, err := env.run(t, "token", "--subject", "ci")
	require.NoError(t, err)

	subject, err := services.NewTokenService("test-secret").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci", subject)
}
