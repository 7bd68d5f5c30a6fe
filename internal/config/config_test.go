package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "config.json", cfg.ConfigFile)
	assert.Equal(t, "templates.json", cfg.TemplatesFile)
	assert.Equal(t, 2*time.Second, cfg.SendDelay)
	assert.Equal(t, 60*time.Second, cfg.SendTimeout)
	assert.Equal(t, "smtp", cfg.DeliveryProvider)
	assert.Equal(t, 24*time.Hour, cfg.KeyDBStatusTTL)
	assert.Equal(t, "", cfg.KeyDBURL)
	assert.Equal(t, "", cfg.JWTSecret)
	assert.Equal(t, "2525", cfg.SMTPSinkPort)
	assert.True(t, cfg.SMTPSinkTLSEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SEND_DELAY_MS", "500")
	t.Setenv("SEND_TIMEOUT_SECONDS", "0")
	t.Setenv("DELIVERY_PROVIDER", "SendGrid")
	t.Setenv("SMTP_SINK_ALLOWED_DOMAINS", "example.com, test.org ,")
	t.Setenv("SMTP_SINK_AUTH_REQUIRED", "yes")
	t.Setenv("MAX_ATTACHMENT_SIZE_MB", "not-a-number")
	t.Setenv("SMTP_TLS_INSECURE", "1")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 500*time.Millisecond, cfg.SendDelay)
	assert.Equal(t, time.Duration(0), cfg.SendTimeout)
	assert.Equal(t, "sendgrid", cfg.DeliveryProvider)
	assert.Equal(t, []string{"example.com", "test.org"}, cfg.SMTPSinkAllowedDomains)
	assert.True(t, cfg.SMTPSinkAuthRequired)
	assert.Equal(t, 25, cfg.MaxAttachmentSizeMB)
	assert.True(t, cfg.SMTPTLSInsecure)
}
