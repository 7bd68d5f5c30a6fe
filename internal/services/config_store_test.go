package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mail-merge/internal/models"
)

func TestConfigStoreNeverWritesPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewConfigStore(path, zap.NewNop())

	cfg := models.SMTPConfig{
		Server:      "smtp.gmail.com",
		Port:        587,
		Username:    "me@gmail.com",
		Password:    "super-secret",
		SenderEmail: "me@gmail.com",
		ReplyTo:     "replies@example.com",
	}
	require.NoError(t, store.Save(cfg, "Hello {Name}"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "smtp.gmail.com", raw["smtp_server"])
	assert.Equal(t, "587", raw["smtp_port"])
	assert.Equal(t, "replies@example.com", raw["reply_to_email"])
	assert.NotContains(t, raw, "password")

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 587, saved.SMTP.Port)
	assert.Equal(t, "me@gmail.com", saved.SMTP.Username)
	assert.Empty(t, saved.SMTP.Password)
	assert.Equal(t, "Hello {Name}", saved.Subject)
}

func TestConfigStoreRoundTripKeepsValues(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), "config.json"), zap.NewNop())

	cfg := models.SMTPConfig{
		Server:      " smtp.example.com ",
		Port:        2525,
		Username:    " user ",
		Password:    "secret",
		SenderEmail: "sender@example.com ",
		ReplyTo:     " replies@example.com",
	}
	require.NoError(t, store.Save(cfg, " Hi {Name} "))

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.WithoutPassword(), saved.SMTP)
	assert.Equal(t, " Hi {Name} ", saved.Subject)
}

func TestConfigStoreMissingFile(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), "config.json"), zap.NewNop())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.SMTPConfig{}, saved.SMTP)
}

func TestConfigStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := NewConfigStore(path, zap.NewNop()).Load()
	assert.Error(t, err)
}

func TestConfigStoreNumericPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"smtp_server":"mail.example.com","smtp_port":465}`), 0o644))

	saved, err := NewConfigStore(path, zap.NewNop()).Load()
	require.NoError(t, err)
	assert.Equal(t, 465, saved.SMTP.Port)
}

func TestConfigStoreApplyPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := NewConfigStore(path, zap.NewNop())
	require.NoError(t, store.Save(models.SMTPConfig{Username: "me", SenderEmail: "me@example.com"}, ""))

	saved, err := store.ApplyPreset("gmail")
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com", saved.SMTP.Server)
	assert.Equal(t, 587, saved.SMTP.Port)
	assert.Equal(t, "me", saved.SMTP.Username)

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "smtp.gmail.com", reloaded.SMTP.Server)

	_, err = store.ApplyPreset("nope")
	assert.True(t, models.IsValidationError(err))
}
