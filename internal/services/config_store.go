// internal/services/config_store.go
// SMTP 設定儲存 - config.json (不含密碼)

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mail-merge/internal/models"
)

// SavedConfig 設定檔內容
type SavedConfig struct {
	SMTP    models.SMTPConfig `json:"smtp"`
	Subject string            `json:"subject,omitempty"`
}

// configFile config.json 格式 (埠號以字串儲存)
type configFile struct {
	SMTPServer   string   `json:"smtp_server"`
	SMTPPort     portText `json:"smtp_port"`
	Username     string   `json:"username"`
	SenderEmail  string   `json:"sender_email"`
	ReplyToEmail string   `json:"reply_to_email"`
	Subject      string   `json:"subject,omitempty"`
}

// portText 讀取時接受字串或數字，寫入時為字串
type portText int

func (p portText) MarshalJSON() ([]byte, error) {
	if p == 0 {
		return json.Marshal("")
	}
	return json.Marshal(strconv.Itoa(int(p)))
}

func (p *portText) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = portText(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("smtp_port must be a number or string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid smtp_port %q: %w", s, err)
	}
	*p = portText(n)
	return nil
}

// ConfigStore SMTP 設定儲存
type ConfigStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewConfigStore 建立設定儲存
func NewConfigStore(path string, logger *zap.Logger) *ConfigStore {
	return &ConfigStore{
		path:   path,
		logger: logger,
	}
}

// Save 依原值儲存設定，密碼永遠不會寫入
func (s *ConfigStore) Save(cfg models.SMTPConfig, subject string) error {
	file := configFile{
		SMTPServer:   cfg.Server,
		SMTPPort:     portText(cfg.Port),
		Username:     cfg.Username,
		SenderEmail:  cfg.SenderEmail,
		ReplyToEmail: cfg.ReplyTo,
		Subject:      subject,
	}

	data, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	s.logger.Info("Configuration saved", zap.String("path", s.path), zap.String("smtp_server", file.SMTPServer))
	return nil
}

// Load 讀取設定 (Password 為空)
// 檔案不存在時回傳空設定，內容毀損時回傳錯誤
func (s *ConfigStore) Load() (*SavedConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &SavedConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", s.path, err)
	}

	return &SavedConfig{
		SMTP: models.SMTPConfig{
			Server:      file.SMTPServer,
			Port:        int(file.SMTPPort),
			Username:    file.Username,
			SenderEmail: file.SenderEmail,
			ReplyTo:     file.ReplyToEmail,
		},
		Subject: file.Subject,
	}, nil
}

// ApplyPreset 將預設值套用到已儲存的設定並寫回
func (s *ConfigStore) ApplyPreset(name string) (*SavedConfig, error) {
	preset, ok := models.FindPreset(name)
	if !ok {
		return nil, models.NewValidationError("preset", fmt.Sprintf("unknown preset %q", name))
	}

	saved, err := s.Load()
	if err != nil {
		return nil, err
	}
	preset.Apply(&saved.SMTP)

	if err := s.Save(saved.SMTP, saved.Subject); err != nil {
		return nil, err
	}
	return saved, nil
}
