// internal/smtp/store.go
// 收信儲存 - 記憶體保存，可選擇另存 .eml

package smtp

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mail-merge/internal/models"
)

// Store 收到的郵件 (依收信順序)
type Store struct {
	mu        sync.RWMutex
	messages  []*models.CapturedMessage
	outputDir string
}

// NewStore 建立收信儲存
// outputDir 有值時每封郵件另存為 <id>.eml
func NewStore(outputDir string) *Store {
	return &Store{outputDir: outputDir}
}

// Save 儲存郵件
func (s *Store) Save(msg *models.CapturedMessage) error {
	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path := filepath.Join(s.outputDir, msg.ID+".eml")
		if err := os.WriteFile(path, msg.Raw, 0644); err != nil {
			return fmt.Errorf("failed to write message file: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// All 回傳所有郵件
func (s *Store) All() []*models.CapturedMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CapturedMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Count 回傳郵件數
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset 清除所有郵件
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
