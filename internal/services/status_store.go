// internal/services/status_store.go
// 批次進度儲存 - 記憶體實作

package services

import (
	"context"
	"errors"
	"sync"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
)

// ErrRunNotFound 找不到批次
var ErrRunNotFound = errors.New("run not found")

// StatusStore 批次進度儲存介面
// 僅供查詢進度，不是發送結果的正式來源
type StatusStore interface {
	SetStatus(ctx context.Context, status models.RunStatus) error
	GetStatus(ctx context.Context, runID string) (*models.RunStatus, error)
}

// MemoryStatusStore 記憶體進度儲存
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]models.RunStatus
}

// NewMemoryStatusStore 建立記憶體進度儲存
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{
		statuses: make(map[string]models.RunStatus),
	}
}

// SetStatus 更新批次進度
func (s *MemoryStatusStore) SetStatus(_ context.Context, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[status.RunID] = status
	return nil
}

// GetStatus 取得批次進度
func (s *MemoryStatusStore) GetStatus(_ context.Context, runID string) (*models.RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &status, nil
}

// NewStatusStore 依設定選擇進度儲存
// 設定 KEYDB_URL 時使用 KeyDB (同時回傳以便健康檢查與關閉)，否則使用記憶體
func NewStatusStore(cfg *config.Config) (StatusStore, *KeyDBService, error) {
	if cfg.KeyDBURL == "" {
		return NewMemoryStatusStore(), nil, nil
	}

	keydb, err := NewKeyDBService(cfg)
	if err != nil {
		return nil, nil, err
	}
	return keydb, keydb, nil
}
