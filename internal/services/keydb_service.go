// internal/services/keydb_service.go
// KeyDB 狀態快取服務 - 批次進度 (有效期限由 KEYDB_STATUS_TTL_HOURS 設定)

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
)

// KeyDBService KeyDB 服務
// 實作 StatusStore interface
type KeyDBService struct {
	cfg    *config.Config
	client *redis.Client
}

// NewKeyDBService 建立 KeyDB 服務
func NewKeyDBService(cfg *config.Config) (*KeyDBService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.KeyDBURL,
		Password: cfg.KeyDBPassword,
		DB:       0,
	})

	// 測試連接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to KeyDB: %w", err)
	}

	return &KeyDBService{
		cfg:    cfg,
		client: client,
	}, nil
}

func statusKey(runID string) string {
	return fmt.Sprintf("mailmerge:run:%s", runID)
}

// SetStatus 設定批次進度
func (s *KeyDBService) SetStatus(ctx context.Context, status models.RunStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	return s.client.Set(ctx, statusKey(status.RunID), data, s.cfg.KeyDBStatusTTL).Err()
}

// GetStatus 取得批次進度
func (s *KeyDBService) GetStatus(ctx context.Context, runID string) (*models.RunStatus, error) {
	data, err := s.client.Get(ctx, statusKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var status models.RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return &status, nil
}

// Ping 檢查連接
func (s *KeyDBService) Ping(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close 關閉連接
func (s *KeyDBService) Close() error {
	return s.client.Close()
}
