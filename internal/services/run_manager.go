// internal/services/run_manager.go
// 批次執行管理 - 背景執行、進度查詢與停止

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mail-merge/internal/models"
)

// RunManager 在背景執行批次發送
// 發送本身仍是依序進行，背景 goroutine 只為了讓介面層不被阻塞
type RunManager struct {
	dispatcher *Dispatcher
	store      StatusStore
	logger     *zap.Logger

	isShutdown bool
	active     map[string]*activeRun
	mu         sync.Mutex
	wg         sync.WaitGroup
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunManager 建立批次執行管理
func NewRunManager(dispatcher *Dispatcher, store StatusStore, logger *zap.Logger) *RunManager {
	return &RunManager{
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
		active:     make(map[string]*activeRun),
	}
}

// Start 開始批次發送並回傳 run ID
// 檢查失敗時不會啟動
func (m *RunManager) Start(draft *models.Draft, table *models.Table) (string, error) {
	if err := m.dispatcher.Validate(draft, table); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isShutdown {
		return "", fmt.Errorf("run manager is shutting down")
	}

	// 複製草稿，避免呼叫端在發送期間修改
	d := *draft
	d.Attachments = append([]models.Attachment(nil), draft.Attachments...)

	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	m.active[runID] = ar

	m.publish(models.RunStatus{
		RunID:     runID,
		State:     models.RunRunning,
		Total:     table.Len(),
		StartedAt: time.Now(),
		Results:   []models.SendResult{},
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(ar.done)
		defer cancel()

		if _, err := m.dispatcher.sendAll(ctx, runID, &d, table, m.publish); err != nil {
			m.logger.Error("Bulk send aborted", zap.String("run_id", runID), zap.Error(err))
		}

		m.mu.Lock()
		delete(m.active, runID)
		m.mu.Unlock()
	}()

	return runID, nil
}

// publish 寫入進度，失敗只記錄
func (m *RunManager) publish(status models.RunStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.store.SetStatus(ctx, status); err != nil {
		m.logger.Warn("Failed to publish run status", zap.String("run_id", status.RunID), zap.Error(err))
	}
}

// Status 取得批次進度
func (m *RunManager) Status(ctx context.Context, runID string) (*models.RunStatus, error) {
	return m.store.GetStatus(ctx, runID)
}

// Stop 要求停止批次
// 進行中的那封郵件會完成，之後不再發送
func (m *RunManager) Stop(runID string) error {
	m.mu.Lock()
	ar, ok := m.active[runID]
	m.mu.Unlock()

	if !ok {
		if _, err := m.store.GetStatus(context.Background(), runID); err != nil {
			return err
		}
		// 已經結束
		return nil
	}

	m.logger.Info("Stop requested", zap.String("run_id", runID))
	ar.cancel()
	return nil
}

// Wait 等待批次結束
func (m *RunManager) Wait(ctx context.Context, runID string) error {
	m.mu.Lock()
	ar, ok := m.active[runID]
	m.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-ar.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveRuns 回傳執行中的批次數
func (m *RunManager) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// GracefulShutdown 停止所有批次並等待結束
func (m *RunManager) GracefulShutdown(ctx context.Context) {
	m.logger.Info("Initiating run manager shutdown...")

	m.mu.Lock()
	m.isShutdown = true
	for _, ar := range m.active {
		ar.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Run manager shutdown complete")
	case <-ctx.Done():
		m.logger.Warn("Shutdown timeout, runs still in flight", zap.Int("active", m.ActiveRuns()))
	}
}
