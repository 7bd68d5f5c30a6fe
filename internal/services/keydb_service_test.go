package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-merge/internal/models"
)

func TestMemoryStatusStore(t *testing.T) {
	store := NewMemoryStatusStore()
	ctx := context.Background()

	_, err := store.GetStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	require.NoError(t, store.SetStatus(ctx, models.RunStatus{RunID: "r1", State: models.RunRunning, Total: 3}))
	require.NoError(t, store.SetStatus(ctx, models.RunStatus{RunID: "r1", State: models.RunCompleted, Total: 3, Sent: 3}))

	status, err := store.GetStatus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, status.State)
	assert.Equal(t, 3, status.Sent)
}

// 需要 KeyDB，未設定 KEYDB_URL 時略過
func TestKeyDBStatusStore(t *testing.T) {
	addr := os.Getenv("KEYDB_URL")
	if addr == "" {
		t.Skip("KEYDB_URL not set")
	}

	cfg := testConfig()
	cfg.KeyDBURL = addr
	cfg.KeyDBPassword = os.Getenv("KEYDB_PASSWORD")
	cfg.KeyDBStatusTTL = time.Minute

	svc, err := NewKeyDBService(cfg)
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	assert.True(t, svc.Ping(ctx))

	runID := "test-" + time.Now().Format("150405.000000")
	require.NoError(t, svc.SetStatus(ctx, models.RunStatus{RunID: runID, State: models.RunRunning, Total: 2}))

	status, err := svc.GetStatus(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, status.State)
	assert.Equal(t, 2, status.Total)

	_, err = svc.GetStatus(ctx, "missing-"+runID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestNewStatusStoreDefaultsToMemory(t *testing.T) {
	store, keydb, err := NewStatusStore(testConfig())
	require.NoError(t, err)
	assert.Nil(t, keydb)
	assert.IsType(t, &MemoryStatusStore{}, store)
}
