package cache

import (
	"context"
	"testing"
	"time"

	"focus-service/internal/focus"
	"focus-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetLatest(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)

	snap := models.StateSnapshot{
		SessionID: "a",
		Result:    focus.DetectionResult{State: focus.Distracted, Confidence: 0.5},
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.StoreResult(ctx, snap))

	got, err := store.GetLatest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, focus.Distracted, got.Result.State)

	snap.Result.State = focus.Focused
	require.NoError(t, store.StoreResult(ctx, snap))
	got, _ = store.GetLatest(ctx, "a")
	assert.Equal(t, focus.Focused, got.Result.State)

	require.NoError(t, store.DeleteSession(ctx, "a"))
	_, err = store.GetLatest(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Close())
}

func TestLatestKey(t *testing.T) {
	assert.Equal(t, "focus:session:abc:latest", latestKey("abc"))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, "127.0.0.1:1", time.Minute)
	assert.Error(t, err)
}
