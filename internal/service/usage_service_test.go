package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestCurrentUsage(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, "alice", "docs", nil)
	env.mustUpload(t, "alice", "a.txt", &docs.ID, "text/plain", 100)
	env.mustUpload(t, "alice", "b.txt", nil, "text/plain", 200)
	env.mustUpload(t, "alice", "pic.png", nil, "image/png", 300)

	snapshot, err := env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(600), snapshot.UsedBytes)
	assert.Equal(t, int64(3), snapshot.FileCount)
	assert.Equal(t, int64(1), snapshot.FolderCount)
	assert.Equal(t, domain.TypeBreakdown{
		"text/plain": 2,
		"image/png":  1,
	}, snapshot.TypeBreakdown)
	assert.NotNil(t, snapshot.LastReconciled)
}

func TestUsageExcludesTrashed(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	env.mustUpload(t, "alice", "keep.txt", nil, "text/plain", 100)
	gone := env.mustUpload(t, "alice", "gone.png", nil, "image/png", 200)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", gone.ID))

	// Узел в корзине не считается занятым местом.
	snapshot, err := env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snapshot.UsedBytes)
	assert.Equal(t, int64(1), snapshot.FileCount)
	assert.Empty(t, snapshot.TypeBreakdown["image/png"])

	// Восстановление возвращает его в учёт.
	require.NoError(t, env.trash.Restore(ctx, "alice", gone.ID))

	snapshot, err = env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(300), snapshot.UsedBytes)
	assert.Equal(t, int64(2), snapshot.FileCount)
}

func TestRefreshRepairsDriftedCounters(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 100)

	require.NoError(t, env.quotas.Reserve(ctx, "alice", 9999))
	require.NoError(t, env.usage.Refresh(ctx, "alice"))

	snapshot, err := env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snapshot.UsedBytes)
}

func TestUsageIsOwnerScoped(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 100)
	env.mustUpload(t, "bob", "b.txt", nil, "text/plain", 700)

	snapshot, err := env.usage.CurrentUsage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snapshot.UsedBytes)
	assert.Equal(t, int64(1), snapshot.FileCount)
}
