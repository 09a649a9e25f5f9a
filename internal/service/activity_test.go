package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository/memory"
)

func TestActivitySink(t *testing.T) {
	store := memory.NewActivityStore()
	sink := NewActivitySink(store)

	nodeID := uuid.New()
	sink.Record(domain.OpCreateFolder, nodeID, "alice", "docs")
	sink.Record(domain.OpRename, nodeID, "alice", "docs -> papers")
	sink.Record(domain.OpTrash, uuid.New(), "bob", "other")

	// Close дожидается записи накопленных событий.
	sink.Close()

	events, err := store.ListByOwner(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Последние события первыми.
	assert.Equal(t, domain.OpRename, events[0].Operation)
	assert.Equal(t, domain.OpCreateFolder, events[1].Operation)
	assert.Equal(t, nodeID, events[0].NodeID)
}

func TestActivityRecordedByMutations(t *testing.T) {
	store := memory.NewActivityStore()
	sink := NewActivitySink(store)

	env := newTestEnv(t, 1<<20)
	env.tree.activity = sink
	env.trash.activity = sink

	ctx := context.Background()
	folder := env.mustCreateFolder(t, "alice", "docs", nil)
	file := env.mustUpload(t, "alice", "a.txt", &folder.ID, "text/plain", 10)
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))
	require.NoError(t, env.trash.Restore(ctx, "alice", file.ID))

	sink.Close()

	events, err := sink.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, events, 4)

	ops := make([]domain.OperationKind, 0, len(events))
	for _, event := range events {
		ops = append(ops, event.Operation)
	}
	assert.Equal(t, []domain.OperationKind{
		domain.OpRestore,
		domain.OpTrash,
		domain.OpUploadFile,
		domain.OpCreateFolder,
	}, ops)
}
