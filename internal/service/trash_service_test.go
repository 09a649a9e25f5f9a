package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestMoveToTrashAndRestore(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, "alice", "docs", nil)
	file := env.mustUpload(t, "alice", "a.txt", &docs.ID, "text/plain", 100)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))

	trashed, err := env.tree.GetNode(ctx, file.ID)
	require.NoError(t, err)
	assert.True(t, trashed.InTrash)
	require.NotNil(t, trashed.DeletedAt)
	require.NotNil(t, trashed.PurgeAt)
	assert.WithinDuration(t, trashed.DeletedAt.Add(testRetention), *trashed.PurgeAt, time.Second)

	// Повторное удаление — конфликт.
	err = env.trash.MoveToTrash(ctx, "alice", file.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, env.trash.Restore(ctx, "alice", file.ID))

	restored, err := env.tree.GetNode(ctx, file.ID)
	require.NoError(t, err)
	assert.False(t, restored.InTrash)
	assert.Nil(t, restored.DeletedAt)
	assert.Nil(t, restored.PurgeAt)

	// Имя, родитель и размер пережили round-trip.
	assert.Equal(t, file.Name, restored.Name)
	require.NotNil(t, restored.ParentID)
	assert.Equal(t, docs.ID, *restored.ParentID)
	assert.Equal(t, file.SizeBytes, restored.SizeBytes)

	// Восстановление живого узла — конфликт.
	err = env.trash.Restore(ctx, "alice", file.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestTrashIsOwnerScoped(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)

	err := env.trash.MoveToTrash(ctx, "bob", file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))

	err = env.trash.Restore(ctx, "bob", file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = env.trash.DeletePermanently(ctx, "bob", file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestoreReparentsWhenParentGone(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, "alice", "docs", nil)
	file := env.mustUpload(t, "alice", "a.txt", &docs.ID, "text/plain", 10)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", docs.ID))

	// Родитель в корзине — файл поднимается в корень.
	require.NoError(t, env.trash.Restore(ctx, "alice", file.ID))

	restored, err := env.tree.GetNode(ctx, file.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.ParentID)
}

func TestDeletePermanently(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 100)

	// Живой узел напрямую не удаляется.
	err := env.trash.DeletePermanently(ctx, "alice", file.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))
	require.NoError(t, env.trash.DeletePermanently(ctx, "alice", file.ID))

	_, err = env.tree.GetNode(ctx, file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, env.blob.Len())

	// Повтор по исчезнувшему узлу — NotFound, purge идемпотентен.
	err = env.trash.DeletePermanently(ctx, "alice", file.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	snapshot, err := env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snapshot.UsedBytes)
}

func TestPurgedFolderPromotesChildren(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, "alice", "docs", nil)
	child := env.mustUpload(t, "alice", "a.txt", &docs.ID, "text/plain", 100)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", docs.ID))
	require.NoError(t, env.trash.DeletePermanently(ctx, "alice", docs.ID))

	// Ребёнок удалённой папки поднимается в корень, как при
	// ON DELETE SET NULL, а не остаётся с висячей родительской ссылкой.
	node, err := env.tree.GetNode(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, node.ParentID)

	children, err := env.tree.ListChildren(ctx, "alice", nil, domain.ChildFilter{})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	// Живой ребёнок по-прежнему учитывается в квоте и достижим.
	snapshot, err := env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), snapshot.UsedBytes)
	assert.Equal(t, int64(1), snapshot.FileCount)
}

func TestEmptyTrashPromotesChildren(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	docs := env.mustCreateFolder(t, "alice", "docs", nil)
	child := env.mustUpload(t, "alice", "a.txt", &docs.ID, "text/plain", 100)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", docs.ID))
	require.NoError(t, env.trash.EmptyTrash(ctx, "alice"))

	node, err := env.tree.GetNode(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, node.ParentID)

	children, err := env.tree.ListChildren(ctx, "alice", nil, domain.ChildFilter{})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)
}

func TestEmptyTrash(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	a := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 100)
	b := env.mustUpload(t, "alice", "b.txt", nil, "text/plain", 200)
	keep := env.mustUpload(t, "alice", "keep.txt", nil, "text/plain", 300)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", a.ID))
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", b.ID))

	require.NoError(t, env.trash.EmptyTrash(ctx, "alice"))

	items, err := env.trash.ListTrash(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, items)

	// Живой файл не тронут, его блоб на месте.
	_, err = env.tree.GetNode(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.blob.Len())

	snapshot, err := env.usage.CurrentUsage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(300), snapshot.UsedBytes)
}

func TestListTrash(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))

	items, err := env.trash.ListTrash(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, file.ID, items[0].Node.ID)
	assert.NotEmpty(t, items[0].ExpiresIn)
	assert.NotEqual(t, "expired", items[0].ExpiresIn)

	// Чужая корзина пуста.
	items, err = env.trash.ListTrash(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPurgeExpired(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	expired := env.mustUpload(t, "alice", "old.txt", nil, "text/plain", 100)
	fresh := env.mustUpload(t, "alice", "fresh.txt", nil, "text/plain", 100)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", expired.ID))
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", fresh.ID))

	// Срок первого узла истёк.
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, env.nodes.SetTrashState(ctx, expired.ID, true, &past, &past))

	purged, err := env.trash.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = env.tree.GetNode(ctx, expired.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Непросроченный узел остаётся в корзине.
	node, err := env.tree.GetNode(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, node.InTrash)

	// Повторный проход ничего не находит.
	purged, err = env.trash.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)
}

func TestPurgeExpiredSkipsRestored(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 100)
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, env.nodes.SetTrashState(ctx, file.ID, true, &past, &past))

	require.NoError(t, env.trash.Restore(ctx, "alice", file.ID))

	purged, err := env.trash.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged)

	node, err := env.tree.GetNode(ctx, file.ID)
	require.NoError(t, err)
	assert.False(t, node.InTrash)
}

func TestTrashSettings(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	// Без явной записи действует дефолт.
	settings, err := env.trash.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, testRetention.String(), settings.RetentionPeriod)

	require.NoError(t, env.trash.UpdateRetentionPeriod(ctx, "alice", "1h"))

	settings, err = env.trash.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "1h", settings.RetentionPeriod)

	err = env.trash.UpdateRetentionPeriod(ctx, "alice", "soon")
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = env.trash.UpdateRetentionPeriod(ctx, "alice", "-5m")
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Новый период применяется к последующим удалениям.
	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))

	node, err := env.tree.GetNode(ctx, file.ID)
	require.NoError(t, err)
	require.NotNil(t, node.PurgeAt)
	assert.WithinDuration(t, node.DeletedAt.Add(time.Hour), *node.PurgeAt, time.Second)
}
