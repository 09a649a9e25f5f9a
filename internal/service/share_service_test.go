package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestGrant(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)

	share, err := env.share.Grant(ctx, "alice", file.ID, "bob", domain.AccessTypeView)
	require.NoError(t, err)
	assert.Equal(t, "bob", share.GranteeID)
	assert.Equal(t, domain.AccessTypeView, share.AccessType)

	// Повторная выдача тому же получателю.
	_, err = env.share.Grant(ctx, "alice", file.ID, "bob", domain.AccessTypeEdit)
	assert.ErrorIs(t, err, domain.ErrAlreadyShared)

	// Самому себе делиться нельзя.
	_, err = env.share.Grant(ctx, "alice", file.ID, "alice", domain.AccessTypeView)
	assert.ErrorIs(t, err, domain.ErrSelfShareForbidden)

	// Делиться можно только своим.
	_, err = env.share.Grant(ctx, "bob", file.ID, "carol", domain.AccessTypeView)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = env.share.Grant(ctx, "alice", file.ID, "", domain.AccessTypeView)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = env.share.Grant(ctx, "alice", file.ID, "carol", domain.AccessType("admin"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = env.share.Grant(ctx, "alice", uuid.New(), "carol", domain.AccessTypeView)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)
	_, err := env.share.Grant(ctx, "alice", file.ID, "bob", domain.AccessTypeEdit)
	require.NoError(t, err)

	err = env.share.Revoke(ctx, "bob", file.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	require.NoError(t, env.share.Revoke(ctx, "alice", file.ID, "bob"))

	perm, err := env.share.EffectivePermission(ctx, file.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionNone, perm)

	// Снимать нечего — NotFound.
	err = env.share.Revoke(ctx, "alice", file.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEffectivePermission(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)

	perm, err := env.share.EffectivePermission(ctx, file.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionOwner, perm)

	perm, err = env.share.EffectivePermission(ctx, file.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionNone, perm)

	_, err = env.share.Grant(ctx, "alice", file.ID, "bob", domain.AccessTypeEdit)
	require.NoError(t, err)
	_, err = env.share.Grant(ctx, "alice", file.ID, "carol", domain.AccessTypeView)
	require.NoError(t, err)

	perm, err = env.share.EffectivePermission(ctx, file.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionEdit, perm)

	perm, err = env.share.EffectivePermission(ctx, file.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionView, perm)

	_, err = env.share.EffectivePermission(ctx, uuid.New(), "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTrashSuspendsGrantedAccess(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)
	_, err := env.share.Grant(ctx, "alice", file.ID, "bob", domain.AccessTypeEdit)
	require.NoError(t, err)

	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", file.ID))

	// Пока узел в корзине, выдача не действует, но владелец доступ не теряет.
	perm, err := env.share.EffectivePermission(ctx, file.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionNone, perm)

	perm, err = env.share.EffectivePermission(ctx, file.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionOwner, perm)

	// Восстановление возвращает прежний доступ без повторной выдачи.
	require.NoError(t, env.trash.Restore(ctx, "alice", file.ID))

	perm, err = env.share.EffectivePermission(ctx, file.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionEdit, perm)
}

func TestAccessibleTo(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	a := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)
	b := env.mustUpload(t, "alice", "b.txt", nil, "text/plain", 10)
	c := env.mustUpload(t, "carol", "c.txt", nil, "text/plain", 10)

	for _, nodeID := range []uuid.UUID{a.ID, b.ID, c.ID} {
		owner := "alice"
		if nodeID == c.ID {
			owner = "carol"
		}
		_, err := env.share.Grant(ctx, owner, nodeID, "bob", domain.AccessTypeView)
		require.NoError(t, err)
	}

	nodes, err := env.share.AccessibleTo(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	// Узел в корзине из выборки исчезает, после восстановления возвращается.
	require.NoError(t, env.trash.MoveToTrash(ctx, "alice", a.ID))

	nodes, err = env.share.AccessibleTo(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	require.NoError(t, env.trash.Restore(ctx, "alice", a.ID))

	nodes, err = env.share.AccessibleTo(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	// Вычищенный узел пропускается, даже если выдача осталась.
	require.NoError(t, env.trash.MoveToTrash(ctx, "carol", c.ID))
	require.NoError(t, env.trash.DeletePermanently(ctx, "carol", c.ID))

	nodes, err = env.share.AccessibleTo(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestListGrants(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	ctx := context.Background()

	file := env.mustUpload(t, "alice", "a.txt", nil, "text/plain", 10)
	_, err := env.share.Grant(ctx, "alice", file.ID, "bob", domain.AccessTypeView)
	require.NoError(t, err)
	_, err = env.share.Grant(ctx, "alice", file.ID, "carol", domain.AccessTypeEdit)
	require.NoError(t, err)

	grants, err := env.share.ListGrants(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Len(t, grants, 2)

	_, err = env.share.ListGrants(ctx, "bob", file.ID)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}
