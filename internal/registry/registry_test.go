package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/introstore/internal/identity"
	"github.com/roach88/introstore/internal/store"
	"github.com/roach88/introstore/internal/testutil"
)

// recordingListener records deletions and checks the lock order.
type recordingListener struct {
	sync.Mutex
	reg     *Registry
	err     error
	deleted []string
	order   []string
}

func (l *recordingListener) OnIdentityDeletion(ctx context.Context, tx *store.Tx, ident identity.Identity) error {
	if !l.reg.mu.TryLock() {
		l.order = append(l.order, "registry")
	} else {
		l.reg.mu.Unlock()
	}
	if !l.TryLock() {
		l.order = append(l.order, "listener")
	} else {
		l.Unlock()
	}

	ok, err := tx.IdentityExists(ctx, ident.ID)
	if err != nil {
		return err
	}
	if ok {
		l.order = append(l.order, "before-row-delete")
	}
	l.deleted = append(l.deleted, ident.ID)
	return l.err
}

func newRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	st := testutil.OpenStore(t)
	return New(st, WithClock(testutil.NewClock())), st
}

func TestPutGet(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	ident, err := identity.New("alice", "Alice", true)
	require.NoError(t, err)
	require.NoError(t, reg.Put(ctx, ident))

	got, err := reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ident, got)

	renamed, err := identity.New("alice", "Alicia", true)
	require.NoError(t, err)
	require.NoError(t, reg.Put(ctx, renamed))

	got, err = reg.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.Nickname)

	all, err := reg.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPut_EmptyID(t *testing.T) {
	reg, _ := newRegistry(t)
	assert.ErrorIs(t, reg.Put(context.Background(), identity.Identity{}), identity.ErrEmptyID)
}

func TestGet_NotFound(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := reg.Exists(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete_NotifiesListenersUnderLocks(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	l := &recordingListener{reg: reg}
	reg.AddDeletionListener(l)

	ident, err := identity.New("carol", "carol", false)
	require.NoError(t, err)
	require.NoError(t, reg.Put(ctx, ident))

	require.NoError(t, reg.Delete(ctx, "carol"))
	assert.Equal(t, []string{"carol"}, l.deleted)
	assert.Equal(t, []string{"registry", "listener", "before-row-delete"}, l.order)

	ok, err := reg.Exists(ctx, "carol")
	require.NoError(t, err)
	assert.False(t, ok)

	// Both locks are released afterwards.
	require.True(t, l.TryLock())
	l.Unlock()
	require.True(t, reg.mu.TryLock())
	reg.mu.Unlock()
}

func TestDelete_ListenerErrorRollsBack(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	boom := errors.New("boom")
	reg.AddDeletionListener(&recordingListener{reg: reg, err: boom})

	ident, err := identity.New("carol", "carol", false)
	require.NoError(t, err)
	require.NoError(t, reg.Put(ctx, ident))

	err = reg.Delete(ctx, "carol")
	assert.ErrorIs(t, err, boom)

	ok, err := reg.Exists(ctx, "carol")
	require.NoError(t, err)
	assert.True(t, ok, "identity must survive a failed cascade")
}

func TestDelete_NotFound(t *testing.T) {
	reg, _ := newRegistry(t)
	l := &recordingListener{reg: reg}
	reg.AddDeletionListener(l)

	err := reg.Delete(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, l.deleted)
}
