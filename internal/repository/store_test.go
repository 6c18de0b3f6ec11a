package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/housing-reconciler/internal/common"
	"github.com/joseph-ayodele/housing-reconciler/internal/entity"
)

type storeFactory func(t *testing.T, clock clockwork.Clock) Store

func newMemory(_ *testing.T, clock clockwork.Clock) Store {
	return NewMemoryStore(clock, nil)
}

func newSQLite(t *testing.T, clock clockwork.Clock) Store {
	store, err := OpenStore(context.Background(), common.StoreConfig{
		Driver: "sqlite",
		DSN:    "file:" + t.TempDir() + "/store.db",
	}, clock, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStores(t *testing.T) {
	factories := map[string]storeFactory{
		"memory": newMemory,
		"sqlite": newSQLite,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Run("commit and list", func(t *testing.T) { testCommitAndList(t, factory) })
			t.Run("batch is atomic", func(t *testing.T) { testBatchAtomic(t, factory) })
			t.Run("lock", func(t *testing.T) { testLock(t, factory) })
			t.Run("stale lock", func(t *testing.T) { testStaleLock(t, factory) })
		})
	}
}

func testCommitAndList(t *testing.T, factory storeFactory) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	store := factory(t, clock)
	require.NoError(t, store.Ping(ctx))

	require.NoError(t, store.Commit(ctx, []entity.MutationOp{
		entity.Create("employees", "b", "U2", map[string]any{"employeeId": "U2", "rent": 1200.0}, entity.ReasonNew),
	}))
	clock.Advance(time.Second)
	require.NoError(t, store.Commit(ctx, []entity.MutationOp{
		entity.Create("employees", "a", "U1", map[string]any{"employeeId": "U1", "note": nil}, entity.ReasonNew),
		entity.Create("properties", "p", "東海", map[string]any{"name": "東海"}, entity.ReasonReference),
	}))

	docs, err := store.List(ctx, "employees")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID, "creation order, not id order")
	assert.Equal(t, "a", docs[1].ID)
	assert.Equal(t, 1200.0, docs[0].Fields["rent"])
	assert.Equal(t, clock.Now().UTC(), docs[1].CreatedAt)

	clock.Advance(time.Second)
	require.NoError(t, store.Commit(ctx, []entity.MutationOp{
		entity.Update("employees", "b", "U2", map[string]any{"rent": 1300.0}, entity.ReasonChanged),
		entity.Delete("employees", "a", "U1", entity.ReasonOrphan),
		entity.Delete("employees", "missing", "U9", entity.ReasonOrphan),
	}))

	docs, err = store.List(ctx, "employees")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{"employeeId": "U2", "rent": 1300.0}, docs[0].Fields)
	assert.Equal(t, clock.Now().UTC(), docs[0].UpdatedAt)
	assert.True(t, docs[0].UpdatedAt.After(docs[0].CreatedAt))

	props, err := store.List(ctx, "properties")
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "東海", props[0].String("name"))
}

func testBatchAtomic(t *testing.T, factory storeFactory) {
	ctx := context.Background()
	store := factory(t, clockwork.NewFakeClock())

	require.NoError(t, store.Commit(ctx, []entity.MutationOp{
		entity.Create("employees", "a", "U1", map[string]any{"name": "A"}, entity.ReasonNew),
	}))

	err := store.Commit(ctx, []entity.MutationOp{
		entity.Update("employees", "a", "U1", map[string]any{"name": "changed"}, entity.ReasonChanged),
		entity.Create("employees", "c", "U3", map[string]any{"name": "C"}, entity.ReasonNew),
		entity.Update("employees", "ghost", "U9", map[string]any{"name": "x"}, entity.ReasonChanged),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))

	docs, err := store.List(ctx, "employees")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "A", docs[0].String("name"))
}

func testLock(t *testing.T, factory storeFactory) {
	ctx := context.Background()
	store := factory(t, clockwork.NewFakeClock())
	locker, ok := store.(Locker)
	require.True(t, ok)

	require.NoError(t, locker.Acquire(ctx, "employees", "run-1", 0))
	err := locker.Acquire(ctx, "employees", "run-2", 0)
	assert.True(t, errors.Is(err, ErrLocked))
	require.NoError(t, locker.Acquire(ctx, "invoices", "run-2", 0))

	require.NoError(t, locker.Release(ctx, "employees", "run-2"), "releasing a lock held by another run is a no-op")
	assert.True(t, errors.Is(locker.Acquire(ctx, "employees", "run-3", 0), ErrLocked))

	require.NoError(t, locker.Release(ctx, "employees", "run-1"))
	require.NoError(t, locker.Acquire(ctx, "employees", "run-2", 0))
}

func testStaleLock(t *testing.T, factory storeFactory) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	store := factory(t, clock)
	locker := store.(Locker)

	require.NoError(t, locker.Acquire(ctx, "employees", "crashed", time.Hour))
	clock.Advance(30 * time.Minute)
	assert.True(t, errors.Is(locker.Acquire(ctx, "employees", "run-2", time.Hour), ErrLocked), "fresh lock holds")
	assert.True(t, errors.Is(locker.Acquire(ctx, "employees", "run-2", 0), ErrLocked), "no ttl never expires")

	clock.Advance(31 * time.Minute)
	require.NoError(t, locker.Acquire(ctx, "employees", "run-2", time.Hour), "stale lock is taken over")
	assert.True(t, errors.Is(locker.Acquire(ctx, "employees", "run-3", time.Hour), ErrLocked))

	require.NoError(t, locker.Unlock(ctx, "employees"))
	require.NoError(t, locker.Acquire(ctx, "employees", "run-3", 0))
	require.NoError(t, locker.Unlock(ctx, "invoices"), "unlocking a free collection is a no-op")
}

func TestMemoryListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil, nil)
	require.NoError(t, store.Commit(ctx, []entity.MutationOp{
		entity.Create("employees", "a", "U1", map[string]any{"name": "A"}, entity.ReasonNew),
	}))

	docs, err := store.List(ctx, "employees")
	require.NoError(t, err)
	docs[0].Fields["name"] = "mutated"

	docs, err = store.List(ctx, "employees")
	require.NoError(t, err)
	assert.Equal(t, "A", docs[0].String("name"))
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), common.StoreConfig{Driver: "oracle"}, nil, nil)
	assert.True(t, common.IsCode(err, common.CodeConfig))
}
