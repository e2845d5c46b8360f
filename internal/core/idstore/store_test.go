package idstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "tvoverlay_ui_notification_ids_abc123", KeyFor("abc123"))
}

func TestAddAndRemove(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := New("entry1", storage, nil)

	require.NoError(t, store.Add(ctx, "washer"))
	require.NoError(t, store.Add(ctx, "dryer"))
	assert.Equal(t, []string{"washer", "dryer"}, store.IDs())

	require.NoError(t, store.Remove(ctx, "washer"))
	assert.Equal(t, []string{"dryer"}, store.IDs())

	persisted, err := storage.Load(ctx, store.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"dryer"}, persisted)
}

func TestConcurrentAddKeepsSingleEntry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := New("entry1", storage, nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Add(ctx, "abc"))
		}()
	}
	wg.Wait()

	persisted, err := storage.Load(ctx, store.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, persisted)
	assert.Equal(t, 2, storage.Saves())
}

func TestRemoveMissingStillPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := New("entry1", storage, nil)

	var notified [][]string
	store.Subscribe(func(ids []string) { notified = append(notified, ids) })

	require.NoError(t, store.Remove(ctx, "missing"))

	assert.Equal(t, 1, storage.Saves())
	require.Len(t, notified, 1)
	assert.Empty(t, notified[0])
}

func TestObserversRunAfterPersist(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := New("entry1", storage, nil)

	store.Subscribe(func(ids []string) {
		persisted, err := storage.Load(ctx, store.Key())
		require.NoError(t, err)
		assert.Equal(t, ids, persisted)
		assert.Equal(t, ids, store.IDs())
	})

	require.NoError(t, store.Add(ctx, "a"))
	require.NoError(t, store.Add(ctx, "b"))
}

func TestFailedPersistLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := New("entry1", storage, nil)
	require.NoError(t, store.Add(ctx, "keep"))

	calls := 0
	store.Subscribe(func([]string) { calls++ })
	storage.SaveErr = errors.New("disk full")

	err := store.Add(ctx, "new")
	require.Error(t, err)
	assert.Equal(t, []string{"keep"}, store.IDs())
	assert.Equal(t, 0, calls)
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store := New("entry1", NewMemoryStorage(), nil)

	calls := 0
	sub := store.Subscribe(func([]string) { calls++ })
	require.NoError(t, store.Add(ctx, "a"))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, store.Add(ctx, "b"))

	assert.Equal(t, 1, calls)
}

func TestLoadRestoresPersistedSet(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, KeyFor("entry1"), StorageVersion, []string{"x", "y"}))

	store := New("entry1", storage, nil)
	require.NoError(t, store.Load(ctx))
	assert.Equal(t, []string{"x", "y"}, store.IDs())
	assert.True(t, store.Contains("y"))

	empty := New("entry2", storage, nil)
	require.NoError(t, empty.Load(ctx))
	assert.NotNil(t, empty.IDs())
	assert.Empty(t, empty.IDs())
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	store := New("entry1", storage, nil)
	require.NoError(t, store.Add(ctx, "a"))

	require.NoError(t, store.Purge(ctx))

	persisted, err := storage.Load(ctx, store.Key())
	require.NoError(t, err)
	assert.Nil(t, persisted)
	assert.Empty(t, store.IDs())
}
