package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "digest", []byte("payload")))

	got, err := store.Get(ctx, "digest")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestBoltStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "digest", []byte("payload")))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "digest")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestBoltStore_StatsAndClear(t *testing.T) {
	ctx := context.Background()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	count, size, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, int64(0), size)

	require.NoError(t, store.Set(ctx, "a", []byte("1234")))
	require.NoError(t, store.Set(ctx, "b", []byte("56")))

	count, size, err = store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(6), size)

	require.NoError(t, store.Clear())

	count, _, err = store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
