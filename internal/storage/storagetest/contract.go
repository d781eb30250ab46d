// Package storagetest is a contract suite every storage.Backend must pass.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/storage"
)

// Run exercises backend through storage.Manager. newBackend must return an
// empty backend for each call.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()

	manager := func(t *testing.T) *storage.Manager {
		return storage.NewManager(newBackend(t), nil)
	}

	t.Run("CollectionIdempotent", func(t *testing.T) {
		m := manager(t)
		a, err := m.Collection("subject")
		require.NoError(t, err)
		b, err := m.Collection("subject")
		require.NoError(t, err)
		assert.Same(t, a, b)
	})

	t.Run("BackendCreateReturnsExisting", func(t *testing.T) {
		backend := newBackend(t)
		first, err := backend.CreateCollection("event")
		require.NoError(t, err)
		require.NoError(t, first.Put("k", []byte("v")))

		second, err := backend.CreateCollection("event")
		require.NoError(t, err)
		v, found, err := second.Get("k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v"), v)
	})

	t.Run("GetAbsent", func(t *testing.T) {
		c := collection(t, manager(t), "subject")
		_, err := c.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, storage.ErrEntryNotFound)
	})

	t.Run("PutGetOverwriteDelete", func(t *testing.T) {
		ctx := context.Background()
		c := collection(t, manager(t), "subject")

		require.NoError(t, c.Put(ctx, "a", []byte("1")))
		v, err := c.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)

		require.NoError(t, c.Put(ctx, "a", []byte("2")))
		v, err = c.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), v)

		require.NoError(t, c.Delete(ctx, "a"))
		_, err = c.Get(ctx, "a")
		assert.ErrorIs(t, err, storage.ErrEntryNotFound)
	})

	t.Run("EmptyValue", func(t *testing.T) {
		ctx := context.Background()
		c := collection(t, manager(t), "subject")
		require.NoError(t, c.Put(ctx, "empty", []byte{}))
		v, err := c.Get(ctx, "empty")
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("CollectionsIsolated", func(t *testing.T) {
		ctx := context.Background()
		m := manager(t)
		a := collection(t, m, "a")
		b := collection(t, m, "b")
		require.NoError(t, a.Put(ctx, "k", []byte("a")))
		_, err := b.Get(ctx, "k")
		assert.ErrorIs(t, err, storage.ErrEntryNotFound)
	})

	t.Run("ScanOrderAndPrefix", func(t *testing.T) {
		ctx := context.Background()
		c := collection(t, manager(t), "event")
		for _, k := range []string{"s1/002", "s2/001", "s1/001", "s1/010", "s0/009"} {
			require.NoError(t, c.Put(ctx, k, []byte(k)))
		}

		forward, err := storage.Collect(c.Scan(ctx, false, "s1/"))
		require.NoError(t, err)
		assert.Equal(t, []string{"s1/001", "s1/002", "s1/010"}, keys(forward))
		assert.Equal(t, []byte("s1/001"), forward[0].Value)

		backward, err := storage.Collect(c.Scan(ctx, true, "s1/"))
		require.NoError(t, err)
		assert.Equal(t, []string{"s1/010", "s1/002", "s1/001"}, keys(backward))

		all, err := storage.Collect(c.Scan(ctx, false, ""))
		require.NoError(t, err)
		assert.Len(t, all, 5)

		none, err := storage.Collect(c.Scan(ctx, true, "zz"))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ScanSingleUse", func(t *testing.T) {
		ctx := context.Background()
		c := collection(t, manager(t), "event")
		require.NoError(t, c.Put(ctx, "k", []byte("v")))

		seq := c.Scan(ctx, false, "")
		first, err := storage.Collect(seq)
		require.NoError(t, err)
		assert.Len(t, first, 1)

		_, err = storage.Collect(seq)
		assert.ErrorIs(t, err, storage.ErrScanConsumed)
	})

	t.Run("ScanEarlyStop", func(t *testing.T) {
		ctx := context.Background()
		c := collection(t, manager(t), "event")
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, c.Put(ctx, k, nil))
		}
		var seen []string
		for tuple, err := range c.Scan(ctx, false, "") {
			require.NoError(t, err)
			seen = append(seen, tuple.Key)
			if len(seen) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"a", "b"}, seen)
	})

	t.Run("ScanIsLive", func(t *testing.T) {
		ctx := context.Background()
		c := collection(t, manager(t), "event")
		require.NoError(t, c.Put(ctx, "a", []byte("1")))
		require.NoError(t, c.Put(ctx, "c", []byte("3")))

		var seen []string
		for tuple, err := range c.Scan(ctx, false, "") {
			require.NoError(t, err)
			seen = append(seen, tuple.Key)
			if tuple.Key == "a" {
				require.NoError(t, c.Put(ctx, "b", []byte("2")))
			}
		}
		assert.Equal(t, []string{"a", "b", "c"}, seen)
	})

	t.Run("ScanCancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		c := collection(t, manager(t), "event")
		require.NoError(t, c.Put(ctx, "a", nil))
		cancel()

		_, err := storage.Collect(c.Scan(ctx, false, ""))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func collection(t *testing.T, m *storage.Manager, name string) *storage.Collection {
	t.Helper()
	c, err := m.Collection(name)
	require.NoError(t, err)
	return c
}

func keys(tuples []storage.Tuple) []string {
	out := make([]string, len(tuples))
	for i, t := range tuples {
		out[i] = t.Key
	}
	return out
}
