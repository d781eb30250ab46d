package storage

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Manager hands out engine-facing collections backed by a foreign Backend.
// Collection handles are cached by name for the lifetime of the manager.
type Manager struct {
	backend Backend
	logger  *slog.Logger

	mu          sync.Mutex
	collections map[string]*Collection
}

// NewManager wraps backend. A nil logger uses slog.Default().
func NewManager(backend Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:     backend,
		logger:      logger,
		collections: make(map[string]*Collection),
	}
}

// Collection returns the named collection, asking the backend to create it
// on first use. Later calls with the same name return the same handle.
func (m *Manager) Collection(name string) (*Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.collections[name]; ok {
		return c, nil
	}

	inner, err := m.backend.CreateCollection(name)
	if err != nil {
		m.logger.Debug("storage create failed", "collection", name, "error", err)
		return nil, backendError("create", name, "", err)
	}
	if inner == nil {
		return nil, &Error{Op: "create", Collection: name, Detail: "backend returned no collection"}
	}

	c := &Collection{name: name, inner: inner, logger: m.logger}
	m.collections[name] = c
	m.logger.Debug("storage collection created", "collection", name)
	return c, nil
}

// Collection is the engine-facing view of a BackendCollection.
// It is safe for concurrent use when the backend collection is.
type Collection struct {
	name   string
	inner  BackendCollection
	logger *slog.Logger
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Get returns the stored value or ErrEntryNotFound.
func (c *Collection) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, found, err := c.inner.Get(key)
	c.logger.Debug("storage get", "collection", c.name, "key", key, "found", found, "error", err)
	if err != nil {
		return nil, backendError("get", c.name, key, err)
	}
	if !found {
		return nil, ErrEntryNotFound
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (c *Collection) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.inner.Put(key, value)
	c.logger.Debug("storage put", "collection", c.name, "key", key, "size", len(value), "error", err)
	if err != nil {
		return backendError("put", c.name, key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error unless the
// backend says so.
func (c *Collection) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.inner.Delete(key)
	c.logger.Debug("storage delete", "collection", c.name, "key", key, "error", err)
	if err != nil {
		return backendError("delete", c.name, key, err)
	}
	return nil
}

// Scan returns a lazy, single-use sequence of tuples whose keys start with
// prefix. Backend iterator errors are yielded and end the sequence. Ranging
// over the result a second time yields ErrScanConsumed.
func (c *Collection) Scan(ctx context.Context, reverse bool, prefix string) iter.Seq2[Tuple, error] {
	var used atomic.Bool
	return func(yield func(Tuple, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(Tuple{}, ErrScanConsumed)
			return
		}

		it := c.inner.Iterate(reverse, prefix)
		if it == nil {
			yield(Tuple{}, &Error{Op: "iterate", Collection: c.name, Detail: "backend returned no iterator"})
			return
		}
		if closer, ok := it.(Closer); ok {
			defer func() {
				if err := closer.Close(); err != nil {
					c.logger.Debug("storage iterator close failed", "collection", c.name, "error", err)
				}
			}()
		}
		c.logger.Debug("storage scan", "collection", c.name, "prefix", prefix, "reverse", reverse)

		for {
			if err := ctx.Err(); err != nil {
				yield(Tuple{}, err)
				return
			}
			t, ok, err := it.Next()
			if err != nil {
				yield(Tuple{}, backendError("iterate", c.name, "", err))
				return
			}
			if !ok {
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// Collect drains a scan into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Tuple, error]) ([]Tuple, error) {
	var out []Tuple
	for t, err := range seq {
		if err != nil {
			return out, fmt.Errorf("scan: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}
