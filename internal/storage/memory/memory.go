// Package memory is an in-memory storage.Backend used by tests, the
// scenario harness and `ledgerbridge run --db :memory:`.
package memory

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/ledgerbridge/internal/storage"
)

// Backend holds every collection in process memory.
type Backend struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

func New() *Backend {
	return &Backend{collections: make(map[string]*Collection)}
}

// CreateCollection returns the existing collection for name or a new one.
func (b *Backend) CreateCollection(name string) (storage.BackendCollection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = &Collection{values: make(map[string][]byte)}
		b.collections[name] = c
	}
	return c, nil
}

// Collection keeps its keys sorted so iteration can seek.
type Collection struct {
	mu     sync.RWMutex
	keys   []string
	values map[string][]byte
}

func (c *Collection) Get(key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (c *Collection) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		i, _ := slices.BinarySearch(c.keys, key)
		c.keys = slices.Insert(c.keys, i, key)
	}
	c.values[key] = slices.Clone(value)
	return nil
}

func (c *Collection) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		return nil
	}
	delete(c.values, key)
	if i, found := slices.BinarySearch(c.keys, key); found {
		c.keys = slices.Delete(c.keys, i, i+1)
	}
	return nil
}

// Len reports the number of stored keys.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

func (c *Collection) Iterate(reverse bool, prefix string) storage.BackendIterator {
	return &iterator{c: c, reverse: reverse, prefix: prefix}
}

// iterator re-seeks on every Next, so it observes writes made after it was
// created and never holds the lock between calls.
type iterator struct {
	c       *Collection
	reverse bool
	prefix  string
	last    string
	started bool
	done    bool
}

func (it *iterator) Next() (storage.Tuple, bool, error) {
	if it.done {
		return storage.Tuple{}, false, nil
	}
	it.c.mu.RLock()
	defer it.c.mu.RUnlock()

	keys := it.c.keys
	var idx int
	if !it.reverse {
		if it.started {
			i, found := slices.BinarySearch(keys, it.last)
			if found {
				i++
			}
			idx = i
		} else {
			idx, _ = slices.BinarySearch(keys, it.prefix)
		}
		if idx >= len(keys) || !strings.HasPrefix(keys[idx], it.prefix) {
			it.done = true
			return storage.Tuple{}, false, nil
		}
	} else {
		if it.started {
			i, _ := slices.BinarySearch(keys, it.last)
			idx = i - 1
		} else {
			idx = len(keys) - 1
			// Skip keys sorting after the prefix range.
			for idx >= 0 && keys[idx] > it.prefix && !strings.HasPrefix(keys[idx], it.prefix) {
				idx--
			}
		}
		if idx < 0 || !strings.HasPrefix(keys[idx], it.prefix) {
			it.done = true
			return storage.Tuple{}, false, nil
		}
	}

	key := keys[idx]
	it.last = key
	it.started = true
	return storage.Tuple{Key: key, Value: slices.Clone(it.c.values[key])}, true, nil
}
