package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyBackend fails every operation with the configured error.
type faultyBackend struct {
	createErr error
	opErr     error
	iterErr   error
	creates   int
	tuples    []Tuple
}

func (b *faultyBackend) CreateCollection(name string) (BackendCollection, error) {
	b.creates++
	if b.createErr != nil {
		return nil, b.createErr
	}
	return &faultyCollection{b: b}, nil
}

type faultyCollection struct{ b *faultyBackend }

func (c *faultyCollection) Get(key string) ([]byte, bool, error) { return nil, false, c.b.opErr }
func (c *faultyCollection) Put(key string, value []byte) error   { return c.b.opErr }
func (c *faultyCollection) Delete(key string) error              { return c.b.opErr }

func (c *faultyCollection) Iterate(reverse bool, prefix string) BackendIterator {
	return &sliceIterator{tuples: c.b.tuples, err: c.b.iterErr}
}

type sliceIterator struct {
	tuples []Tuple
	err    error
}

func (it *sliceIterator) Next() (Tuple, bool, error) {
	if len(it.tuples) == 0 {
		if it.err != nil {
			return Tuple{}, false, it.err
		}
		return Tuple{}, false, nil
	}
	t := it.tuples[0]
	it.tuples = it.tuples[1:]
	return t, true, nil
}

func TestCollectionCreateErrorIsCustom(t *testing.T) {
	m := NewManager(&faultyBackend{createErr: errors.New("disk on fire")}, nil)
	_, err := m.Collection("subject")
	require.Error(t, err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create", se.Op)
	assert.Equal(t, "disk on fire", se.Detail)
}

func TestCollectionCachedPerName(t *testing.T) {
	b := &faultyBackend{}
	m := NewManager(b, nil)
	for range 3 {
		_, err := m.Collection("subject")
		require.NoError(t, err)
	}
	_, err := m.Collection("event")
	require.NoError(t, err)
	assert.Equal(t, 2, b.creates)
}

func TestBackendFailuresKeepMessage(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&faultyBackend{opErr: errors.New("locked by foreign host")}, nil)
	c, err := m.Collection("subject")
	require.NoError(t, err)

	_, err = c.Get(ctx, "k")
	assert.False(t, errors.Is(err, ErrEntryNotFound))
	assertBackendError(t, err, "get", "k")

	assertBackendError(t, c.Put(ctx, "k", []byte("v")), "put", "k")
	assertBackendError(t, c.Delete(ctx, "k"), "delete", "k")
}

func assertBackendError(t *testing.T, err error, op, key string) {
	t.Helper()
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, op, se.Op)
	assert.Equal(t, key, se.Key)
	assert.Equal(t, "locked by foreign host", se.Detail)
	assert.True(t, IsBackendError(err))
}

func TestScanYieldsIteratorError(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&faultyBackend{
		tuples:  []Tuple{{Key: "a"}, {Key: "b"}},
		iterErr: errors.New("cursor lost"),
	}, nil)
	c, err := m.Collection("event")
	require.NoError(t, err)

	var got []string
	var scanErr error
	for tuple, err := range c.Scan(ctx, false, "") {
		if err != nil {
			scanErr = err
			break
		}
		got = append(got, tuple.Key)
	}
	assert.Equal(t, []string{"a", "b"}, got)

	var se *Error
	require.ErrorAs(t, scanErr, &se)
	assert.Equal(t, "iterate", se.Op)
	assert.Equal(t, "cursor lost", se.Detail)
}

func TestCancelledContextShortCircuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(&faultyBackend{}, nil)
	c, err := m.Collection("x")
	require.NoError(t, err)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
