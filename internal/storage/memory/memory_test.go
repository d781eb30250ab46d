package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/storage"
	"github.com/roach88/ledgerbridge/internal/storage/storagetest"
)

func TestContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend { return New() })
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	c, err := New().CreateCollection("x")
	require.NoError(t, err)
	require.NoError(t, c.Delete("nope"))
	assert.Equal(t, 0, c.(*Collection).Len())
}

func TestReverseIterationSeesDeletes(t *testing.T) {
	bc, err := New().CreateCollection("x")
	require.NoError(t, err)
	for _, k := range []string{"p1", "p2", "p3"} {
		require.NoError(t, bc.Put(k, []byte(k)))
	}

	it := bc.Iterate(true, "p")
	tuple, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p3", tuple.Key)

	require.NoError(t, bc.Delete("p2"))

	tuple, ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p1", tuple.Key)

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateCollectionRejectsEmptyName(t *testing.T) {
	_, err := New().CreateCollection("")
	assert.Error(t, err)
}
