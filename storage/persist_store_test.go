package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceStore_BasicOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	key := []byte("test-key")
	value := []byte("test-value")
	require.NoError(t, ps.Put(key, value))

	got, found, err := ps.Get(key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, value, got)

	_, found, err = ps.Get([]byte("non-existent"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ps.Delete(key))
	_, found, err = ps.Get(key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPersistenceStore_BatchAndPrefix(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	require.NoError(t, ps.Put([]byte("b/gone"), []byte{9}))
	require.NoError(t, ps.WriteBatch([][2][]byte{
		{[]byte("a/2"), []byte{2}},
		{[]byte("a/1"), []byte{1}},
		{[]byte("b/1"), []byte{3}},
		{[]byte("b/gone"), nil},
	}))

	kvs, err := ps.GetWithPrefix([]byte("a/"))
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, []byte("a/1"), kvs[0][0])
	assert.Equal(t, []byte("a/2"), kvs[1][0])

	kvs, err = ps.GetWithPrefix([]byte("b/"))
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, []byte{3}, kvs[0][1])
}

func TestPersistenceStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ps, err := NewPersistenceStore(dir)
	require.NoError(t, err)
	require.NoError(t, ps.Put([]byte("k"), []byte("v")))
	require.NoError(t, ps.Close())

	ps, err = NewPersistenceStore(dir)
	require.NoError(t, err)
	defer ps.Close()
	got, found, err := ps.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v"), got)
}
