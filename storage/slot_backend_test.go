package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaporyorg/util-contracts/common"
)

var (
	unitA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	unitB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func backends(t *testing.T) map[string]SlotBackend {
	ldb, err := NewLevelDBBackend("")
	require.NoError(t, err)
	cached, err := NewCachedBackend(NewMemoryBackend(), 4)
	require.NoError(t, err)
	return map[string]SlotBackend{
		"memory":  NewMemoryBackend(),
		"leveldb": ldb,
		"cached":  cached,
	}
}

func TestSlotBackends(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()

			v, err := b.GetSlot(unitA, common.Uint64ToHash(7))
			require.NoError(t, err)
			assert.Equal(t, common.Hash{}, v, "never-written slot reads zero")

			require.NoError(t, b.PutSlots([]SlotWrite{
				{unitA, common.Uint64ToHash(0), common.Uint64ToHash(42)},
				{unitA, common.Uint64ToHash(1), common.Uint64ToHash(1337)},
				{unitB, common.Uint64ToHash(0), common.Uint64ToHash(5)},
			}))

			v, err = b.GetSlot(unitA, common.Uint64ToHash(0))
			require.NoError(t, err)
			assert.Equal(t, common.Uint64ToHash(42), v)

			slots, err := b.Slots(unitA)
			require.NoError(t, err)
			assert.Len(t, slots, 2)

			// zero write deletes
			require.NoError(t, b.PutSlots([]SlotWrite{{unitA, common.Uint64ToHash(1), common.Hash{}}}))
			slots, err = b.Slots(unitA)
			require.NoError(t, err)
			assert.Len(t, slots, 1)
			v, err = b.GetSlot(unitA, common.Uint64ToHash(1))
			require.NoError(t, err)
			assert.Equal(t, common.Hash{}, v)

			slots, err = b.Slots(unitB)
			require.NoError(t, err)
			assert.Equal(t, map[common.Hash]common.Hash{common.Uint64ToHash(0): common.Uint64ToHash(5)}, slots)
		})
	}
}

func TestCachedBackendStats(t *testing.T) {
	inner := NewMemoryBackend()
	c, err := NewCachedBackend(inner, 2)
	require.NoError(t, err)

	slot := common.Uint64ToHash(1)
	_, err = c.GetSlot(unitA, slot)
	require.NoError(t, err)
	_, err = c.GetSlot(unitA, slot)
	require.NoError(t, err)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	require.NoError(t, c.PutSlots([]SlotWrite{{unitA, slot, common.Uint64ToHash(9)}}))
	v, err := c.GetSlot(unitA, slot)
	require.NoError(t, err)
	assert.Equal(t, common.Uint64ToHash(9), v, "write-through refreshes the cache")
}
