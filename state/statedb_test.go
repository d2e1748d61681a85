package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/storage"
)

var (
	unit  = common.HexToAddress("0x0000000000000000000000000000000000001000")
	other = common.HexToAddress("0x0000000000000000000000000000000000002000")
	s0    = common.Uint64ToHash(0)
	s1    = common.Uint64ToHash(1)
)

func word(v uint64) common.Hash { return common.Uint64ToHash(v) }

func mustGet(t *testing.T, db *StateDB, u common.Address, slot common.Hash) common.Hash {
	t.Helper()
	v, err := db.GetState(u, slot)
	require.NoError(t, err)
	return v
}

func TestSnapshotRevertNested(t *testing.T) {
	db := New(storage.NewMemoryBackend())

	db.SetState(unit, s0, word(1))
	outer := db.Snapshot()
	db.SetState(unit, s0, word(2))
	db.SetState(unit, s1, word(3))
	inner := db.Snapshot()
	db.SetState(unit, s0, word(4))
	db.SetState(other, s0, word(5))

	require.NoError(t, db.RevertToSnapshot(inner))
	assert.Equal(t, word(2), mustGet(t, db, unit, s0))
	assert.Equal(t, common.Hash{}, mustGet(t, db, other, s0))

	require.NoError(t, db.RevertToSnapshot(outer))
	assert.Equal(t, word(1), mustGet(t, db, unit, s0))
	assert.Equal(t, common.Hash{}, mustGet(t, db, unit, s1))

	// reverting the outer revision invalidated the inner one
	assert.ErrorIs(t, db.RevertToSnapshot(inner), simerrors.ErrSavepointUnknown)
}

func TestRevertRestoresCommittedValue(t *testing.T) {
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.PutSlots([]storage.SlotWrite{{Unit: unit, Slot: s0, Value: word(42)}}))
	db := New(backend)

	snap := db.Snapshot()
	db.SetState(unit, s0, word(7))
	assert.Equal(t, word(7), mustGet(t, db, unit, s0))
	require.NoError(t, db.RevertToSnapshot(snap))
	assert.Equal(t, word(42), mustGet(t, db, unit, s0))
}

func TestHasWritesSince(t *testing.T) {
	db := New(storage.NewMemoryBackend())
	outer := db.Snapshot()
	assert.False(t, db.HasWritesSince(outer))

	inner := db.Snapshot()
	db.SetState(unit, s0, word(1))
	assert.True(t, db.HasWritesSince(outer))
	require.NoError(t, db.RevertToSnapshot(inner))
	assert.False(t, db.HasWritesSince(outer), "reverted writes do not survive")

	// same-value write is still a write
	db.SetState(unit, s0, common.Hash{})
	assert.True(t, db.HasWritesSince(outer))
}

func TestChangesSince(t *testing.T) {
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.PutSlots([]storage.SlotWrite{{Unit: unit, Slot: s0, Value: word(10)}}))
	db := New(backend)

	sp := db.Begin("preview")
	db.SetState(unit, s0, word(11))
	db.SetState(unit, s1, word(1))
	db.SetState(unit, s0, word(12))

	changes, err := db.Changes(sp)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, SlotChange{Unit: unit, Slot: s0, Before: word(10), After: word(12)}, changes[0])
	assert.Equal(t, SlotChange{Unit: unit, Slot: s1, Before: common.Hash{}, After: word(1)}, changes[1])

	require.NoError(t, db.Rollback(sp))
	assert.Equal(t, word(10), mustGet(t, db, unit, s0))
	assert.ErrorIs(t, db.Rollback(sp), simerrors.ErrSavepointUnknown)
}

func TestReleaseKeepsWrites(t *testing.T) {
	db := New(storage.NewMemoryBackend())
	sp := db.Begin("keep")
	db.SetState(unit, s0, word(3))
	require.NoError(t, db.Release(sp))
	assert.Equal(t, word(3), mustGet(t, db, unit, s0))
	assert.ErrorIs(t, db.Release(sp), simerrors.ErrSavepointUnknown)
}

func TestCommit(t *testing.T) {
	backend, err := storage.NewLevelDBBackend("")
	require.NoError(t, err)
	defer backend.Close()
	db := New(backend)

	db.SetState(unit, s0, word(42))
	db.SetState(unit, s1, word(1))
	snap := db.Snapshot()
	require.NoError(t, db.Commit())

	v, err := db.GetCommittedState(unit, s0)
	require.NoError(t, err)
	assert.Equal(t, word(42), v)
	assert.ErrorIs(t, db.RevertToSnapshot(snap), simerrors.ErrSavepointUnknown)

	db.SetState(unit, s1, common.Hash{})
	require.NoError(t, db.Commit())
	slots, err := backend.Slots(unit)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestDiscard(t *testing.T) {
	db := New(storage.NewMemoryBackend())
	db.SetState(unit, s0, word(1))
	db.Discard()
	assert.Equal(t, common.Hash{}, mustGet(t, db, unit, s0))
}

func TestDumpAndDiff(t *testing.T) {
	db := New(storage.NewMemoryBackend())
	db.SetState(unit, s1, word(2))
	db.SetState(unit, s0, word(1))
	require.NoError(t, db.Commit())

	before, err := db.Dump(unit)
	require.NoError(t, err)
	require.Len(t, before.Slots, 2)
	assert.Equal(t, s0, before.Slots[0].Slot)

	_, modified, err := DiffDumps(before, before)
	require.NoError(t, err)
	assert.False(t, modified)

	db.SetState(unit, s1, word(3))
	db.SetState(unit, s0, common.Hash{})
	after, err := db.Dump(unit)
	require.NoError(t, err)
	require.Len(t, after.Slots, 1)

	rendered, modified, err := DiffDumps(before, after)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Contains(t, rendered, word(3).Hex())
}

func TestDumpApply(t *testing.T) {
	d := &Dump{Unit: unit, Slots: []DumpEntry{{Slot: s0, Value: word(1)}}}
	got := d.Apply([]SlotChange{
		{Unit: unit, Slot: s1, Before: common.Hash{}, After: word(5)},
		{Unit: unit, Slot: s0, Before: word(1), After: common.Hash{}},
		{Unit: other, Slot: s0, After: word(9)},
	})
	assert.Equal(t, []DumpEntry{{Slot: s1, Value: word(5)}}, got.Slots)
	assert.Len(t, d.Slots, 1, "original untouched")
}
