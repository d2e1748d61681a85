package state

import (
	"bytes"
	"fmt"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/storage"
	"golang.org/x/exp/slices"
)

type slotID struct {
	unit common.Address
	slot common.Hash
}

// journalEntry undoes one SetState.
type journalEntry struct {
	id        slotID
	prev      common.Hash
	prevDirty bool
}

type revision struct {
	id           int
	journalIndex int
}

// SlotChange is the net effect on one slot between a snapshot and now.
type SlotChange struct {
	Unit   common.Address `json:"unit"`
	Slot   common.Hash    `json:"slot"`
	Before common.Hash    `json:"before"`
	After  common.Hash    `json:"after"`
}

// StateDB is the journaled persistent store of every unit. Uncommitted
// writes live in an overlay on top of the backend; every write is
// journaled so a snapshot can be reverted exactly.
//
// StateDB is not safe for concurrent use. The host serializes access.
type StateDB struct {
	backend storage.SlotBackend

	dirty   map[slotID]common.Hash
	journal []journalEntry

	validRevisions []revision
	nextRevisionID int
}

func New(backend storage.SlotBackend) *StateDB {
	return &StateDB{
		backend: backend,
		dirty:   make(map[slotID]common.Hash),
		journal: make([]journalEntry, 0, 64),
	}
}

// Backend returns the committed layer.
func (s *StateDB) Backend() storage.SlotBackend {
	return s.backend
}

// GetState returns the current value of a slot, including uncommitted writes.
func (s *StateDB) GetState(unit common.Address, slot common.Hash) (common.Hash, error) {
	if v, ok := s.dirty[slotID{unit, slot}]; ok {
		return v, nil
	}
	return s.GetCommittedState(unit, slot)
}

// GetCommittedState ignores uncommitted writes.
func (s *StateDB) GetCommittedState(unit common.Address, slot common.Hash) (common.Hash, error) {
	v, err := s.backend.GetSlot(unit, slot)
	if err != nil {
		return common.Hash{}, fmt.Errorf("load %s/%s: %w", unit.Hex(), slot.Hex(), err)
	}
	return v, nil
}

// SetState records a write. It is journaled even if value equals the
// current value: a write attempt is what read-only contexts reject.
func (s *StateDB) SetState(unit common.Address, slot common.Hash, value common.Hash) {
	id := slotID{unit, slot}
	prev, prevDirty := s.dirty[id]
	s.journal = append(s.journal, journalEntry{id: id, prev: prev, prevDirty: prevDirty})
	s.dirty[id] = value
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id, len(s.journal)})
	return id
}

func (s *StateDB) revisionIndex(revid int) int {
	idx, found := slices.BinarySearchFunc(s.validRevisions, revid, func(r revision, target int) int {
		return r.id - target
	})
	if !found {
		return -1
	}
	return idx
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) error {
	idx := s.revisionIndex(revid)
	if idx < 0 {
		return fmt.Errorf("revision %d: %w", revid, simerrors.ErrSavepointUnknown)
	}
	snapshot := s.validRevisions[idx].journalIndex

	for i := len(s.journal) - 1; i >= snapshot; i-- {
		e := s.journal[i]
		if e.prevDirty {
			s.dirty[e.id] = e.prev
		} else {
			delete(s.dirty, e.id)
		}
	}
	undone := len(s.journal) - snapshot
	s.journal = s.journal[:snapshot]
	s.validRevisions = s.validRevisions[:idx]
	log.Trace(log.StateMonitoring, "reverted", "revision", revid, "undone", undone)
	return nil
}

// HasWritesSince reports whether any write made after revid survives.
func (s *StateDB) HasWritesSince(revid int) bool {
	idx := s.revisionIndex(revid)
	if idx < 0 {
		return false
	}
	return len(s.journal) > s.validRevisions[idx].journalIndex
}

// ChangesSince returns the net slot changes made after revid, in the order
// slots were first written.
func (s *StateDB) ChangesSince(revid int) ([]SlotChange, error) {
	idx := s.revisionIndex(revid)
	if idx < 0 {
		return nil, fmt.Errorf("revision %d: %w", revid, simerrors.ErrSavepointUnknown)
	}
	seen := make(map[slotID]int)
	var changes []SlotChange
	for _, e := range s.journal[s.validRevisions[idx].journalIndex:] {
		if _, ok := seen[e.id]; ok {
			continue
		}
		before := e.prev
		if !e.prevDirty {
			v, err := s.GetCommittedState(e.id.unit, e.id.slot)
			if err != nil {
				return nil, err
			}
			before = v
		}
		seen[e.id] = len(changes)
		changes = append(changes, SlotChange{Unit: e.id.unit, Slot: e.id.slot, Before: before})
	}
	for id, i := range seen {
		changes[i].After = s.dirty[id]
	}
	return changes, nil
}

// Commit flushes every uncommitted write to the backend and clears the
// journal. Outstanding snapshots become invalid.
func (s *StateDB) Commit() error {
	if len(s.dirty) == 0 {
		s.reset()
		return nil
	}
	writes := make([]storage.SlotWrite, 0, len(s.dirty))
	for id, v := range s.dirty {
		writes = append(writes, storage.SlotWrite{Unit: id.unit, Slot: id.slot, Value: v})
	}
	slices.SortFunc(writes, compareWrites)
	if err := s.backend.PutSlots(writes); err != nil {
		return fmt.Errorf("commit %d slots: %w", len(writes), err)
	}
	log.Debug(log.StateMonitoring, "committed", "slots", len(writes))
	s.reset()
	return nil
}

// Discard drops every uncommitted write.
func (s *StateDB) Discard() {
	s.reset()
}

func (s *StateDB) reset() {
	s.dirty = make(map[slotID]common.Hash)
	s.journal = s.journal[:0]
	s.validRevisions = s.validRevisions[:0]
}

func compareWrites(a, b storage.SlotWrite) int {
	if c := bytes.Compare(a.Unit[:], b.Unit[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.Slot[:], b.Slot[:])
}
