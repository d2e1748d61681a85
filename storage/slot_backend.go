package storage

import (
	"fmt"
	"sync"

	"github.com/vaporyorg/util-contracts/common"
)

// SlotWrite is one committed word of a unit's persistent store.
type SlotWrite struct {
	Unit  common.Address
	Slot  common.Hash
	Value common.Hash
}

// SlotBackend holds committed persistent-store words. Never-written slots
// read as the zero word; writing the zero word removes the entry.
type SlotBackend interface {
	GetSlot(unit common.Address, slot common.Hash) (common.Hash, error)
	// PutSlots applies all writes atomically.
	PutSlots(writes []SlotWrite) error
	// Slots returns every non-zero slot of unit.
	Slots(unit common.Address) (map[common.Hash]common.Hash, error)
	Close() error
}

type slotKey struct {
	unit common.Address
	slot common.Hash
}

// MemoryBackend is a map-backed SlotBackend.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[slotKey]common.Hash
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[slotKey]common.Hash)}
}

func (m *MemoryBackend) GetSlot(unit common.Address, slot common.Hash) (common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[slotKey{unit, slot}], nil
}

func (m *MemoryBackend) PutSlots(writes []SlotWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		k := slotKey{w.Unit, w.Slot}
		if w.Value == (common.Hash{}) {
			delete(m.slots, k)
		} else {
			m.slots[k] = w.Value
		}
	}
	return nil
}

func (m *MemoryBackend) Slots(unit common.Address) (map[common.Hash]common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[common.Hash]common.Hash)
	for k, v := range m.slots {
		if k.unit == unit {
			out[k.slot] = v
		}
	}
	return out, nil
}

func (m *MemoryBackend) Close() error { return nil }

// slotPrefix namespaces slot entries inside the LevelDB keyspace.
const slotPrefix = 's'

// LevelDBBackend stores slots under key 's' ++ unit ++ slot.
type LevelDBBackend struct {
	ps *PersistenceStore
}

// NewLevelDBBackend opens a LevelDB-backed slot store; an empty path keeps
// the database in memory.
func NewLevelDBBackend(path string) (*LevelDBBackend, error) {
	ps, err := NewPersistenceStore(path)
	if err != nil {
		return nil, err
	}
	return &LevelDBBackend{ps: ps}, nil
}

func slotDBKey(unit common.Address, slot common.Hash) []byte {
	key := make([]byte, 0, 1+common.AddressLength+common.HashLength)
	key = append(key, slotPrefix)
	key = append(key, unit[:]...)
	return append(key, slot[:]...)
}

func (b *LevelDBBackend) GetSlot(unit common.Address, slot common.Hash) (common.Hash, error) {
	data, found, err := b.ps.Get(slotDBKey(unit, slot))
	if err != nil {
		return common.Hash{}, err
	}
	if !found {
		return common.Hash{}, nil
	}
	return common.BytesToHash(data), nil
}

func (b *LevelDBBackend) PutSlots(writes []SlotWrite) error {
	kvs := make([][2][]byte, 0, len(writes))
	for _, w := range writes {
		var value []byte
		if w.Value != (common.Hash{}) {
			value = w.Value.Bytes()
		}
		kvs = append(kvs, [2][]byte{slotDBKey(w.Unit, w.Slot), value})
	}
	return b.ps.WriteBatch(kvs)
}

func (b *LevelDBBackend) Slots(unit common.Address) (map[common.Hash]common.Hash, error) {
	prefix := append([]byte{slotPrefix}, unit[:]...)
	kvs, err := b.ps.GetWithPrefix(prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[common.Hash]common.Hash, len(kvs))
	for _, kv := range kvs {
		if len(kv[0]) != len(prefix)+common.HashLength {
			return nil, fmt.Errorf("malformed slot key %x", kv[0])
		}
		out[common.BytesToHash(kv[0][len(prefix):])] = common.BytesToHash(kv[1])
	}
	return out, nil
}

func (b *LevelDBBackend) Close() error {
	return b.ps.Close()
}
