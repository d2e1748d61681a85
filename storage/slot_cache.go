package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
)

// CachedBackend fronts another SlotBackend with an LRU cache of slot reads.
// Writes go through to the inner backend before the cache is updated.
type CachedBackend struct {
	inner SlotBackend
	cache *lru.Cache[slotKey, common.Hash]

	// Mutex orders writes against read-fills so a stale read cannot
	// repopulate the cache after a newer write.
	mu sync.RWMutex

	hits, misses atomic.Uint64
}

func NewCachedBackend(inner SlotBackend, size int) (*CachedBackend, error) {
	cache, err := lru.New[slotKey, common.Hash](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &CachedBackend{inner: inner, cache: cache}, nil
}

func (c *CachedBackend) GetSlot(unit common.Address, slot common.Hash) (common.Hash, error) {
	k := slotKey{unit, slot}
	c.mu.RLock()
	if v, ok := c.cache.Get(k); ok {
		c.hits.Add(1)
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache.Get(k); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := c.inner.GetSlot(unit, slot)
	if err != nil {
		return common.Hash{}, err
	}
	c.cache.Add(k, v)
	return v, nil
}

func (c *CachedBackend) PutSlots(writes []SlotWrite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.inner.PutSlots(writes); err != nil {
		// the inner batch is atomic, but drop what we know to be affected
		for _, w := range writes {
			c.cache.Remove(slotKey{w.Unit, w.Slot})
		}
		return err
	}
	for _, w := range writes {
		c.cache.Add(slotKey{w.Unit, w.Slot}, w.Value)
	}
	log.Trace(log.StateMonitoring, "cache updated", "writes", len(writes), "cached", c.cache.Len())
	return nil
}

func (c *CachedBackend) Slots(unit common.Address) (map[common.Hash]common.Hash, error) {
	return c.inner.Slots(unit)
}

// Stats returns cache hit and miss counters.
func (c *CachedBackend) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedBackend) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
