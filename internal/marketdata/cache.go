package marketdata

import (
	"fmt"
	"sync"
)

// Cache is the per-cycle cache described in §4.2: a mapping from "kind:key"
// to the last value produced in the current cycle_id, cleared wholesale on
// StartNewCycle. Concurrency shape (a mutex-protected map with bounded
// capacity) is modeled on the teacher's CalculatorRegistry
// (internal/modules/opportunities/calculators/registry.go).
type Cache struct {
	mu       sync.RWMutex
	cycleID  uint64
	items    map[string]any
	maxItems int
}

// NewCache builds a Cache bounded at maxItems entries per cycle. A maxItems
// of 0 means unbounded; a negative maxItems disables caching (every Set is
// refused).
func NewCache(maxItems int) *Cache {
	return &Cache{items: make(map[string]any), maxItems: maxItems}
}

// StartNewCycle increments the monotonic cycle id and clears every cached
// entry (I1: no entry persisted across cycles is ever returned).
func (c *Cache) StartNewCycle() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycleID++
	c.items = make(map[string]any)
	return c.cycleID
}

// CycleID returns the current cycle id.
func (c *Cache) CycleID() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cycleID
}

func key(kind, k string) string {
	return fmt.Sprintf("%s:%s", kind, k)
}

// Get returns the cached value for (kind, k) and whether it was present.
func (c *Cache) Get(kind, k string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key(kind, k)]
	return v, ok
}

// Set stores v under (kind, k). If the cache is at capacity, the insert is
// silently refused — the caller's freshly fetched value is still returned to
// them, it simply won't be cached (§4.2 overflow behavior).
func (c *Cache) Set(kind, k string, v any) {
	if c.maxItems < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ck := key(kind, k)
	if _, exists := c.items[ck]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		return
	}
	c.items[ck] = v
}

// Len reports the number of entries currently cached, for metrics/tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
