package orion

import (
	"encoding/json"
	"sync"

	"orion_source/internal/adapters/observability"
)

// MemoCache holds resolved response bodies by IRI for the lifetime of one
// run. It never evicts.
type MemoCache struct {
	mu sync.RWMutex
	m  map[string]json.RawMessage
}

func NewMemoCache() *MemoCache {
	return &MemoCache{m: make(map[string]json.RawMessage)}
}

func (c *MemoCache) Get(iri string) (json.RawMessage, bool) {
	b, ok := c.lookup(iri)
	if ok {
		observability.ObserveCache("memo", "hit")
	} else {
		observability.ObserveCache("memo", "miss")
	}
	return b, ok
}

// lookup reads without counting a hit or miss.
func (c *MemoCache) lookup(iri string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.m[iri]
	return b, ok
}

func (c *MemoCache) Set(iri string, b json.RawMessage) {
	c.mu.Lock()
	c.m[iri] = b
	c.mu.Unlock()
	observability.ObserveCache("memo", "set")
}

func (c *MemoCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
