// Package memory provides an in-memory cache policy with LRU eviction and
// per-entry TTL.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/axonops/fact-resolver/internal/cache"
	"github.com/axonops/fact-resolver/internal/facts"
	"github.com/axonops/fact-resolver/internal/resolution"
)

// Policy is a capacity-bounded in-memory cache of resolver outputs.
type Policy struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	items    map[string]*cacheItem
	order    []string // For LRU tracking
}

type cacheItem struct {
	outputs   []resolution.Output
	expiresAt time.Time
}

// New creates a memory policy with the given capacity and TTL. A zero or
// negative capacity means unbounded; a zero TTL means entries never expire.
func New(capacity int, ttl time.Duration) *Policy {
	return &Policy{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*cacheItem),
	}
}

// BuildCacheKey implements cache.Policy using the canonical key.
func (p *Policy) BuildCacheKey(rctx *resolution.Context, inputFacts []facts.ID) (string, error) {
	return cache.BuildKey(rctx, inputFacts)
}

// Fetch returns the cached outputs for a key, bumping its recency.
func (p *Policy) Fetch(_ context.Context, key string) ([]resolution.Output, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.items[key]
	if !ok {
		return nil, nil
	}
	if p.ttl > 0 && time.Now().After(item.expiresAt) {
		delete(p.items, key)
		p.removeFromOrder(key)
		return nil, nil
	}
	p.moveToEnd(key)

	out := make([]resolution.Output, len(item.outputs))
	copy(out, item.outputs)
	return out, nil
}

// Store saves outputs under a key, evicting the least recently used entry
// when at capacity.
func (p *Policy) Store(_ context.Context, key string, outputs []resolution.Output) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := make([]resolution.Output, len(outputs))
	copy(stored, outputs)
	item := &cacheItem{outputs: stored}
	if p.ttl > 0 {
		item.expiresAt = time.Now().Add(p.ttl)
	}

	if _, exists := p.items[key]; exists {
		p.items[key] = item
		p.moveToEnd(key)
		return nil
	}

	if p.capacity > 0 && len(p.items) >= p.capacity {
		p.evict()
	}

	p.items[key] = item
	p.order = append(p.order, key)
	return nil
}

// Clear removes all entries.
func (p *Policy) Clear(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = make(map[string]*cacheItem)
	p.order = nil
	return nil
}

// Size returns the number of cached entries.
func (p *Policy) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// evict removes the least recently used entry.
func (p *Policy) evict() {
	if len(p.order) == 0 {
		return
	}
	oldest := p.order[0]
	p.order = p.order[1:]
	delete(p.items, oldest)
}

func (p *Policy) moveToEnd(key string) {
	p.removeFromOrder(key)
	p.order = append(p.order, key)
}

func (p *Policy) removeFromOrder(key string) {
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}
