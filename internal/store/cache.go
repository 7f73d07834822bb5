package store

import (
	"sync"
	"time"

	"github.com/benscrane/relay-sub000/internal/model"
)

// defaultRulesCacheTTL is the read-through cache lifetime for a given
// endpoint's rule set (spec.md §4.5) used when Open is not given an
// override: it removes a storage round trip from the hot path and is
// invalidated on any rule or endpoint mutation, never write-back.
const defaultRulesCacheTTL = 60 * time.Second

type ruleCacheEntry struct {
	rules   []model.Rule
	expires time.Time
}

// ruleCache is a small TTL cache keyed by endpoint ID, adapted from the
// teacher's infrastructure/cache package.
type ruleCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]ruleCacheEntry
}

func newRuleCache(ttl time.Duration) *ruleCache {
	if ttl <= 0 {
		ttl = defaultRulesCacheTTL
	}
	return &ruleCache{ttl: ttl, entries: make(map[string]ruleCacheEntry)}
}

func (c *ruleCache) get(endpointID string) ([]model.Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[endpointID]
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.rules, true
}

func (c *ruleCache) set(endpointID string, rules []model.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[endpointID] = ruleCacheEntry{rules: rules, expires: time.Now().Add(c.ttl)}
}

// invalidate drops a single endpoint's cached rule set. Called at the
// moment of any rule mutation or endpoint deletion — deletion must
// invalidate immediately rather than rely on the SQL ON DELETE CASCADE
// alone, since the cascade has no way to signal the in-process cache
// (spec.md §9 open question).
func (c *ruleCache) invalidate(endpointID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, endpointID)
}
