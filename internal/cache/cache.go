// Package cache holds short-lived copies of backend GET responses so that a
// page render issuing the same reads twice makes one round-trip.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Response is a cached backend reply.
type Response struct {
	StatusCode int
	Body       []byte
}

type entry struct {
	scope     string
	path      string
	resp      Response
	expiry    time.Time
	insertIdx int64
}

// ResponseCache maps (scope, path) to a Response for ttl. The scope is the
// caller identity the response was fetched for; entries never leak across
// scopes. At capacity the oldest insertion is evicted.
type ResponseCache struct {
	mu         sync.RWMutex
	items      map[string]entry
	ttl        time.Duration
	maxEntries int
	nextIdx    int64
	now        func() time.Time
}

// New creates a new ResponseCache with the given TTL and max entry count.
func New(ttl time.Duration, maxEntries int) *ResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &ResponseCache{
		items:      make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func makeKey(scope, path string) string {
	return scope + "\x00" + path
}

// Enabled reports whether the cache stores anything at all.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.ttl > 0
}

// Get returns a cached response if found and not expired.
func (c *ResponseCache) Get(scope, path string) (Response, bool) {
	if !c.Enabled() {
		return Response{}, false
	}
	key := makeKey(scope, path)

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return Response{}, false
	}

	if c.now().After(e.expiry) {
		c.mu.Lock()
		if e2, ok2 := c.items[key]; ok2 && c.now().After(e2.expiry) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return Response{}, false
	}

	body := append([]byte(nil), e.resp.Body...)
	return Response{StatusCode: e.resp.StatusCode, Body: body}, true
}

// Set stores a response, evicting the oldest entry if at capacity.
func (c *ResponseCache) Set(scope, path string, resp Response) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := makeKey(scope, path)
	e := entry{
		scope:     scope,
		path:      path,
		resp:      Response{StatusCode: resp.StatusCode, Body: append([]byte(nil), resp.Body...)},
		expiry:    c.now().Add(c.ttl),
		insertIdx: c.nextIdx,
	}
	c.nextIdx++

	if _, exists := c.items[key]; exists {
		c.items[key] = e
		return
	}
	if len(c.items) >= c.maxEntries {
		c.evictOldest()
	}
	c.items[key] = e
}

// InvalidatePrefix removes the scope's entries whose path starts with prefix.
// It returns the number removed.
func (c *ResponseCache) InvalidatePrefix(scope, prefix string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, e := range c.items {
		if e.scope == scope && strings.HasPrefix(e.path, prefix) {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// InvalidateScope removes every entry of scope.
func (c *ResponseCache) InvalidateScope(scope string) int {
	return c.InvalidatePrefix(scope, "")
}

// Len returns the number of stored entries, expired or not.
func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the entry with the lowest insertIdx. Must be called with mu held.
func (c *ResponseCache) evictOldest() {
	var oldestKey string
	var oldestIdx int64 = -1

	for key, e := range c.items {
		if oldestIdx == -1 || e.insertIdx < oldestIdx {
			oldestIdx = e.insertIdx
			oldestKey = key
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
