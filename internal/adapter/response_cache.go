package adapter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

// ResponseCache is a process-wide cache of node API bodies keyed by request path.
// Entries live for a fixed TTL. Concurrent loads of the same key share one call,
// so a cold key under load reaches the node once.
type ResponseCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries *xsync.Map[string, cachedResponse]
	group   singleflight.Group

	// Atomic counters for statistics
	hits   atomic.Int64
	misses atomic.Int64
	shared atomic.Int64
}

type cachedResponse struct {
	body      []byte
	expiresAt time.Time
}

// CacheStats is a snapshot of cache counters
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Shared  int64 `json:"shared"`
}

// NewResponseCache creates a cache with the given entry lifetime
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		ttl:     ttl,
		now:     time.Now,
		entries: xsync.NewMap[string, cachedResponse](),
	}
}

// SetClock replaces the time source
func (c *ResponseCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns a live entry for key
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	entry, ok := c.entries.Load(key)
	if !ok || !c.now().Before(entry.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.body, true
}

// Set stores body under key for one TTL
func (c *ResponseCache) Set(key string, body []byte) {
	c.entries.Store(key, cachedResponse{body: body, expiresAt: c.now().Add(c.ttl)})
}

// Load runs fn once per key among concurrent callers and returns its result to all of them.
// fn runs detached from any single caller's cancellation; each caller stops waiting when
// its own ctx is done.
func (c *ResponseCache) Load(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn()
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Purge drops expired entries and reports how many were removed
func (c *ResponseCache) Purge() int {
	now := c.now()
	var expired []string
	c.entries.Range(func(key string, entry cachedResponse) bool {
		if !now.Before(entry.expiresAt) {
			expired = append(expired, key)
		}
		return true
	})

	removed := 0
	for _, key := range expired {
		c.entries.Compute(key, func(old cachedResponse, loaded bool) (cachedResponse, xsync.ComputeOp) {
			if loaded && !now.Before(old.expiresAt) {
				removed++
				return old, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
	}
	return removed
}

// Clear drops every entry
func (c *ResponseCache) Clear() {
	c.entries.Range(func(key string, _ cachedResponse) bool {
		c.entries.Delete(key)
		return true
	})
}

// Stats returns the current counters
func (c *ResponseCache) Stats() CacheStats {
	return CacheStats{
		Entries: c.entries.Size(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Shared:  c.shared.Load(),
	}
}
