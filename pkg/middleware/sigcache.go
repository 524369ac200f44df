package middleware

import (
	"sort"
	"sync"
	"time"
)

// Signature cache defaults.
const (
	DefaultSignatureTTL  = time.Hour
	DefaultSweepInterval = 5 * time.Minute
	DefaultMaxSignatures = 4096
	evictFractionPercent = 10
)

// SignatureEntry is one cached set of thought signatures, produced by a
// single assistant response.
type SignatureEntry struct {
	// MessageID is the response the signatures came from.
	MessageID string

	// ConversationID scopes the entry; empty when the client sent none.
	ConversationID string

	// Signatures maps tool call ids to their opaque signatures.
	Signatures map[string]string

	// StoredAt orders entries for TTL expiry and eviction.
	StoredAt time.Time
}

// CacheOptions tunes the signature cache. Zero values select defaults.
type CacheOptions struct {
	// TTL is how long an entry stays retrievable
	TTL time.Duration

	// SweepInterval is how often the background sweep removes expired
	// entries; 0 selects the default, negative disables the sweep
	SweepInterval time.Duration

	// MaxEntries caps the cache; overflow evicts the oldest ~10%
	MaxEntries int

	// Metrics receives hit, miss and size observations; nil disables
	// reporting. The telemetry collector satisfies it.
	Metrics CacheMetrics
}

// CacheMetrics is the observation surface the cache reports to.
type CacheMetrics interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	SetCacheEntries(cache string, n int)
}

// metricsCacheName labels signature cache observations.
const metricsCacheName = "signatures"

// SignatureCache stores thought signatures between requests so a later turn
// can replay them to the upstream. Entries are indexed by tool call id and
// by conversation id; retrieval picks the stored entry whose id set overlaps
// the query most.
//
// All operations go through a single lock. A background sweep drops expired
// entries; Close stops it.
type SignatureCache struct {
	opts CacheOptions

	mu      sync.Mutex
	seq     uint64
	entries map[uint64]*SignatureEntry
	byID    map[string]map[uint64]struct{}
	byConv  map[string]map[uint64]struct{}

	stopCh chan struct{}

	// now is swappable for tests
	now func() time.Time
}

// NewSignatureCache creates a cache and starts its sweep goroutine.
func NewSignatureCache(opts CacheOptions) *SignatureCache {
	if opts.TTL == 0 {
		opts.TTL = DefaultSignatureTTL
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.MaxEntries == 0 {
		opts.MaxEntries = DefaultMaxSignatures
	}

	c := &SignatureCache{
		opts:    opts,
		entries: make(map[uint64]*SignatureEntry),
		byID:    make(map[string]map[uint64]struct{}),
		byConv:  make(map[string]map[uint64]struct{}),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	if opts.SweepInterval > 0 {
		go c.sweep()
	}
	return c
}

// Store inserts entry. Entries with no signatures are dropped.
func (c *SignatureCache) Store(entry *SignatureEntry) {
	if entry == nil || len(entry.Signatures) == 0 {
		return
	}
	if entry.StoredAt.IsZero() {
		entry.StoredAt = c.now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.opts.MaxEntries {
		c.evictOldestLocked()
	}

	c.seq++
	key := c.seq
	c.entries[key] = entry

	for id := range entry.Signatures {
		if c.byID[id] == nil {
			c.byID[id] = make(map[uint64]struct{})
		}
		c.byID[id][key] = struct{}{}
	}
	if entry.ConversationID != "" {
		if c.byConv[entry.ConversationID] == nil {
			c.byConv[entry.ConversationID] = make(map[uint64]struct{})
		}
		c.byConv[entry.ConversationID][key] = struct{}{}
	}

	if c.opts.Metrics != nil {
		c.opts.Metrics.SetCacheEntries(metricsCacheName, len(c.entries))
	}
}

// Retrieve returns the live entry whose id set overlaps toolCallIDs most,
// or nil. When conversationID is non-empty only entries stored under that
// conversation qualify. Ties go to the most recently stored entry.
func (c *SignatureCache) Retrieve(toolCallIDs []string, conversationID string) *SignatureEntry {
	if len(toolCallIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.opts.TTL)

	overlap := make(map[uint64]int)
	for _, id := range toolCallIDs {
		for key := range c.byID[id] {
			overlap[key]++
		}
	}

	var best *SignatureEntry
	bestOverlap := 0
	for key, n := range overlap {
		entry := c.entries[key]
		if entry.StoredAt.Before(cutoff) {
			continue
		}
		if conversationID != "" {
			if _, ok := c.byConv[conversationID][key]; !ok {
				continue
			}
		}
		if n > bestOverlap || (n == bestOverlap && best != nil && entry.StoredAt.After(best.StoredAt)) {
			best = entry
			bestOverlap = n
		}
	}

	if c.opts.Metrics != nil {
		if best != nil {
			c.opts.Metrics.RecordCacheHit(metricsCacheName)
		} else {
			c.opts.Metrics.RecordCacheMiss(metricsCacheName)
		}
	}
	return best
}

// Size returns the number of stored entries, expired ones included until the
// next sweep.
func (c *SignatureCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the sweep goroutine. The cache remains usable but no longer
// self-cleans.
func (c *SignatureCache) Close() {
	close(c.stopCh)
}

// evictOldestLocked removes the oldest ~10% of entries by timestamp. Called
// with the lock held when the cache is full.
func (c *SignatureCache) evictOldestLocked() {
	type aged struct {
		key      uint64
		storedAt time.Time
	}

	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key, entry.StoredAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].storedAt.Before(all[j].storedAt) })

	n := len(all) * evictFractionPercent / 100
	if n < 1 {
		n = 1
	}
	for _, a := range all[:n] {
		c.removeLocked(a.key)
	}
}

// removeLocked deletes one entry and its index references.
func (c *SignatureCache) removeLocked(key uint64) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)

	for id := range entry.Signatures {
		if refs := c.byID[id]; refs != nil {
			delete(refs, key)
			if len(refs) == 0 {
				delete(c.byID, id)
			}
		}
	}
	if entry.ConversationID != "" {
		if refs := c.byConv[entry.ConversationID]; refs != nil {
			delete(refs, key)
			if len(refs) == 0 {
				delete(c.byConv, entry.ConversationID)
			}
		}
	}
}

// sweep periodically removes expired entries until Close.
func (c *SignatureCache) sweep() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

// removeExpired drops every entry older than the TTL.
func (c *SignatureCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.opts.TTL)
	for key, entry := range c.entries {
		if entry.StoredAt.Before(cutoff) {
			c.removeLocked(key)
		}
	}

	if c.opts.Metrics != nil {
		c.opts.Metrics.SetCacheEntries(metricsCacheName, len(c.entries))
	}
}
