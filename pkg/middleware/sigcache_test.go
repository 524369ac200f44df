package middleware

import (
	"fmt"
	"testing"
	"time"
)

func newTestCache(t *testing.T, opts CacheOptions) *SignatureCache {
	t.Helper()

	if opts.SweepInterval == 0 {
		opts.SweepInterval = -1 // tests drive expiry directly
	}
	cache := NewSignatureCache(opts)
	t.Cleanup(cache.Close)
	return cache
}

func TestSignatureCacheStoreRetrieve(t *testing.T) {
	cache := newTestCache(t, CacheOptions{})

	cache.Store(&SignatureEntry{
		MessageID:  "msg_1",
		Signatures: map[string]string{"call_1": "sig-1", "call_2": "sig-2"},
	})

	entry := cache.Retrieve([]string{"call_1", "call_2"}, "")
	if entry == nil {
		t.Fatal("Retrieve returned nil for stored ids")
	}
	if entry.MessageID != "msg_1" {
		t.Errorf("MessageID = %q, want msg_1", entry.MessageID)
	}
	if entry.Signatures["call_1"] != "sig-1" {
		t.Errorf("signature for call_1 = %q, want sig-1", entry.Signatures["call_1"])
	}
}

func TestSignatureCacheRetrieveMiss(t *testing.T) {
	cache := newTestCache(t, CacheOptions{})

	if entry := cache.Retrieve([]string{"unknown"}, ""); entry != nil {
		t.Errorf("Retrieve for unknown id = %+v, want nil", entry)
	}
	if entry := cache.Retrieve(nil, ""); entry != nil {
		t.Errorf("Retrieve with no ids = %+v, want nil", entry)
	}
}

func TestSignatureCachePrefersGreatestOverlap(t *testing.T) {
	cache := newTestCache(t, CacheOptions{})

	cache.Store(&SignatureEntry{
		MessageID:  "partial",
		Signatures: map[string]string{"call_1": "sig-a"},
	})
	cache.Store(&SignatureEntry{
		MessageID:  "full",
		Signatures: map[string]string{"call_1": "sig-b", "call_2": "sig-c"},
	})

	entry := cache.Retrieve([]string{"call_1", "call_2"}, "")
	if entry == nil || entry.MessageID != "full" {
		t.Errorf("Retrieve = %+v, want the entry overlapping both ids", entry)
	}
}

func TestSignatureCacheTieBreaksByRecency(t *testing.T) {
	cache := newTestCache(t, CacheOptions{})
	base := time.Now()

	cache.Store(&SignatureEntry{
		MessageID:  "older",
		Signatures: map[string]string{"call_1": "sig-old"},
		StoredAt:   base.Add(-time.Minute),
	})
	cache.Store(&SignatureEntry{
		MessageID:  "newer",
		Signatures: map[string]string{"call_1": "sig-new"},
		StoredAt:   base,
	})

	entry := cache.Retrieve([]string{"call_1"}, "")
	if entry == nil || entry.MessageID != "newer" {
		t.Errorf("Retrieve = %+v, want the newer entry", entry)
	}
}

func TestSignatureCacheConversationScoping(t *testing.T) {
	cache := newTestCache(t, CacheOptions{})

	cache.Store(&SignatureEntry{
		MessageID:      "conv-a",
		ConversationID: "a",
		Signatures:     map[string]string{"call_1": "sig-a"},
	})
	cache.Store(&SignatureEntry{
		MessageID:      "conv-b",
		ConversationID: "b",
		Signatures:     map[string]string{"call_1": "sig-b"},
	})

	entry := cache.Retrieve([]string{"call_1"}, "b")
	if entry == nil || entry.MessageID != "conv-b" {
		t.Errorf("scoped Retrieve = %+v, want conversation b's entry", entry)
	}

	// Without a conversation id any entry qualifies.
	if entry := cache.Retrieve([]string{"call_1"}, ""); entry == nil {
		t.Error("unscoped Retrieve = nil, want a hit")
	}

	// A conversation with no entries misses even though the id is indexed.
	if entry := cache.Retrieve([]string{"call_1"}, "c"); entry != nil {
		t.Errorf("Retrieve for conversation c = %+v, want nil", entry)
	}
}

func TestSignatureCacheTTLExpiry(t *testing.T) {
	cache := newTestCache(t, CacheOptions{TTL: time.Hour})

	cache.Store(&SignatureEntry{
		MessageID:  "msg_1",
		Signatures: map[string]string{"call_1": "sig-1"},
	})

	// Jump past the TTL.
	cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if entry := cache.Retrieve([]string{"call_1"}, ""); entry != nil {
		t.Errorf("Retrieve after TTL = %+v, want nil", entry)
	}

	cache.removeExpired()
	if size := cache.Size(); size != 0 {
		t.Errorf("Size after sweep = %d, want 0", size)
	}
}

func TestSignatureCacheEvictsOldestOnOverflow(t *testing.T) {
	cache := newTestCache(t, CacheOptions{MaxEntries: 20})
	base := time.Now()

	for i := 0; i < 20; i++ {
		cache.Store(&SignatureEntry{
			MessageID:  fmt.Sprintf("msg_%d", i),
			Signatures: map[string]string{fmt.Sprintf("call_%d", i): "sig"},
			StoredAt:   base.Add(time.Duration(i) * time.Second),
		})
	}

	// The 21st insert evicts the oldest 10% (2 entries).
	cache.Store(&SignatureEntry{
		MessageID:  "msg_new",
		Signatures: map[string]string{"call_new": "sig"},
		StoredAt:   base.Add(time.Minute),
	})

	if size := cache.Size(); size != 19 {
		t.Errorf("Size after overflow = %d, want 19", size)
	}
	if entry := cache.Retrieve([]string{"call_0"}, ""); entry != nil {
		t.Errorf("oldest entry survived eviction: %+v", entry)
	}
	if entry := cache.Retrieve([]string{"call_new"}, ""); entry == nil {
		t.Error("new entry missing after eviction")
	}
	if entry := cache.Retrieve([]string{"call_19"}, ""); entry == nil {
		t.Error("recent entry evicted")
	}
}

func TestSignatureCacheIgnoresEmptyEntries(t *testing.T) {
	cache := newTestCache(t, CacheOptions{})

	cache.Store(nil)
	cache.Store(&SignatureEntry{MessageID: "msg_1"})

	if size := cache.Size(); size != 0 {
		t.Errorf("Size = %d, want 0", size)
	}
}

// countingCacheMetrics records cache observations for assertions.
type countingCacheMetrics struct {
	hits, misses, entries int
}

func (m *countingCacheMetrics) RecordCacheHit(string)       { m.hits++ }
func (m *countingCacheMetrics) RecordCacheMiss(string)      { m.misses++ }
func (m *countingCacheMetrics) SetCacheEntries(_ string, n int) { m.entries = n }

func TestSignatureCacheReportsMetrics(t *testing.T) {
	metrics := &countingCacheMetrics{}
	cache := newTestCache(t, CacheOptions{Metrics: metrics})

	cache.Store(&SignatureEntry{
		MessageID:  "msg_1",
		Signatures: map[string]string{"call_1": "sig"},
	})
	if metrics.entries != 1 {
		t.Errorf("entries gauge = %d, want 1", metrics.entries)
	}

	if entry := cache.Retrieve([]string{"call_1"}, ""); entry == nil {
		t.Fatal("expected hit")
	}
	if entry := cache.Retrieve([]string{"call_other"}, ""); entry != nil {
		t.Fatal("expected miss")
	}

	if metrics.hits != 1 || metrics.misses != 1 {
		t.Errorf("hits = %d misses = %d, want 1 and 1", metrics.hits, metrics.misses)
	}
}
