package providers

import "sync"

// KeyRotator selects API keys round-robin per provider. The rotation index
// is process-global rather than per-request, so parallel requests share
// progress and load spreads across keys under burst.
type KeyRotator struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewKeyRotator returns an empty rotator.
func NewKeyRotator() *KeyRotator {
	return &KeyRotator{counters: make(map[string]uint64)}
}

// Next returns the next key for provider from keys, advancing the
// provider's rotation index. An empty key list yields "".
func (r *KeyRotator) Next(provider string, keys []string) string {
	if len(keys) == 0 {
		return ""
	}

	r.mu.Lock()
	i := r.counters[provider]
	r.counters[provider] = i + 1
	r.mu.Unlock()

	return keys[i%uint64(len(keys))]
}

// Reset clears the rotation index for provider. Used by tests and when a
// provider's key list is reloaded.
func (r *KeyRotator) Reset(provider string) {
	r.mu.Lock()
	delete(r.counters, provider)
	r.mu.Unlock()
}
