package cache

import "sync"

// InvalidationRegistry collects every key the cache has handed out so a
// configuration change can clear them all. Backends cannot enumerate their
// keys, so this list is the only record of what to delete.
type InvalidationRegistry struct {
	mu   sync.Mutex
	keys []string
	seen map[string]struct{}
}

func NewInvalidationRegistry() *InvalidationRegistry {
	return &InvalidationRegistry{seen: make(map[string]struct{})}
}

// Record adds key to the registry. Recording a key twice is a no-op.
func (r *InvalidationRegistry) Record(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.keys = append(r.keys, key)
}

// DrainAndClear returns every recorded key in record order and empties the
// registry.
func (r *InvalidationRegistry) DrainAndClear() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := r.keys
	r.keys = nil
	r.seen = make(map[string]struct{})
	return keys
}

// Len returns the number of recorded keys.
func (r *InvalidationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
