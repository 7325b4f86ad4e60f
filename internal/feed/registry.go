package feed

import (
	"sync"

	"github.com/foresight-labs/lmsr-marketmaker/pkg/types"
)

// Registry holds the most recently observed PriceUpdate per token, for
// read-only inspection (the debug HTTP endpoint) independent of the
// engine's consumption of the same stream.
type Registry struct {
	mu     sync.RWMutex
	latest map[string]types.PriceUpdate
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{latest: make(map[string]types.PriceUpdate)}
}

// Record stores u as the latest known update for its token.
func (r *Registry) Record(u types.PriceUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[u.Token] = u
}

// Get returns the latest update recorded for token, if any.
func (r *Registry) Get(token string) (types.PriceUpdate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.latest[token]
	return u, ok
}
