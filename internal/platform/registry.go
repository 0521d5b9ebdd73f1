package platform

import (
	"sync"

	"github.com/maraichr/reviewgate/pkg/models"
)

// Registry is the lookup table from platform identifier to adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Platform]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Platform]Adapter)}
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

func (r *Registry) Get(p models.Platform) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	return a, ok
}

// All returns registered adapters in models.Platforms order.
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Adapter, 0, len(r.adapters))
	for _, p := range models.Platforms {
		if a, ok := r.adapters[p]; ok {
			out = append(out, a)
		}
	}
	return out
}
