package jobs

import (
	"sort"
	"sync"

	"github.com/sevigo/commit-digest/internal/core"
)

// Registry maps job types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.JobType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.JobType]Handler)}
}

// Register adds h under h.Type(). It reports whether an existing handler was
// replaced.
func (r *Registry) Register(h Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.handlers[h.Type()]
	r.handlers[h.Type()] = h
	return replaced
}

func (r *Registry) Get(t core.JobType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []core.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.JobType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
