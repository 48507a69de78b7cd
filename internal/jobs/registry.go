package jobs

import (
	"context"
	"sort"
	"sync"
)

// Handler executes one run of a job. The config map is the job's stored
// configuration; the returned map is persisted as the run result.
type Handler interface {
	Run(ctx context.Context, config map[string]interface{}) (map[string]interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, config map[string]interface{}) (map[string]interface{}, error)

// Run implements Handler.
func (f HandlerFunc) Run(ctx context.Context, config map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, config)
}

// Registry maps job types to their handlers. Safe for concurrent use;
// registration after the worker has started takes effect on the next poll.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type, replacing any previous binding.
func (r *Registry) Register(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

// RegisterFunc binds a plain function to a job type.
func (r *Registry) RegisterFunc(jobType string, fn HandlerFunc) {
	r.Register(jobType, fn)
}

// Lookup returns the handler for a job type.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered job types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
