package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/supercheck/core/internal/xerrors"
)

// Handler executes one Task. JobDispatcher and MonitorDispatcher each
// register as a Handler under a distinct Kind, sharing one Queue and
// WorkerPool infrastructure.
type Handler interface {
	Execute(ctx context.Context, task *Task) error
	Kind() string
}

// Registry maps Task.Kind to the Handler responsible for it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under h.Kind(). Panics on a duplicate kind — a wiring
// mistake caught at startup, not a runtime condition to recover from.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.Kind()]; exists {
		panic(fmt.Sprintf("queue: handler already registered for kind %q", h.Kind()))
	}
	r.handlers[h.Kind()] = h
}

func (r *Registry) Get(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Execute dispatches task to its registered handler, or returns a user error
// if no handler claims its kind — a task enqueued under a typo'd kind should
// surface loudly rather than retry forever.
func (r *Registry) Execute(ctx context.Context, task *Task) error {
	h, ok := r.Get(task.Kind)
	if !ok {
		return xerrors.UserError(xerrors.Newf("no handler registered for task kind %q", task.Kind))
	}
	return h.Execute(ctx, task)
}
