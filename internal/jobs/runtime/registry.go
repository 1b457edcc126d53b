package runtime

import (
	"fmt"
	"sort"
	"sync"
)

// Handler executes one task type. Returning an error wrapping apperr.ErrDeferred,
// ErrRejected, ErrDuplicate or ErrPermanent selects the queue transition; any other error
// is retried.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds handlers in order and stops at the first empty or duplicate task type.
func (r *Registry) Register(hs ...Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hs {
		if h == nil {
			return fmt.Errorf("nil handler")
		}
		t := h.Type()
		if t == "" {
			return fmt.Errorf("handler %T has no task type", h)
		}
		if _, exists := r.handlers[t]; exists {
			return fmt.Errorf("task_type %s registered twice", t)
		}
		r.handlers[t] = h
	}
	return nil
}

func (r *Registry) Get(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}

// Missing lists the task types in want that have no handler.
func (r *Registry) Missing(want ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, t := range want {
		if _, ok := r.handlers[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
