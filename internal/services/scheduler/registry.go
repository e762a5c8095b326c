package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler executes one kind of scheduled work. Implementations must be safe
// to run repeatedly and should honor ctx cancellation.
type Handler interface {
	Name() string
	Run(ctx context.Context) error
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context) error
}

func (h funcHandler) Name() string { return h.name }

func (h funcHandler) Run(ctx context.Context) error { return h.fn(ctx) }

// HandlerFunc adapts a plain function to the Handler interface.
func HandlerFunc(name string, fn func(ctx context.Context) error) Handler {
	return funcHandler{name: name, fn: fn}
}

// Registry holds the handlers a runner can execute, keyed by name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering a second handler under the same name
// is an error.
func (r *Registry) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}
	name := strings.TrimSpace(handler.Name())
	if name == "" {
		return fmt.Errorf("handler name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q is already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	return handler, ok
}

// Names returns the registered handler names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
