package dispatcher

import (
	"sort"
	"strings"
	"sync"
)

// Router routes event names to handlers by namespace prefix.
// "window" handles "window.close", "window.move.left" and so on.
type Router struct {
	mu sync.RWMutex

	namespaces map[string]Handler

	// Fallback handler for unmatched names
	fallback Handler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		namespaces: make(map[string]Handler),
	}
}

// RegisterNamespace registers a handler for every name in a namespace.
func (r *Router) RegisterNamespace(namespace string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.namespaces[namespace] = h
}

// SetFallback sets the handler for names no namespace claims.
func (r *Router) SetFallback(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Route returns the handler for name, or nil.
func (r *Router) Route(name string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ns := Namespace(name); ns != "" {
		if h, ok := r.namespaces[ns]; ok {
			return h
		}
	}
	return r.fallback
}

// Namespaces returns the registered namespaces in sorted order.
func (r *Router) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Namespace returns the part of name before the first dot, or "" when
// name has no namespace.
func Namespace(name string) string {
	idx := strings.Index(name, ".")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// ActionName returns the part of name after the first dot.
// For names without a namespace it returns name unchanged.
func ActionName(name string) string {
	idx := strings.Index(name, ".")
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}
