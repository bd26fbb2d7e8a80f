package hotkey

import (
	"github.com/dshills/keychord/internal/hotkey/dag"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/logging"
)

// Combo is an ordered key sequence bound to one event.
type Combo struct {
	Keys  key.Sequence
	Event *event.Event
}

// String returns "keys=name".
func (c Combo) String() string {
	name := "<nil>"
	if c.Event != nil {
		name = c.Event.Name()
	}
	return c.Keys.String() + "=" + name
}

// Registry owns the combo trie and one reference to every bound event.
type Registry struct {
	dag          *dag.DAG
	strictRemove bool
	logger       *logging.Logger
	count        int
	closed       bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	alloc        dag.Allocator
	strictRemove bool
	logger       *logging.Logger
}

// WithAllocator sets the allocator used for tables and nodes.
func WithAllocator(alloc dag.Allocator) RegistryOption {
	return func(c *registryConfig) {
		c.alloc = alloc
	}
}

// WithMaxNodes limits the number of live tables plus nodes. Zero means
// unlimited.
func WithMaxNodes(max int) RegistryOption {
	return func(c *registryConfig) {
		c.alloc = dag.Limit(max)
	}
}

// WithStrictRemove makes Remove report ErrComboNotFound for combos that
// are not bound. By default such removals succeed silently.
func WithStrictRemove(strict bool) RegistryOption {
	return func(c *registryConfig) {
		c.strictRemove = strict
	}
}

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(c *registryConfig) {
		c.logger = l
	}
}

// NewRegistry creates a registry with an empty root node.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := registryConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.Nop()
	}
	return &Registry{
		dag:          dag.New(cfg.alloc),
		strictRemove: cfg.strictRemove,
		logger:       cfg.logger.WithComponent("registry"),
	}
}

// Add binds c.Event to c.Keys. The registry acquires its own reference to
// the event; the caller keeps its reference.
func (r *Registry) Add(c Combo) error {
	if r.closed {
		return &ComboError{Op: "add", Keys: c.Keys, Err: ErrClosed}
	}
	if err := r.dag.Insert(c.Keys, c.Event); err != nil {
		r.logger.Debug("add %s failed: %v", c, err)
		return &ComboError{Op: "add", Keys: c.Keys, Err: err}
	}
	r.count++
	r.logger.Debug("added %s", c)
	return nil
}

// Remove unbinds c.Keys and prunes the trie. When c.Event is non-nil only
// that exact event is unbound. The registry's reference is released.
func (r *Registry) Remove(c Combo) error {
	if r.closed {
		return &ComboError{Op: "remove", Keys: c.Keys, Err: ErrClosed}
	}
	if len(c.Keys) == 0 {
		return &ComboError{Op: "remove", Keys: c.Keys, Err: ErrInvalidInput}
	}

	var match func(*event.Event) bool
	if c.Event != nil {
		match = func(e *event.Event) bool { return e == c.Event }
	}

	if !r.dag.Remove(c.Keys, match) {
		r.logger.Debug("remove %s: not bound", c.Keys)
		if r.strictRemove {
			return &ComboError{Op: "remove", Keys: c.Keys, Err: ErrComboNotFound}
		}
		return nil
	}
	r.count--
	r.logger.Debug("removed %s", c.Keys)
	return nil
}

// Lookup returns the event bound to exactly seq, or nil. The reference is
// borrowed.
func (r *Registry) Lookup(seq key.Sequence) *event.Event {
	if len(seq) == 0 {
		return nil
	}
	n := r.dag.Lookup(seq)
	if n == nil {
		return nil
	}
	return n.Event()
}

// Combos returns every bound combo in ascending key order. Events are
// borrowed references.
func (r *Registry) Combos() []Combo {
	combos := make([]Combo, 0, r.count)
	r.dag.Walk(func(seq key.Sequence, ev *event.Event) bool {
		combos = append(combos, Combo{Keys: seq.Clone(), Event: ev})
		return true
	})
	return combos
}

// Len returns the number of bound combos.
func (r *Registry) Len() int {
	return r.count
}

// Stats returns the number of live tables and nodes.
func (r *Registry) Stats() dag.Stats {
	return r.dag.Stats()
}

// Root returns the entry node of the trie.
func (r *Registry) Root() *dag.Node {
	return r.dag.Root()
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed
}

// Close frees the whole trie and releases every event reference held by
// the registry. Close is idempotent.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.dag.Free()
	r.closed = true
	r.logger.Debug("closed, released %d combos", r.count)
	r.count = 0
}
