// Package event provides the shared-ownership Event object bound to hotkey
// combos and the Reply handle returned by action executors.
//
// An Event starts with one reference owned by its creator. Every holder
// that keeps the Event beyond a call acquires its own reference and
// releases it when done; the release hook runs once, when the last
// reference is dropped.
package event

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Object is the capability set shared by reference-counted values.
type Object interface {
	// Acquire adds a reference.
	Acquire()

	// Release drops a reference and reports whether it was the last one.
	Release() bool

	// Hash returns a stable hash of the object's identity-relevant content.
	Hash() uint64

	// Compare orders objects; it returns -1, 0 or 1.
	Compare(other Object) int
}

// Event is a named action request with an opaque context payload.
type Event struct {
	id      uuid.UUID
	name    string
	context any

	refs      atomic.Int32
	onRelease func(*Event)
}

// Option configures an Event.
type Option func(*Event)

// WithContext attaches an opaque context payload.
func WithContext(ctx any) Option {
	return func(e *Event) {
		e.context = ctx
	}
}

// WithReleaseHook sets a function called once the last reference is dropped.
func WithReleaseHook(fn func(*Event)) Option {
	return func(e *Event) {
		e.onRelease = fn
	}
}

// New creates an Event holding one reference, owned by the caller.
func New(name string, opts ...Option) *Event {
	e := &Event{
		id:   uuid.New(),
		name: name,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.refs.Store(1)
	return e
}

// ID returns the unique identifier of this Event instance.
func (e *Event) ID() uuid.UUID {
	return e.id
}

// Name returns the event name.
func (e *Event) Name() string {
	return e.name
}

// Context returns the opaque context payload, or nil.
func (e *Event) Context() any {
	return e.context
}

// Refs returns the current reference count.
func (e *Event) Refs() int {
	return int(e.refs.Load())
}

// Released reports whether every reference has been dropped.
func (e *Event) Released() bool {
	return e.refs.Load() <= 0
}

// Acquire adds a reference. Acquiring a released Event panics.
func (e *Event) Acquire() {
	if e.refs.Add(1) <= 1 {
		panic("event: acquire of released event " + e.name)
	}
}

// Release drops a reference and reports whether it was the last one.
// Releasing more references than were acquired panics.
func (e *Event) Release() bool {
	n := e.refs.Add(-1)
	if n < 0 {
		panic("event: negative reference count for " + e.name)
	}
	if n > 0 {
		return false
	}
	if e.onRelease != nil {
		e.onRelease(e)
	}
	return true
}

// Hash returns an FNV-1a hash of the event name.
func (e *Event) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(e.name))
	return h.Sum64()
}

// Compare orders events by name, then by ID. Objects of other types sort
// after events.
func (e *Event) Compare(other Object) int {
	o, ok := other.(*Event)
	if !ok {
		return -1
	}
	if c := strings.Compare(e.name, o.name); c != 0 {
		return c
	}
	return strings.Compare(e.id.String(), o.id.String())
}

// String returns the event name and a short ID.
func (e *Event) String() string {
	return fmt.Sprintf("%s#%s", e.name, e.id.String()[:8])
}
