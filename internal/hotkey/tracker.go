package hotkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/keychord/internal/hotkey/dag"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/logging"
)

// Dispatcher executes the action behind a recognized event. The returned
// reply may be nil; the tracker releases it without inspecting it.
type Dispatcher interface {
	Dispatch(ev *event.Event) event.Reply
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ev *event.Event) event.Reply

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ev *event.Event) event.Reply {
	return f(ev)
}

// RepeatPolicy decides what a key-down of an already held key does.
type RepeatPolicy int

const (
	// RepeatAdvance records the key again and advances the cursor, as for
	// any other key-down.
	RepeatAdvance RepeatPolicy = iota

	// RepeatIgnore consumes the key-down without changing any state.
	RepeatIgnore
)

// String returns the policy name.
func (p RepeatPolicy) String() string {
	switch p {
	case RepeatAdvance:
		return "advance"
	case RepeatIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("RepeatPolicy(%d)", int(p))
	}
}

// ParseRepeatPolicy parses "advance" or "ignore".
func ParseRepeatPolicy(s string) (RepeatPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "advance", "":
		return RepeatAdvance, nil
	case "ignore":
		return RepeatIgnore, nil
	default:
		return RepeatAdvance, fmt.Errorf("hotkey: unknown repeat policy %q", s)
	}
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithRepeatPolicy sets how key-downs of held keys are handled.
func WithRepeatPolicy(p RepeatPolicy) TrackerOption {
	return func(t *Tracker) {
		t.repeat = p
	}
}

// WithTrackerLogger sets the tracker logger.
func WithTrackerLogger(l *logging.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// Tracker is the key-tracking automaton. Its state is the trie cursor and
// the set of held keys.
type Tracker struct {
	registry   *Registry
	dispatcher Dispatcher
	cursor     *dag.Node
	pressed    PressedSet
	repeat     RepeatPolicy
	logger     *logging.Logger
	metrics    *Metrics
}

// NewTracker creates a tracker positioned at the registry root. A nil
// dispatcher drops fired events.
func NewTracker(reg *Registry, d Dispatcher, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		registry:   reg,
		dispatcher: d,
		cursor:     reg.Root(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.Nop()
	}
	t.logger = t.logger.WithComponent("tracker")
	if t.metrics == nil {
		t.metrics = NewMetrics()
	}
	return t
}

// Handle routes a raw key event and reports whether it was consumed.
// An unconsumed event is not part of a combo and should be forwarded.
func (t *Tracker) Handle(ev key.Event) bool {
	if ev.State.IsDown() {
		return t.KeyDown(ev.Code)
	}
	return t.KeyUp(ev.Code)
}

// KeyDown records code as held and advances the cursor. It returns false
// and resets when code does not continue any registered combo.
func (t *Tracker) KeyDown(code key.Code) bool {
	start := time.Now()
	consumed := t.keyDown(code)
	t.metrics.recordKey(consumed, time.Since(start))
	return consumed
}

func (t *Tracker) keyDown(code key.Code) bool {
	if t.repeat == RepeatIgnore && t.pressed.Contains(code) {
		return true
	}

	if !t.pressed.Add(code) {
		t.metrics.overflows.Add(1)
		t.logger.Debug("pressed set full at %s, resetting", code)
		t.Reset()
		return false
	}

	next := t.current().Next(code)
	if next == nil {
		t.logger.Debug("%s is not part of a combo", code)
		t.Reset()
		return false
	}
	t.cursor = next
	return true
}

// KeyUp clears code from the held set. While other keys are held the
// release is consumed. When the last key goes up the event bound at the
// cursor, if any, is dispatched once, the cursor returns to the root and
// the release is reported as not consumed.
func (t *Tracker) KeyUp(code key.Code) bool {
	start := time.Now()
	consumed := t.keyUp(code)
	t.metrics.recordKey(consumed, time.Since(start))
	return consumed
}

func (t *Tracker) keyUp(code key.Code) bool {
	t.pressed.Remove(code)
	if !t.pressed.Empty() {
		return true
	}

	cur := t.current()
	t.cursor = t.registry.Root()
	if ev := cur.Event(); ev != nil {
		t.fire(ev)
	}
	return false
}

// current returns the cursor, or the root when no partial match is
// active. A cursor pruned from the trie carries no event and matches no
// further key, so tracking through it ends as "not part of a combo".
func (t *Tracker) current() *dag.Node {
	if t.cursor == nil {
		return t.registry.Root()
	}
	return t.cursor
}

func (t *Tracker) fire(ev *event.Event) {
	t.metrics.fired.Add(1)
	t.logger.Debug("combo fired: %s", ev)

	if t.dispatcher == nil {
		return
	}

	ev.Acquire()
	defer ev.Release()

	defer func() {
		if r := recover(); r != nil {
			t.metrics.panics.Add(1)
			t.logger.Error("dispatcher panic for %s: %v", ev, r)
		}
	}()
	event.ReleaseReply(t.dispatcher.Dispatch(ev))
}

// Reset empties the held set and moves the cursor to the root.
func (t *Tracker) Reset() {
	t.pressed.Reset()
	t.cursor = t.registry.Root()
	t.metrics.resets.Add(1)
}

// Pressed returns the currently held codes.
func (t *Tracker) Pressed() []key.Code {
	return t.pressed.Codes()
}

// AtRoot reports whether no partial match is in progress.
func (t *Tracker) AtRoot() bool {
	return t.cursor == nil || t.cursor == t.registry.Root()
}

// Metrics returns the tracker metrics.
func (t *Tracker) Metrics() *Metrics {
	return t.metrics
}
