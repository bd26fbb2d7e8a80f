package key

import (
	"fmt"
	"time"
)

// State describes what happened to a key.
type State uint8

const (
	// StateRelease is a key-up.
	StateRelease State = iota
	// StatePress is a key-down.
	StatePress
	// StateRepeat is an autorepeat key-down generated while a key is held.
	StateRepeat
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRelease:
		return "up"
	case StatePress:
		return "down"
	case StateRepeat:
		return "repeat"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// IsDown reports whether the state is a press or an autorepeat.
func (s State) IsDown() bool {
	return s == StatePress || s == StateRepeat
}

// Event is a single raw key event as delivered by an input source.
type Event struct {
	// Code is the key that changed state.
	Code Code

	// State is press, release or repeat.
	State State

	// Timestamp is when the event occurred. Zero if the source does not
	// provide one.
	Timestamp time.Time
}

// NewPress creates a press event for code.
func NewPress(code Code) Event {
	return Event{Code: code, State: StatePress, Timestamp: time.Now()}
}

// NewRelease creates a release event for code.
func NewRelease(code Code) Event {
	return Event{Code: code, State: StateRelease, Timestamp: time.Now()}
}

// String returns a compact representation such as "down leftctrl".
func (e Event) String() string {
	return e.State.String() + " " + e.Code.String()
}
