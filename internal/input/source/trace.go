package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dshills/keychord/internal/input/key"
)

// ParseError reports a malformed trace line.
type ParseError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %q: %v", e.Source, e.Line, e.Text, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Trace replays key events from text, one per line:
//
//	# ctrl+alt+t
//	down leftctrl
//	down leftalt
//	down t
//	up t
//	up 56
//	up leftctrl
//
// Verbs are down (or press), up (or release) and repeat. Keys use the
// names accepted by key.ParseCode. Blank lines and lines starting with #
// are ignored.
type Trace struct {
	name    string
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
	closed  atomic.Bool
}

// OpenTrace opens a trace file.
func OpenTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open trace: %w", err)
	}
	t := NewTrace(path, f)
	t.closer = f
	return t, nil
}

// NewTrace replays events from r.
func NewTrace(name string, r io.Reader) *Trace {
	return &Trace{name: name, scanner: bufio.NewScanner(r)}
}

// Name returns "trace:" followed by the name given to NewTrace.
func (t *Trace) Name() string {
	return "trace:" + t.name
}

// Next returns the next event in the trace.
func (t *Trace) Next() (key.Event, error) {
	for !t.closed.Load() && t.scanner.Scan() {
		t.line++
		text := strings.TrimSpace(t.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ev, err := ParseTraceLine(text)
		if err != nil {
			return key.Event{}, &ParseError{Source: t.name, Line: t.line, Text: text, Err: err}
		}
		return ev, nil
	}
	if err := t.scanner.Err(); err != nil && !t.closed.Load() {
		return key.Event{}, err
	}
	return key.Event{}, io.EOF
}

// Close stops the replay.
func (t *Trace) Close() error {
	t.closed.Store(true)
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// ParseTraceLine parses a single "verb key" line.
func ParseTraceLine(line string) (key.Event, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return key.Event{}, fmt.Errorf("want \"<down|up|repeat> <key>\", got %d fields", len(fields))
	}

	var state key.State
	switch strings.ToLower(fields[0]) {
	case "down", "press":
		state = key.StatePress
	case "up", "release":
		state = key.StateRelease
	case "repeat":
		state = key.StateRepeat
	default:
		return key.Event{}, fmt.Errorf("unknown verb %q", fields[0])
	}

	code, err := key.ParseCode(fields[1])
	if err != nil {
		return key.Event{}, err
	}
	return key.Event{Code: code, State: state, Timestamp: time.Now()}, nil
}
