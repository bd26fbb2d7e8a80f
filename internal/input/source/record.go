package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dshills/keychord/internal/input/key"
)

// Recorder wraps a Source and writes every event it returns as a trace
// line, so a session can be replayed later with the trace source.
type Recorder struct {
	src    Source
	closer io.Closer

	mu    sync.Mutex
	w     io.Writer
	count int
	err   error
}

// NewRecorder records events read from src to w.
func NewRecorder(src Source, w io.Writer) *Recorder {
	return &Recorder{src: src, w: w}
}

// OpenRecorder records events read from src to a new file at path.
func OpenRecorder(src Source, path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("source: create recording: %w", err)
	}
	r := NewRecorder(src, f)
	r.closer = f
	if _, err := fmt.Fprintf(f, "# recorded from %s\n", src.Name()); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("source: create recording: %w", err)
	}
	return r, nil
}

// Name returns the wrapped source's name.
func (r *Recorder) Name() string {
	return r.src.Name()
}

// Next returns the next event of the wrapped source after recording it.
// A write failure stops recording but not the source; see Err.
func (r *Recorder) Next() (key.Event, error) {
	ev, err := r.src.Next()
	if err != nil {
		return ev, err
	}
	r.record(ev)
	return ev, nil
}

func (r *Recorder) record(ev key.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	if _, err := io.WriteString(r.w, FormatTraceLine(ev)+"\n"); err != nil {
		r.err = err
		return
	}
	r.count++
}

// Count returns the number of events recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Source returns the wrapped source.
func (r *Recorder) Source() Source {
	return r.src
}

// Close closes the wrapped source and the recording file.
func (r *Recorder) Close() error {
	err := r.src.Close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer != nil {
		err = errors.Join(err, r.closer.Close())
		r.closer = nil
	}
	return err
}

// FormatTraceLine formats ev as a line ParseTraceLine accepts.
func FormatTraceLine(ev key.Event) string {
	return ev.State.String() + " " + ev.Code.String()
}
