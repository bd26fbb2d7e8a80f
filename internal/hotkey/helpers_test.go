package hotkey

import (
	"testing"

	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
)

const (
	keyA key.Code = 30
	keyB key.Code = 48
	keyC key.Code = 46
)

// recorder is a Dispatcher that remembers fired event names.
type recorder struct {
	fired          []string
	refsAtDispatch []int
	replies        int
	released       int
	panicWith      any
}

func (r *recorder) Dispatch(ev *event.Event) event.Reply {
	r.fired = append(r.fired, ev.Name())
	r.refsAtDispatch = append(r.refsAtDispatch, ev.Refs())
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	r.replies++
	return event.ReplyFunc(func() { r.released++ })
}

func addCombo(t *testing.T, reg *Registry, spec, name string) *event.Event {
	t.Helper()
	ev := event.New(name)
	if err := reg.Add(Combo{Keys: key.MustParseSequence(spec), Event: ev}); err != nil {
		t.Fatalf("Add(%s) error: %v", spec, err)
	}
	ev.Release()
	return ev
}
