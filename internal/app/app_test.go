package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/hotkey"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/input/source"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// chanSource delivers events from a channel and blocks until closed.
type chanSource struct {
	events chan key.Event
	done   chan struct{}
	once   sync.Once
}

func newChanSource() *chanSource {
	return &chanSource{events: make(chan key.Event, 16), done: make(chan struct{})}
}

func (c *chanSource) Name() string { return "chan" }

func (c *chanSource) Next() (key.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.done:
		return key.Event{}, io.EOF
	}
}

func (c *chanSource) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func newApp(t *testing.T, cfg *config.Config, src source.Source) (*Application, *syncBuffer) {
	t.Helper()
	var logs syncBuffer
	app, err := New(Options{Config: cfg, Source: src, LogOutput: &logs})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(app.Shutdown)
	return app, &logs
}

func writeScript(t *testing.T, dir, src string) string {
	t.Helper()
	path := filepath.Join(dir, "keys.lua")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const chordTrace = `
# ctrl+t, then an unrelated key
down leftctrl
down t
up t
up leftctrl
down x
up x
`

func TestRunTraceWithConfigBindings(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "debug"
	cfg.Dispatch.QueueSize = 0
	cfg.Bindings = []config.Binding{{Keys: "leftctrl+t", Event: "terminal"}}

	app, logs := newApp(t, cfg, source.NewTrace("chord", strings.NewReader(chordTrace)))

	var fired []string
	app.Actions().RegisterFunc("terminal", func(ev *event.Event) error {
		fired = append(fired, ev.Name())
		if ev.Context() != "leftctrl+t" {
			t.Errorf("Context() = %v, want the binding keys", ev.Context())
		}
		return nil
	})

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fired) != 1 || fired[0] != "terminal" {
		t.Errorf("fired = %v, want [terminal]", fired)
	}
	s := app.Metrics()
	if s.KeyEvents != 6 || s.Fired != 1 {
		t.Errorf("metrics = %+v, want 6 key events and 1 fire", s)
	}
	if !strings.Contains(logs.String(), "forwarded down x") {
		t.Errorf("logs missing forwarded event:\n%s", logs)
	}
	if !strings.Contains(logs.String(), "fired terminal") {
		t.Errorf("logs missing fire:\n%s", logs)
	}
}

func TestRunRecordsSession(t *testing.T) {
	out := filepath.Join(t.TempDir(), "session.trace")
	cfg := config.Default()
	cfg.Input.Record = out

	app, _ := newApp(t, cfg, source.NewTrace("chord", strings.NewReader(chordTrace)))
	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	app.Shutdown()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "# recorded from trace:chord\ndown leftctrl\ndown t\nup t\nup leftctrl\ndown x\nup x\n"
	if string(data) != want {
		t.Errorf("recording = %q, want %q", data, want)
	}
}

func TestRunQueuedScript(t *testing.T) {
	script := writeScript(t, t.TempDir(), `
		assert(hotkey.bind("leftmeta+q", "window.close", { force = true }))
		fired = {}
		function on_hotkey(name, ctx, id)
			fired[#fired + 1] = name
		end
	`)

	cfg := config.Default()
	cfg.Dispatch.Script = script
	cfg.Dispatch.Watch = false
	cfg.Dispatch.QueueSize = 4

	trace := "down leftmeta\ndown q\nup q\nup leftmeta\n"
	app, _ := newApp(t, cfg, source.NewTrace("meta", strings.NewReader(trace)))

	combos := app.Combos()
	if len(combos) != 1 || combos[0].Event.Name() != "window.close" {
		t.Fatalf("Combos() = %v", combos)
	}

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	state := app.Script().State()
	waitFor(t, func() bool {
		got, ok := state.Global("fired").([]any)
		return ok && len(got) == 1
	})

	var first string
	err := state.Do(func(L *glua.LState) error {
		tbl, ok := L.GetGlobal("fired").(*glua.LTable)
		if !ok {
			return errors.New("fired is not a table")
		}
		first = tbl.RawGetInt(1).String()
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if first != "window.close" {
		t.Errorf("fired[1] = %q, want window.close", first)
	}
}

func TestScriptReplyReleased(t *testing.T) {
	for _, size := range []int{0, 4} {
		t.Run(fmt.Sprintf("queue=%d", size), func(t *testing.T) {
			script := writeScript(t, t.TempDir(), `
				hotkey.bind("leftmeta+q", "window.close")
				function on_hotkey(name) return { closed = name } end
			`)

			cfg := config.Default()
			cfg.Dispatch.Script = script
			cfg.Dispatch.Watch = false
			cfg.Dispatch.QueueSize = size

			trace := "down leftmeta\ndown q\nup q\nup leftmeta\n"
			app, _ := newApp(t, cfg, source.NewTrace("meta", strings.NewReader(trace)))
			if err := app.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			d := app.Script()
			waitFor(t, func() bool { return d.Replies() == 1 })
			waitFor(t, func() bool { return d.Outstanding() == 0 })
		})
	}
}

func TestReloadOnScriptChange(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `hotkey.bind("a", "one")`)

	cfg := config.Default()
	cfg.Dispatch.Script = script
	cfg.Dispatch.QueueSize = 0
	cfg.Bindings = []config.Binding{{Keys: "z", Event: "from.config"}}

	app, logs := newApp(t, cfg, newChanSource())

	names := func() []string {
		var out []string
		for _, c := range app.Combos() {
			out = append(out, c.Event.Name())
		}
		return out
	}
	if got := names(); len(got) != 2 {
		t.Fatalf("initial combos = %v", got)
	}

	writeScript(t, dir, `hotkey.bind("b", "two")`)

	waitFor(t, func() bool {
		got := names()
		return len(got) == 2 && got[0] == "from.config" && got[1] == "two"
	})
	if !strings.Contains(logs.String(), "reloaded") {
		t.Errorf("logs missing reload:\n%s", logs)
	}
}

func TestReloadWithoutScript(t *testing.T) {
	app, _ := newApp(t, config.Default(), newChanSource())
	if err := app.Reload(); !errors.Is(err, ErrNoScript) {
		t.Errorf("Reload() = %v, want ErrNoScript", err)
	}
}

func TestBuiltinQuit(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.QueueSize = 0
	cfg.Bindings = []config.Binding{{Keys: "leftctrl+q", Event: ActionQuit}}

	src := newChanSource()
	app, _ := newApp(t, cfg, src)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	waitFor(t, app.IsRunning)
	for _, ev := range []key.Event{
		{Code: key.CodeLeftCtrl, State: key.StatePress},
		{Code: 16, State: key.StatePress},
		{Code: 16, State: key.StateRelease},
		{Code: key.CodeLeftCtrl, State: key.StateRelease},
	} {
		src.events <- ev
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after quit = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after quit action")
	}
}

func TestRunCancelled(t *testing.T) {
	app, _ := newApp(t, config.Default(), newChanSource())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	waitFor(t, app.IsRunning)
	if err := app.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	app.Shutdown()
	if err := app.Run(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Run() after Shutdown = %v, want ErrShutdown", err)
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *config.Config)
		component string
		wantErr   error
	}{
		{
			name: "duplicate binding",
			mutate: func(c *config.Config) {
				c.Bindings = []config.Binding{{Keys: "a+b", Event: "x"}, {Keys: "a b", Event: "y"}}
			},
			component: "binding 1",
			wantErr:   hotkey.ErrDuplicateCombo,
		},
		{
			name:      "missing script",
			mutate:    func(c *config.Config) { c.Dispatch.Script = "/nonexistent/keys.lua" },
			component: "script",
		},
		{
			name:      "bad repeat policy",
			mutate:    func(c *config.Config) { c.Tracker.Repeat = "twice" },
			component: "tracker",
		},
		{
			name: "node budget",
			mutate: func(c *config.Config) {
				c.Registry.MaxNodes = 2
				c.Bindings = []config.Binding{{Keys: "a b c d", Event: "deep"}}
			},
			component: "binding 0",
			wantErr:   hotkey.ErrAllocationFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)

			_, err := New(Options{Config: cfg, NoSource: true, LogOutput: io.Discard})
			var ie *InitError
			if !errors.As(err, &ie) {
				t.Fatalf("New() error = %v, want InitError", err)
			}
			if ie.Component != tt.component {
				t.Errorf("Component = %q, want %q", ie.Component, tt.component)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNoSource(t *testing.T) {
	cfg := config.Default()
	cfg.Bindings = []config.Binding{{Keys: "leftctrl+leftalt+t", Event: "terminal"}}

	app, err := New(Options{Config: cfg, NoSource: true, LogOutput: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	defer app.Shutdown()

	if got := app.Combos(); len(got) != 1 {
		t.Errorf("Combos() = %v", got)
	}
	if err := app.Run(context.Background()); err == nil {
		t.Error("Run() without a source should fail")
	}
}
