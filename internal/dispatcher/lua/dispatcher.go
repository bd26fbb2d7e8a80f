package lua

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keychord/internal/hotkey"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/logging"
)

// Lua names looked up when an event fires.
const (
	HandlersTable = "handlers"
	FallbackFunc  = "on_hotkey"
	ModuleName    = "hotkey"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for dispatch failures and script output.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithTimeout sets the per-call execution timeout.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = t
	}
}

// Dispatcher executes fired events in Lua and lets the script bind combos
// into a hotkey registry.
type Dispatcher struct {
	state    *State
	registry *hotkey.Registry
	logger   *logging.Logger
	timeout  time.Duration

	// bound holds this script's own reference to each event it bound,
	// keyed by canonical sequence.
	bound  map[string]*event.Event
	script string

	outstanding atomic.Int64
	replies     atomic.Int64
}

// New creates a dispatcher that binds into reg.
func New(reg *hotkey.Registry, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		registry: reg,
		timeout:  DefaultExecutionTimeout,
		bound:    make(map[string]*event.Event),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Nop()
	}
	d.logger = d.logger.WithComponent("lua")

	state, err := NewState(WithExecutionTimeout(d.timeout))
	if err != nil {
		return nil, err
	}
	d.state = state
	d.installAPI()
	return d, nil
}

// State returns the underlying Lua state.
func (d *Dispatcher) State() *State {
	return d.state
}

// Load runs the script at path after unbinding everything the previous
// script bound.
func (d *Dispatcher) Load(path string) error {
	if err := d.prepare(); err != nil {
		return err
	}
	d.script = path
	if err := d.state.DoFile(path); err != nil {
		return fmt.Errorf("lua: load %s: %w", path, err)
	}
	d.logger.Info("loaded %s: %d combos bound", path, len(d.bound))
	return nil
}

// LoadString runs src as a script, replacing the previous one.
func (d *Dispatcher) LoadString(src string) error {
	if err := d.prepare(); err != nil {
		return err
	}
	d.script = ""
	if err := d.state.DoString(src); err != nil {
		return fmt.Errorf("lua: load: %w", err)
	}
	return nil
}

// Reload re-runs the script last passed to Load.
func (d *Dispatcher) Reload() error {
	if d.script == "" {
		return ErrNoScript
	}
	return d.Load(d.script)
}

// Script returns the path of the loaded script, if any.
func (d *Dispatcher) Script() string {
	return d.script
}

func (d *Dispatcher) prepare() error {
	d.UnbindAll()
	if err := d.state.Reset(); err != nil {
		return err
	}
	d.installAPI()
	return nil
}

// Bind parses spec and registers it under name with ctx as the event
// context.
func (d *Dispatcher) Bind(spec, name string, ctx any) error {
	seq, err := key.ParseSequence(spec)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty event name", hotkey.ErrInvalidInput)
	}

	ev := event.New(name, event.WithContext(ctx))
	if err := d.registry.Add(hotkey.Combo{Keys: seq, Event: ev}); err != nil {
		ev.Release()
		return err
	}
	d.bound[seq.String()] = ev
	return nil
}

// Unbind removes a combo this dispatcher bound. It reports false when the
// sequence was not bound through this dispatcher.
func (d *Dispatcher) Unbind(spec string) (bool, error) {
	seq, err := key.ParseSequence(spec)
	if err != nil {
		return false, err
	}
	return d.unbind(seq)
}

func (d *Dispatcher) unbind(seq key.Sequence) (bool, error) {
	k := seq.String()
	ev, ok := d.bound[k]
	if !ok {
		return false, nil
	}
	delete(d.bound, k)
	defer ev.Release()

	if err := d.registry.Remove(hotkey.Combo{Keys: seq, Event: ev}); err != nil {
		return false, err
	}
	return true, nil
}

// UnbindAll removes every combo this dispatcher bound.
func (d *Dispatcher) UnbindAll() {
	for _, k := range d.Bound() {
		seq := key.MustParseSequence(k)
		if _, err := d.unbind(seq); err != nil {
			d.logger.Warn("unbind %s: %v", k, err)
		}
	}
}

// Bound returns the sequences bound through this dispatcher, sorted.
func (d *Dispatcher) Bound() []string {
	specs := make([]string, 0, len(d.bound))
	for k := range d.bound {
		specs = append(specs, k)
	}
	sort.Strings(specs)
	return specs
}

// Dispatch runs the Lua handler for ev. Errors are logged. A non-nil
// return value from the handler becomes the reply.
func (d *Dispatcher) Dispatch(ev *event.Event) event.Reply {
	reply, err := d.HandleReply(ev)
	if err != nil {
		d.logger.WithField("event", ev.String()).Warn("handler failed: %v", err)
	}
	return reply
}

// Handle runs the Lua handler for ev and reports its error.
func (d *Dispatcher) Handle(ev *event.Event) error {
	_, err := d.call(ev)
	return err
}

// HandleReply runs the Lua handler for ev. A non-nil return value becomes
// a reply that must be released.
func (d *Dispatcher) HandleReply(ev *event.Event) (event.Reply, error) {
	ret, err := d.call(ev)
	if err != nil || ret == lua.LNil {
		return nil, err
	}

	d.replies.Add(1)
	d.outstanding.Add(1)
	return event.ReplyFunc(func() {
		d.outstanding.Add(-1)
	}), nil
}

// Outstanding returns the number of replies not yet released.
func (d *Dispatcher) Outstanding() int64 {
	return d.outstanding.Load()
}

// Replies returns the number of replies produced so far.
func (d *Dispatcher) Replies() int64 {
	return d.replies.Load()
}

func (d *Dispatcher) call(ev *event.Event) (lua.LValue, error) {
	ret := lua.LValue(lua.LNil)
	err := d.state.Do(func(L *lua.LState) error {
		ctx := ToLua(L, ev.Context())
		id := lua.LString(ev.ID().String())

		fn, args := d.resolve(L, ev.Name(), ctx, id)
		if fn == nil {
			return fmt.Errorf("%w: %s", ErrNoHandler, ev.Name())
		}

		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	return ret, err
}

func (d *Dispatcher) resolve(L *lua.LState, name string, ctx, id lua.LValue) (*lua.LFunction, []lua.LValue) {
	if t, ok := L.GetGlobal(HandlersTable).(*lua.LTable); ok {
		if fn, ok := t.RawGetString(name).(*lua.LFunction); ok {
			return fn, []lua.LValue{ctx, id}
		}
	}
	if fn, ok := L.GetGlobal(FallbackFunc).(*lua.LFunction); ok {
		return fn, []lua.LValue{lua.LString(name), ctx, id}
	}
	return nil, nil
}

// Close unbinds the script's combos and closes the Lua state.
func (d *Dispatcher) Close() error {
	d.UnbindAll()
	return d.state.Close()
}

// installAPI registers the hotkey module and routes print to the logger.
func (d *Dispatcher) installAPI() {
	d.state.RegisterModule(ModuleName, map[string]lua.LGFunction{
		"bind":   d.luaBind,
		"unbind": d.luaUnbind,
		"bound":  d.luaBound,
		"log":    d.luaLog,
	})
	d.state.SetGlobal("print", d.state.L.NewFunction(d.luaLog))
}

// hotkey.bind(spec, name [, ctx]) -> true | nil, err
func (d *Dispatcher) luaBind(L *lua.LState) int {
	spec := L.CheckString(1)
	name := L.CheckString(2)
	ctx := ToGo(L.Get(3))

	if err := d.Bind(spec, name, ctx); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// hotkey.unbind(spec) -> bool | nil, err
func (d *Dispatcher) luaUnbind(L *lua.LState) int {
	ok, err := d.Unbind(L.CheckString(1))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LBool(ok))
	return 1
}

// hotkey.bound() -> { spec, ... }
func (d *Dispatcher) luaBound(L *lua.LState) int {
	L.Push(ToLua(L, d.Bound()))
	return 1
}

// hotkey.log(...) and print(...)
func (d *Dispatcher) luaLog(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	d.logger.Info("%s", strings.Join(parts, "\t"))
	return 0
}
