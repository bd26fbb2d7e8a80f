// Package app wires the hotkey daemon together: configuration, the combo
// registry and tracker, action dispatchers, the Lua script with its hot
// reload watcher, and the key event source. It owns the lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dshills/keychord/internal/config"
	"github.com/dshills/keychord/internal/config/watcher"
	"github.com/dshills/keychord/internal/dispatcher"
	"github.com/dshills/keychord/internal/dispatcher/lua"
	"github.com/dshills/keychord/internal/hotkey"
	"github.com/dshills/keychord/internal/hotkey/event"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/input/source"
	"github.com/dshills/keychord/internal/logging"
)

// Built-in actions handled by the daemon itself.
const (
	// BuiltinNamespace prefixes the built-in action names.
	BuiltinNamespace = "keychord"

	ActionReload = BuiltinNamespace + ".reload"
	ActionReset  = BuiltinNamespace + ".reset"
	ActionQuit   = BuiltinNamespace + ".quit"
)

// Application is the central coordinator for all daemon components.
type Application struct {
	// mu serializes every access to the registry and tracker: key
	// handling, script reloads and Lua handlers that bind combos.
	mu sync.Mutex

	config *config.Config
	logger *logging.Logger

	registry *hotkey.Registry
	tracker  *hotkey.Tracker
	metrics  *hotkey.Metrics

	actions *dispatcher.Dispatcher
	queue   *dispatcher.Queue
	script  *lua.Dispatcher
	watcher *watcher.Watcher

	source   source.Source
	terminal *source.Terminal
	recorder *source.Recorder

	running      atomic.Bool
	shutdown     atomic.Bool
	stopOnce     sync.Once
	stopCh       chan struct{}
	shutdownOnce sync.Once
}

// Options configures the application.
type Options struct {
	// Config is the validated configuration. Nil uses config.Default.
	Config *config.Config

	// Logger overrides the logger built from Config.
	Logger *logging.Logger

	// LogOutput is where the built logger writes. Defaults to os.Stderr.
	LogOutput io.Writer

	// Source overrides the source selected by Config.Input.
	Source source.Source

	// NoSource skips opening an input source. Run is unavailable; used to
	// inspect bindings.
	NoSource bool
}

// New creates an Application and initializes its components in
// dependency order. On error every component created so far is released.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	app := &Application{
		config:  cfg,
		logger:  opts.Logger,
		metrics: hotkey.NewMetrics(),
		stopCh:  make(chan struct{}),
	}

	if err := app.bootstrap(opts); err != nil {
		app.Shutdown()
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap(opts Options) error {
	cfg := app.config

	// 1. Logger
	if app.logger == nil {
		level, ok := logging.ParseLevel(cfg.Logging.Level)
		if !ok {
			return &InitError{Component: "logger", Err: fmt.Errorf("unknown level %q", cfg.Logging.Level)}
		}
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		app.logger = logging.New(logging.Config{Level: level, Output: out, Prefix: "keychord"})
	}

	// 2. Registry
	regOpts := []hotkey.RegistryOption{
		hotkey.WithStrictRemove(cfg.Registry.StrictRemove),
		hotkey.WithRegistryLogger(app.logger),
	}
	if cfg.Registry.MaxNodes > 0 {
		regOpts = append(regOpts, hotkey.WithMaxNodes(cfg.Registry.MaxNodes))
	}
	app.registry = hotkey.NewRegistry(regOpts...)

	// 3. Action dispatcher and built-in actions
	dcfg := dispatcher.DefaultConfig().WithQueueSize(cfg.Dispatch.QueueSize)
	app.actions = dispatcher.New(dcfg, dispatcher.WithLogger(app.logger))
	app.actions.RegisterNamespace(BuiltinNamespace, dispatcher.HandlerFunc(app.builtin))
	app.actions.SetFallback(dispatcher.HandlerFunc(func(*event.Event) error { return nil }))

	// 4. Combos from configuration
	for i, b := range cfg.Bindings {
		if err := app.bindConfig(b); err != nil {
			return &InitError{Component: fmt.Sprintf("binding %d", i), Err: err}
		}
	}

	// 5. Lua action script
	if cfg.Dispatch.Script != "" {
		if err := app.loadScript(); err != nil {
			return &InitError{Component: "script", Err: err}
		}
	}

	// 6. Dispatch pipeline
	var target hotkey.Dispatcher = app.actions
	if cfg.Dispatch.QueueSize > 0 {
		app.queue = dispatcher.NewQueue(app.actions, cfg.Dispatch.QueueSize, dispatcher.WithQueueLogger(app.logger))
		target = app.queue
	}
	pipeline := dispatcher.Chain(dispatcher.Log(app.logger), target, dispatcher.Func(app.showFired))

	// 7. Tracker
	policy, err := hotkey.ParseRepeatPolicy(cfg.Tracker.Repeat)
	if err != nil {
		return &InitError{Component: "tracker", Err: err}
	}
	app.tracker = hotkey.NewTracker(app.registry, pipeline,
		hotkey.WithRepeatPolicy(policy),
		hotkey.WithTrackerLogger(app.logger),
		hotkey.WithMetrics(app.metrics),
	)

	// 8. Input source
	if opts.NoSource {
		return nil
	}
	app.source = opts.Source
	if app.source == nil {
		src, err := openSource(cfg.Input)
		if err != nil {
			return &InitError{Component: "source", Err: err}
		}
		app.source = src
	}
	if t, ok := app.source.(*source.Terminal); ok {
		app.terminal = t
	}
	if cfg.Input.Record != "" {
		rec, err := source.OpenRecorder(app.source, cfg.Input.Record)
		if err != nil {
			return &InitError{Component: "source", Err: err}
		}
		app.source = rec
		app.recorder = rec
	}

	// 9. Script watcher
	if cfg.Dispatch.Script != "" && cfg.Dispatch.Watch {
		w, err := watcher.New(app.onScriptChange, watcher.WithLogger(app.logger.WithComponent("watcher")))
		if err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
		app.watcher = w
		if err := w.Watch(cfg.Dispatch.Script); err != nil {
			return &InitError{Component: "watcher", Err: err}
		}
	}

	return nil
}

// openSource opens the source named by cfg.Source.
func openSource(cfg config.InputConfig) (source.Source, error) {
	kind, err := source.ParseKind(cfg.Source)
	if err != nil {
		return nil, err
	}
	switch kind {
	case source.KindEvdev:
		return source.OpenEvdev(cfg.Device)
	case source.KindTrace:
		return source.OpenTrace(cfg.Trace)
	default:
		return source.OpenTerminal()
	}
}

// bindConfig registers a combo from the configuration file. The registry
// holds the only reference.
func (app *Application) bindConfig(b config.Binding) error {
	seq, err := key.ParseSequence(b.Keys)
	if err != nil {
		return err
	}
	ev := event.New(b.Event, event.WithContext(b.Keys))
	defer ev.Release()
	return app.registry.Add(hotkey.Combo{Keys: seq, Event: ev})
}

// loadScript creates the Lua dispatcher and runs the configured script.
// Lua handlers run under app.mu because they may bind or unbind combos.
func (app *Application) loadScript() error {
	d, err := lua.New(app.registry,
		lua.WithLogger(app.logger),
		lua.WithTimeout(app.config.Dispatch.Timeout.Std()),
	)
	if err != nil {
		return err
	}
	app.script = d
	if err := d.Load(app.config.Dispatch.Script); err != nil {
		return err
	}

	if app.config.Dispatch.QueueSize > 0 {
		app.actions.SetFallback(lockedScript{app: app, script: d})
	} else {
		// Inline dispatch already runs under app.mu inside HandleKey.
		app.actions.SetFallback(d)
	}
	return nil
}

// lockedScript runs Lua handlers from the queue worker under app.mu.
type lockedScript struct {
	app    *Application
	script *lua.Dispatcher
}

func (s lockedScript) Handle(ev *event.Event) error {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	return s.script.Handle(ev)
}

func (s lockedScript) HandleReply(ev *event.Event) (event.Reply, error) {
	s.app.mu.Lock()
	defer s.app.mu.Unlock()
	return s.script.HandleReply(ev)
}

// Run feeds key events from the source to the tracker until the source
// is exhausted, ctx is cancelled or Stop is called. Stopping is not an
// error.
func (app *Application) Run(ctx context.Context) error {
	if app.shutdown.Load() {
		return ErrShutdown
	}
	if app.source == nil {
		return &InitError{Component: "source", Err: errors.New("no input source")}
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.queue != nil {
		app.queue.Start()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-app.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	app.logger.Info("reading keys from %s, %d combos bound", app.source.Name(), app.registry.Len())
	err := source.Pump(ctx, app.source, func(ev key.Event) {
		app.HandleKey(ev)
	})
	if errors.Is(err, context.Canceled) && app.stopRequested() {
		return nil
	}
	return err
}

// HandleKey feeds one key event to the tracker and reports whether it was
// consumed. Events that are not part of a combo are forwarded, which for
// this daemon means logged.
func (app *Application) HandleKey(ev key.Event) bool {
	app.mu.Lock()
	consumed := app.tracker.Handle(ev)
	app.mu.Unlock()

	if !consumed {
		app.logger.Debug("forwarded %s", ev)
	}
	return consumed
}

// Reload re-runs the action script. Combos the previous script bound are
// unbound first and the tracker returns to the root.
func (app *Application) Reload() error {
	if app.script == nil {
		return ErrNoScript
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	err := app.script.Reload()
	app.tracker.Reset()
	if err != nil {
		app.logger.Error("reload %s failed: %v", app.script.Script(), err)
		return err
	}
	app.logger.Info("reloaded %s: %d combos bound", app.script.Script(), app.registry.Len())
	return nil
}

func (app *Application) onScriptChange(e watcher.Event) {
	if e.Op == watcher.OpRemove {
		app.logger.Warn("script %s removed, keeping current bindings", e.Path)
		return
	}
	_ = app.Reload()
}

// builtin handles actions in the keychord namespace. It may run on the
// tracker's goroutine while app.mu is held, so anything that locks runs
// asynchronously.
func (app *Application) builtin(ev *event.Event) error {
	switch dispatcher.ActionName(ev.Name()) {
	case "reload":
		go func() { _ = app.Reload() }()
	case "reset":
		go func() {
			app.mu.Lock()
			app.tracker.Reset()
			app.mu.Unlock()
		}()
	case "quit":
		app.Stop()
	default:
		return fmt.Errorf("%w: %s", dispatcher.ErrNoHandler, ev.Name())
	}
	return nil
}

// showFired reports fired events on the terminal status line.
func (app *Application) showFired(ev *event.Event) {
	if app.terminal != nil {
		app.terminal.SetStatus("fired " + ev.Name())
	}
}

// Stop asks Run to return. It does not release resources; call Shutdown.
func (app *Application) Stop() {
	app.stopOnce.Do(func() { close(app.stopCh) })
}

func (app *Application) stopRequested() bool {
	select {
	case <-app.stopCh:
		return true
	default:
		return false
	}
}

// Shutdown stops Run and releases every component in reverse
// initialization order. Queued actions finish first. It is safe to call
// more than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		app.shutdown.Store(true)
		app.Stop()

		// 1. Stop watching so no reload races the teardown
		if app.watcher != nil {
			if err := app.watcher.Close(); err != nil {
				app.logger.Warn("closing watcher: %v", err)
			}
		}

		// 2. Close the source
		if app.source != nil {
			if err := app.source.Close(); err != nil {
				app.logger.Debug("closing source: %v", err)
			}
		}

		// 3. Drain queued actions
		if app.queue != nil {
			app.queue.Stop()
		}

		// 4. Close the script and the registry
		app.mu.Lock()
		if app.script != nil {
			if err := app.script.Close(); err != nil {
				app.logger.Warn("closing script: %v", err)
			}
		}
		if app.registry != nil {
			app.registry.Close()
		}
		app.mu.Unlock()

		if app.recorder != nil {
			if err := app.recorder.Err(); err != nil {
				app.logger.Warn("recording %s incomplete: %v", app.config.Input.Record, err)
			} else {
				app.logger.Info("recorded %d key events to %s", app.recorder.Count(), app.config.Input.Record)
			}
		}

		if app.tracker != nil {
			s := app.metrics.Snapshot()
			app.logger.Info("shutdown: %d key events, %d consumed, %d fired", s.KeyEvents, s.Consumed, s.Fired)
		}
	})
}

// IsRunning returns true while Run is reading keys.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Combos returns the bound combos in key code order.
func (app *Application) Combos() []hotkey.Combo {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.registry.Combos()
}

// Metrics returns a snapshot of tracker activity.
func (app *Application) Metrics() hotkey.MetricsSnapshot {
	return app.metrics.Snapshot()
}

// Actions returns the action dispatcher. Handlers registered on it take
// precedence over the script.
func (app *Application) Actions() *dispatcher.Dispatcher {
	return app.actions
}

// Script returns the Lua dispatcher, or nil when no script is configured.
func (app *Application) Script() *lua.Dispatcher {
	return app.script
}
