// Package main is the entry point for the keychord hotkey daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/keychord/internal/app"
	"github.com/dshills/keychord/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// bindList collects repeated -bind spec=name flags.
type bindList []config.Binding

func (b *bindList) String() string {
	parts := make([]string, len(*b))
	for i, v := range *b {
		parts[i] = v.Keys + "=" + v.Event
	}
	return strings.Join(parts, ",")
}

func (b *bindList) Set(s string) error {
	keys, name, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(keys) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("want spec=name, got %q", s)
	}
	*b = append(*b, config.Binding{Keys: strings.TrimSpace(keys), Event: strings.TrimSpace(name)})
	return nil
}

// flags holds the command line. Settings are applied only when the flag
// was given so they override the file and environment.
type flags struct {
	configPath   string
	source       string
	device       string
	trace        string
	record       string
	script       string
	repeat       string
	logLevel     string
	logFile      string
	strictRemove bool
	binds        bindList
	list         bool
	actions      bool
	showVersion  bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, *flag.FlagSet, error) {
	var f flags
	fs := flag.NewFlagSet("keychord", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "Path to configuration file (.yaml, .yml or .toml)")
	fs.StringVar(&f.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&f.source, "source", "", "Key source: evdev, trace or terminal")
	fs.StringVar(&f.device, "device", "", "evdev device path, e.g. /dev/input/event3")
	fs.StringVar(&f.trace, "trace", "", "Trace file to replay")
	fs.StringVar(&f.record, "record", "", "Record key events to this trace file")
	fs.StringVar(&f.script, "script", "", "Lua action script")
	fs.StringVar(&f.repeat, "repeat", "", "Key repeat policy: advance or ignore")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFile, "log-file", "", "Write logs to this file instead of stderr")
	fs.BoolVar(&f.strictRemove, "strict-remove", false, "Report removal of unbound combos as an error")
	fs.Var(&f.binds, "bind", "Bind a combo, spec=name (repeatable)")
	fs.BoolVar(&f.list, "list", false, "Print the bound combos and exit")
	fs.BoolVar(&f.actions, "actions", false, "Print the actions the daemon handles itself and exit")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	fs.BoolVar(&f.showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "keychord - chorded hotkey daemon\n\n")
		fmt.Fprintf(stderr, "Usage: keychord [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		for _, name := range config.EnvVars() {
			fmt.Fprintf(stderr, "  %s\n", name)
		}
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  keychord -script keys.lua                     Try bindings in the terminal\n")
		fmt.Fprintf(stderr, "  keychord -source evdev -device /dev/input/event3 -config keychord.yaml\n")
		fmt.Fprintf(stderr, "  keychord -source trace -trace session.trace -bind leftctrl+t=terminal\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if fs.NArg() > 0 {
		return nil, nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return &f, fs, nil
}

// apply overrides cfg with the flags that were set.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "source":
			cfg.Input.Source = f.source
		case "device":
			cfg.Input.Device = f.device
		case "trace":
			cfg.Input.Trace = f.trace
		case "record":
			cfg.Input.Record = f.record
		case "script":
			cfg.Dispatch.Script = f.script
		case "repeat":
			cfg.Tracker.Repeat = f.repeat
		case "log-level":
			cfg.Logging.Level = f.logLevel
		case "strict-remove":
			cfg.Registry.StrictRemove = f.strictRemove
		}
	})
	cfg.Bindings = append(cfg.Bindings, f.binds...)
}

func run(args []string, stdout, stderr io.Writer) int {
	f, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if f.showVersion {
		fmt.Fprintf(stdout, "keychord %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := app.Options{Config: cfg, LogOutput: stderr, NoSource: f.list || f.actions}
	if f.logFile != "" {
		out, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer out.Close()
		opts.LogOutput = out
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	if f.list {
		for _, c := range application.Combos() {
			fmt.Fprintf(stdout, "%s\t%s\n", c.Keys, c.Event.Name())
		}
		return 0
	}
	if f.actions {
		for _, name := range application.Actions().Handled() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		application.Stop()
	}()

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
