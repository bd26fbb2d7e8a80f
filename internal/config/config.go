package config

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/keychord/internal/hotkey"
	"github.com/dshills/keychord/internal/input/key"
	"github.com/dshills/keychord/internal/input/source"
	"github.com/dshills/keychord/internal/logging"
)

// Config is the complete daemon configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
	Tracker  TrackerConfig  `yaml:"tracker" toml:"tracker"`
	Dispatch DispatchConfig `yaml:"dispatch" toml:"dispatch"`
	Input    InputConfig    `yaml:"input" toml:"input"`
	Bindings []Binding      `yaml:"bindings" toml:"bindings"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// RegistryConfig configures the hotkey registry.
type RegistryConfig struct {
	// MaxNodes caps live trie objects. Zero means unlimited.
	MaxNodes     int  `yaml:"max_nodes" toml:"max_nodes"`
	StrictRemove bool `yaml:"strict_remove" toml:"strict_remove"`
}

// TrackerConfig configures the key tracker.
type TrackerConfig struct {
	// Repeat is "advance" or "ignore".
	Repeat string `yaml:"repeat" toml:"repeat"`
}

// DispatchConfig configures action execution.
type DispatchConfig struct {
	// Script is the Lua action script. Empty disables scripting.
	Script string `yaml:"script" toml:"script"`
	// Watch reloads Script when it changes on disk.
	Watch bool `yaml:"watch" toml:"watch"`
	// QueueSize is the async dispatch buffer. Zero dispatches inline.
	QueueSize int      `yaml:"queue_size" toml:"queue_size"`
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
}

// InputConfig selects the key event source.
type InputConfig struct {
	Source string `yaml:"source" toml:"source"`
	Device string `yaml:"device" toml:"device"`
	Trace  string `yaml:"trace" toml:"trace"`
	// Record, when set, writes every key event to this file as a trace.
	Record string `yaml:"record" toml:"record"`
}

// Binding is a combo bound from configuration rather than a script.
type Binding struct {
	Keys  string `yaml:"keys" toml:"keys"`
	Event string `yaml:"event" toml:"event"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Tracker: TrackerConfig{Repeat: "advance"},
		Dispatch: DispatchConfig{
			Watch:     true,
			QueueSize: 64,
			Timeout:   Duration(2 * time.Second),
		},
		Input: InputConfig{Source: string(source.KindTerminal)},
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := logging.ParseLevel(c.Logging.Level); !ok {
		errs = append(errs, invalid("logging.level", "unknown level %q", c.Logging.Level))
	}
	if c.Registry.MaxNodes < 0 {
		errs = append(errs, invalid("registry.max_nodes", "must not be negative"))
	}
	if _, err := hotkey.ParseRepeatPolicy(c.Tracker.Repeat); err != nil {
		errs = append(errs, invalid("tracker.repeat", "%v", err))
	}
	if c.Dispatch.QueueSize < 0 {
		errs = append(errs, invalid("dispatch.queue_size", "must not be negative"))
	}
	if c.Dispatch.Timeout < 0 {
		errs = append(errs, invalid("dispatch.timeout", "must not be negative"))
	}

	kind, err := source.ParseKind(c.Input.Source)
	switch {
	case err != nil:
		errs = append(errs, invalid("input.source", "%v", err))
	case kind == source.KindEvdev && c.Input.Device == "":
		errs = append(errs, invalid("input.device", "required for the evdev source"))
	case kind == source.KindTrace && c.Input.Trace == "":
		errs = append(errs, invalid("input.trace", "required for the trace source"))
	}

	for i, b := range c.Bindings {
		if _, err := key.ParseSequence(b.Keys); err != nil {
			errs = append(errs, invalid(fmt.Sprintf("bindings[%d].keys", i), "%v", err))
		}
		if b.Event == "" {
			errs = append(errs, invalid(fmt.Sprintf("bindings[%d].event", i), "must not be empty"))
		}
	}

	return errors.Join(errs...)
}

// Duration is a time.Duration written as a string such as "1500ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats d like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML parses a duration scalar.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	if err := d.UnmarshalText([]byte(node.Value)); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}
