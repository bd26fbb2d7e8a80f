package config

import (
	"sort"
	"strconv"
)

// EnvPrefix prefixes every environment variable the daemon reads.
const EnvPrefix = "KEYCHORD_"

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// envSetters maps variables to the setting they override.
var envSetters = map[string]func(c *Config, v string) error{
	"KEYCHORD_LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	"KEYCHORD_SOURCE": func(c *Config, v string) error {
		c.Input.Source = v
		return nil
	},
	"KEYCHORD_DEVICE": func(c *Config, v string) error {
		c.Input.Device = v
		return nil
	},
	"KEYCHORD_TRACE": func(c *Config, v string) error {
		c.Input.Trace = v
		return nil
	},
	"KEYCHORD_RECORD": func(c *Config, v string) error {
		c.Input.Record = v
		return nil
	},
	"KEYCHORD_SCRIPT": func(c *Config, v string) error {
		c.Dispatch.Script = v
		return nil
	},
	"KEYCHORD_REPEAT": func(c *Config, v string) error {
		c.Tracker.Repeat = v
		return nil
	},
	"KEYCHORD_STRICT_REMOVE": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("KEYCHORD_STRICT_REMOVE", "%q is not a boolean", v)
		}
		c.Registry.StrictRemove = b
		return nil
	},
	"KEYCHORD_MAX_NODES": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return invalid("KEYCHORD_MAX_NODES", "%q is not an integer", v)
		}
		c.Registry.MaxNodes = n
		return nil
	},
}

// EnvVars returns the recognized environment variable names, sorted.
func EnvVars() []string {
	names := make([]string, 0, len(envSetters))
	for name := range envSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides settings from the environment. Empty values are
// treated as set.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, name := range EnvVars() {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		if err := envSetters[name](c, v); err != nil {
			return err
		}
	}
	return nil
}
