// Package config loads the keychord daemon configuration.
//
// Configuration comes from three layers, later ones winning:
//
//  1. Defaults (Default).
//  2. A YAML (.yaml, .yml) or TOML (.toml) file.
//  3. KEYCHORD_* environment variables (ApplyEnv).
//
// Command-line flags are applied by the caller on top of the result.
//
// A YAML file looks like:
//
//	logging:
//	  level: debug
//	registry:
//	  max_nodes: 4096
//	  strict_remove: false
//	tracker:
//	  repeat: advance
//	dispatch:
//	  script: ~/.config/keychord/keys.lua
//	  watch: true
//	  timeout: 2s
//	input:
//	  source: evdev
//	  device: /dev/input/event3
//	bindings:
//	  - keys: leftctrl+leftalt+t
//	    event: terminal
package config
