// Package key provides key code and key event types for the input system.
//
// This package defines the fundamental types for representing keyboard input:
//
//   - Code: Identifies a physical key using Linux evdev numbering
//   - State: Whether a raw event is a press, a release or an autorepeat
//   - Event: A single raw key event with its timestamp
//   - Sequence: An ordered list of codes forming a combo (chord)
//
// # Key Specifications
//
// Key names follow linux/input-event-codes.h without the KEY_ prefix and
// are case-insensitive:
//
//   - Names: "a", "leftctrl", "KEY_LEFTALT", "f5", "space"
//   - Aliases: "ctrl", "alt", "shift", "super", "escape"
//   - Raw codes: "key(30)", "0x1e", "300"
//
// Digit strings 0-9 name the digit keys; use "key(N)" for small raw codes.
//
// # Sequences
//
// Combos are written with "+" or whitespace between keys, in the order
// the keys must be pressed: "leftctrl+leftalt+t", "super space".
package key
