package key

import (
	"fmt"
	"strconv"
	"strings"
)

// Code identifies a physical key. Values follow the Linux evdev numbering
// from linux/input-event-codes.h so codes read from an input device can be
// used directly.
type Code uint16

// CodeMax is the largest representable key code.
const CodeMax Code = 0xffff

// Frequently used codes.
const (
	CodeReserved   Code = 0
	CodeEsc        Code = 1
	CodeBackspace  Code = 14
	CodeTab        Code = 15
	CodeEnter      Code = 28
	CodeLeftCtrl   Code = 29
	CodeLeftShift  Code = 42
	CodeRightShift Code = 54
	CodeLeftAlt    Code = 56
	CodeSpace      Code = 57
	CodeCapsLock   Code = 58
	CodeRightCtrl  Code = 97
	CodeRightAlt   Code = 100
	CodeUp         Code = 103
	CodeLeft       Code = 105
	CodeRight      Code = 106
	CodeDown       Code = 108
	CodeDelete     Code = 111
	CodeLeftMeta   Code = 125
	CodeRightMeta  Code = 126
)

// codeNames maps codes to their canonical lowercase names.
var codeNames = map[Code]string{
	0: "reserved", 1: "esc",
	2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8", 10: "9", 11: "0",
	12: "minus", 13: "equal", 14: "backspace", 15: "tab",
	16: "q", 17: "w", 18: "e", 19: "r", 20: "t", 21: "y", 22: "u", 23: "i", 24: "o", 25: "p",
	26: "leftbrace", 27: "rightbrace", 28: "enter", 29: "leftctrl",
	30: "a", 31: "s", 32: "d", 33: "f", 34: "g", 35: "h", 36: "j", 37: "k", 38: "l",
	39: "semicolon", 40: "apostrophe", 41: "grave", 42: "leftshift", 43: "backslash",
	44: "z", 45: "x", 46: "c", 47: "v", 48: "b", 49: "n", 50: "m",
	51: "comma", 52: "dot", 53: "slash", 54: "rightshift", 55: "kpasterisk",
	56: "leftalt", 57: "space", 58: "capslock",
	59: "f1", 60: "f2", 61: "f3", 62: "f4", 63: "f5", 64: "f6", 65: "f7", 66: "f8", 67: "f9", 68: "f10",
	69: "numlock", 70: "scrolllock",
	87: "f11", 88: "f12",
	96: "kpenter", 97: "rightctrl", 99: "sysrq", 100: "rightalt",
	102: "home", 103: "up", 104: "pageup", 105: "left", 106: "right",
	107: "end", 108: "down", 109: "pagedown", 110: "insert", 111: "delete",
	113: "mute", 114: "volumedown", 115: "volumeup", 119: "pause",
	125: "leftmeta", 126: "rightmeta", 127: "compose",
}

// aliases are accepted by CodeFromName in addition to the canonical names.
var aliases = map[string]Code{
	"ctrl":        CodeLeftCtrl,
	"control":     CodeLeftCtrl,
	"shift":       CodeLeftShift,
	"alt":         CodeLeftAlt,
	"altgr":       CodeRightAlt,
	"meta":        CodeLeftMeta,
	"super":       CodeLeftMeta,
	"win":         CodeLeftMeta,
	"escape":      CodeEsc,
	"return":      CodeEnter,
	"del":         CodeDelete,
	"bs":          CodeBackspace,
	"period":      52,
	"pgup":        104,
	"pgdn":        109,
	"printscreen": 99,
}

var nameCodes = func() map[string]Code {
	m := make(map[string]Code, len(codeNames)+len(aliases))
	for c, n := range codeNames {
		m[n] = c
	}
	for n, c := range aliases {
		m[n] = c
	}
	return m
}()

// String returns the canonical name of the code, or "key(N)" for codes
// without a name.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("key(%d)", uint16(c))
}

// IsModifier reports whether the code is one of the ctrl/shift/alt/meta keys.
func (c Code) IsModifier() bool {
	switch c {
	case CodeLeftCtrl, CodeRightCtrl, CodeLeftShift, CodeRightShift,
		CodeLeftAlt, CodeRightAlt, CodeLeftMeta, CodeRightMeta:
		return true
	}
	return false
}

// CodeFromName resolves a key name (case-insensitive, optional "KEY_"
// prefix) or a numeric literal ("30", "0x1e", "key(30)") to a Code.
func CodeFromName(name string) (Code, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "key_")
	if name == "" {
		return 0, false
	}
	if c, ok := nameCodes[name]; ok {
		return c, true
	}
	if strings.HasPrefix(name, "key(") && strings.HasSuffix(name, ")") {
		name = name[4 : len(name)-1]
	}
	n, err := strconv.ParseUint(name, 0, 16)
	if err != nil {
		return 0, false
	}
	return Code(n), true
}
