package key

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Parse errors
var (
	ErrEmptySpec   = errors.New("empty key specification")
	ErrUnknownKey  = errors.New("unknown key")
	ErrInvalidSpec = errors.New("invalid key specification")
)

// ParseCode parses a single key specification into a Code.
//
// Supported formats:
//   - Names: "a", "leftctrl", "KEY_F5"
//   - Aliases: "ctrl", "alt", "super"
//   - Raw codes: "key(30)", "0x1e", "300"
func ParseCode(spec string) (Code, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, ErrEmptySpec
	}
	c, ok := CodeFromName(spec)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, spec)
	}
	return c, nil
}

// ParseSequence parses a combo specification into a Sequence.
// Keys are separated by "+", "," or whitespace. Keypad plus must be
// written as its raw code, "key(78)", and the comma key by name.
// Examples: "leftctrl+leftalt+t", "super space", "a, b", "key(0)+key(65535)"
func ParseSequence(spec string) (Sequence, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrEmptySpec
	}

	// A "+" or "," must follow a key.
	sep := true
	for _, r := range spec {
		switch {
		case r == '+' || r == ',':
			if sep {
				return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidSpec, spec)
			}
			sep = true
		case !unicode.IsSpace(r):
			sep = false
		}
	}
	if sep {
		return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidSpec, spec)
	}

	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == '+' || r == ',' || unicode.IsSpace(r)
	})

	seq := make(Sequence, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCode(f)
		if err != nil {
			return nil, err
		}
		seq = append(seq, c)
	}
	return seq, nil
}

// MustParseSequence parses a sequence string and panics on error.
// Use only for known-valid sequences in initialization code and tests.
func MustParseSequence(spec string) Sequence {
	seq, err := ParseSequence(spec)
	if err != nil {
		panic("invalid key sequence: " + spec + ": " + err.Error())
	}
	return seq
}
