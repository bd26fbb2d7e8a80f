package key

import (
	"strings"
)

// Sequence is an ordered list of key codes forming a combo.
// Example: leftctrl leftalt t
type Sequence []Code

// Len returns the number of codes in the sequence.
func (s Sequence) Len() int {
	return len(s)
}

// IsEmpty returns true if the sequence has no codes.
func (s Sequence) IsEmpty() bool {
	return len(s) == 0
}

// String returns the sequence in spec form, e.g. "leftctrl+leftalt+t".
func (s Sequence) String() string {
	if len(s) == 0 {
		return ""
	}
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, "+")
}

// Equals returns true if two sequences are identical.
func (s Sequence) Equals(other Sequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i, c := range s {
		if other[i] != c {
			return false
		}
	}
	return true
}

// HasPrefix returns true if this sequence starts with the given prefix.
func (s Sequence) HasPrefix(prefix Sequence) bool {
	if len(prefix) > len(s) {
		return false
	}
	return s[:len(prefix)].Equals(prefix)
}

// Clone returns a copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Append returns a new sequence with code added at the end.
func (s Sequence) Append(code Code) Sequence {
	out := make(Sequence, len(s), len(s)+1)
	copy(out, s)
	return append(out, code)
}
