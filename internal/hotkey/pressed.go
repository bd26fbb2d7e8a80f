package hotkey

import (
	"math/bits"

	"github.com/dshills/keychord/internal/input/key"
)

// PressedCapacity is the number of keys a PressedSet can track.
const PressedCapacity = 16

// PressedSet is a bounded, unordered collection of held keys. Occupancy
// is tracked in a bitmask so every code, including 0, can be stored.
// Duplicate codes are allowed.
type PressedSet struct {
	codes [PressedCapacity]key.Code
	used  uint16
}

// Add stores code in the first free slot. It returns false when the set
// is full.
func (p *PressedSet) Add(code key.Code) bool {
	if p.used == 1<<PressedCapacity-1 {
		return false
	}
	i := bits.TrailingZeros16(^p.used)
	p.codes[i] = code
	p.used |= 1 << i
	return true
}

// Remove clears every slot holding code and returns how many were cleared.
func (p *PressedSet) Remove(code key.Code) int {
	n := 0
	for i := range p.codes {
		if p.used&(1<<i) != 0 && p.codes[i] == code {
			p.used &^= 1 << i
			n++
		}
	}
	return n
}

// Contains reports whether code is held.
func (p *PressedSet) Contains(code key.Code) bool {
	for i := range p.codes {
		if p.used&(1<<i) != 0 && p.codes[i] == code {
			return true
		}
	}
	return false
}

// Len returns the number of occupied slots.
func (p *PressedSet) Len() int {
	return bits.OnesCount16(p.used)
}

// Empty reports whether no slot is occupied.
func (p *PressedSet) Empty() bool {
	return p.used == 0
}

// Reset clears every slot.
func (p *PressedSet) Reset() {
	p.used = 0
}

// Codes returns the held codes in slot order.
func (p *PressedSet) Codes() []key.Code {
	out := make([]key.Code, 0, p.Len())
	for i := range p.codes {
		if p.used&(1<<i) != 0 {
			out = append(out, p.codes[i])
		}
	}
	return out
}
