// Package tick implements the wrap-safe 32-bit tick arithmetic that every
// other package in ticknet uses to order inputs, snapshots and stats frames.
package tick

import "encoding/binary"

// Invalid is the distinguished sentinel value. No valid Tick ever equals it.
const Invalid Tick = 0

// Tick is a monotonic, wrap-safe simulation step identifier. Comparisons are
// defined over the 31-bit half range of uint32, so two ticks more than 2^31
// apart are not meaningfully orderable (see IsNewerThan).
type Tick uint32

// New returns the Tick for the given raw value; New(0) is Invalid.
func New(v uint32) Tick {
	return Tick(v)
}

// IsValid reports whether t is usable in arithmetic. The zero value is the
// one invalid tick.
func (t Tick) IsValid() bool {
	return t != Invalid
}

// IsNewerThan reports whether t comes after other on the wrap-safe 31-bit
// half range. Invalid operands are never newer than anything.
func (t Tick) IsNewerThan(other Tick) bool {
	if !t.IsValid() || !other.IsValid() {
		return false
	}
	diff := int32(uint32(t) - uint32(other))
	return diff > 0
}

// TicksSince returns the signed distance from older to t: positive when t is
// newer, negative when t is older. Returns 0 if either operand is invalid.
func (t Tick) TicksSince(older Tick) int32 {
	if !t.IsValid() || !older.IsValid() {
		return 0
	}
	return int32(uint32(t) - uint32(older))
}

// Increment returns t+1, or Invalid if that would land on the sentinel.
func (t Tick) Increment() Tick {
	if !t.IsValid() {
		return Invalid
	}
	next := Tick(uint32(t) + 1)
	if next == Invalid {
		return Invalid
	}
	return next
}

// Decrement returns t-1, or Invalid if t is already invalid or decrementing
// would land on the sentinel.
func (t Tick) Decrement() Tick {
	if !t.IsValid() {
		return Invalid
	}
	prev := Tick(uint32(t) - 1)
	if prev == Invalid {
		return Invalid
	}
	return prev
}

// SerializedSize is the wire size of a Tick's binary form.
const SerializedSize = 4

// MarshalBinary writes t as little-endian uint32, matching the framing used
// throughout the command and stats wire formats (spec.md §4.3, §4.7).
func (t Tick) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SerializedSize)
	binary.LittleEndian.PutUint32(buf, uint32(t))
	return buf, nil
}

// AppendBinary appends t's wire form to buf and returns the extended slice.
func (t Tick) AppendBinary(buf []byte) []byte {
	return binary.LittleEndian.AppendUint32(buf, uint32(t))
}

// UnmarshalTick reads a Tick from the front of buf, returning the tick and the
// number of bytes consumed.
func UnmarshalTick(buf []byte) (Tick, int, error) {
	if len(buf) < SerializedSize {
		return Invalid, 0, errShortBuffer
	}
	return Tick(binary.LittleEndian.Uint32(buf)), SerializedSize, nil
}
