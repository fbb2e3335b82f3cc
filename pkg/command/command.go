// Package command implements the per-entity command buffer (spec.md §4.2),
// the typed wire codec with baseline+delta redundancy (spec.md §4.3), and the
// runtime registry of typed serializers that spec.md §9 substitutes for
// compile-time codegen.
package command

import "github.com/fenwicklabs/ticknet/pkg/tick"

// Cap is the fixed capacity of a CommandBuffer (spec.md §3, CMD_BUFFER_CAP).
const Cap = 64

// Redundancy is the number of inputs carried per outgoing payload: the
// current tick's baseline plus up to Redundancy-1 of its predecessors
// delta-compressed against it (spec.md §4.3, INPUT_REDUNDANCY).
const Redundancy = 4

// MaxPayloadBytes bounds one entity's encoded command payload.
const MaxPayloadBytes = 1024

// Command is the generic constraint every input type satisfies: small,
// value-like, tagged with the tick it targets.
type Command interface {
	comparable
	Tick() tick.Tick
	WithTick(tick.Tick) any
}

// entry is one stored (tick, command) pair, typed by the buffer's command
// type T.
type entry[T Command] struct {
	tick tick.Tick
	cmd  T
}

// Buffer is a fixed-capacity, tick-keyed ring of inputs for one entity's one
// command type. Insert is overwrite-or-append-or-evict-oldest; lookup is a
// linear scan (spec.md §4.2 — "no ordering by slot position is assumed").
type Buffer[T Command] struct {
	entries []entry[T]
}

// NewBuffer returns an empty command buffer.
func NewBuffer[T Command]() *Buffer[T] {
	return &Buffer[T]{entries: make([]entry[T], 0, Cap)}
}

// Len reports how many distinct ticks are currently buffered.
func (b *Buffer[T]) Len() int {
	return len(b.entries)
}

// Add inserts cmd at tick t: overwrites an equal-tick entry if one exists,
// else appends if under capacity, else evicts the single oldest entry and
// appends in its place. Never fails — commands are best-effort (spec.md §4.2).
func (b *Buffer[T]) Add(t tick.Tick, cmd T) {
	for i := range b.entries {
		if b.entries[i].tick == t {
			b.entries[i].cmd = cmd
			return
		}
	}
	if len(b.entries) < Cap {
		b.entries = append(b.entries, entry[T]{tick: t, cmd: cmd})
		return
	}
	oldest := 0
	for i := 1; i < len(b.entries); i++ {
		if b.entries[oldest].tick.IsNewerThan(b.entries[i].tick) {
			oldest = i
		}
	}
	b.entries[oldest] = entry[T]{tick: t, cmd: cmd}
}

// GetAt returns the newest buffered entry whose tick is not newer than
// target, and true. If every buffered tick is newer than target, ok is false
// (spec.md §4.2, testable property 3 in spec.md §8).
func (b *Buffer[T]) GetAt(target tick.Tick) (cmd T, ok bool) {
	var best *entry[T]
	for i := range b.entries {
		e := &b.entries[i]
		if e.tick.IsNewerThan(target) {
			continue
		}
		if best == nil || e.tick.IsNewerThan(best.tick) {
			best = e
		}
	}
	if best == nil {
		return cmd, false
	}
	return best.cmd, true
}

// GetAtIndex is unchecked raw access to the i'th stored entry, in whatever
// order Add happened to leave them (spec.md §4.2, get_at_index).
func (b *Buffer[T]) GetAtIndex(i int) (t tick.Tick, cmd T) {
	e := b.entries[i]
	return e.tick, e.cmd
}
