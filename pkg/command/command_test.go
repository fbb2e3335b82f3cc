package command

import (
	"testing"

	"github.com/fenwicklabs/ticknet/pkg/tick"
	"gotest.tools/v3/assert"
)

// moveCmd is a tiny Command implementation used only by these tests.
type moveCmd struct {
	t   tick.Tick
	dx  int16
	dy  int16
	btn uint8
}

func (m moveCmd) Tick() tick.Tick { return m.t }
func (m moveCmd) WithTick(t tick.Tick) any {
	m.t = t
	return m
}

func TestBufferAddOverwritesEqualTick(t *testing.T) {
	b := NewBuffer[moveCmd]()
	b.Add(100, moveCmd{t: 100, dx: 1})
	b.Add(100, moveCmd{t: 100, dx: 2})
	assert.Equal(t, b.Len(), 1)
	got, ok := b.GetAt(100)
	assert.Assert(t, ok)
	assert.Equal(t, got.dx, int16(2))
}

func TestBufferCapEvictsOldest(t *testing.T) {
	b := NewBuffer[moveCmd]()
	for i := 0; i < Cap+10; i++ {
		b.Add(tick.Tick(i+1), moveCmd{t: tick.Tick(i + 1), dx: int16(i)})
	}
	assert.Equal(t, b.Len(), Cap)
	// Property 2, spec.md §8: len never exceeds capacity, and the oldest 10
	// ticks (1..10) were evicted in favour of newer ones.
	_, ok := b.GetAt(5)
	assert.Assert(t, !ok, "expected ticks 1..10 evicted")

	newest, ok := b.GetAt(tick.Tick(Cap + 10))
	assert.Assert(t, ok)
	assert.Equal(t, newest.t, tick.Tick(Cap+10))
}

func TestBufferNoDuplicateTicks(t *testing.T) {
	b := NewBuffer[moveCmd]()
	seen := make(map[tick.Tick]bool)
	for i := 0; i < 200; i++ {
		tk := tick.Tick(i%30 + 1)
		b.Add(tk, moveCmd{t: tk})
	}
	for i := 0; i < b.Len(); i++ {
		tk, _ := b.GetAtIndex(i)
		assert.Assert(t, !seen[tk], "duplicate tick %d in buffer", tk)
		seen[tk] = true
	}
}

func TestGetAtReturnsNewestNotNewer(t *testing.T) {
	b := NewBuffer[moveCmd]()
	b.Add(10, moveCmd{t: 10})
	b.Add(20, moveCmd{t: 20})
	b.Add(30, moveCmd{t: 30})

	got, ok := b.GetAt(25)
	assert.Assert(t, ok)
	assert.Equal(t, got.t, tick.Tick(20))

	got, ok = b.GetAt(5)
	assert.Assert(t, !ok)
	_ = got

	got, ok = b.GetAt(30)
	assert.Assert(t, ok)
	assert.Equal(t, got.t, tick.Tick(30))
}

func TestGetAtEmptyBuffer(t *testing.T) {
	b := NewBuffer[moveCmd]()
	_, ok := b.GetAt(1)
	assert.Assert(t, !ok)
}
