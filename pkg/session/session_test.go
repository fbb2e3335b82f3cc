package session

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"
)

func TestCommandAgeEWMAConverges(t *testing.T) {
	// Property 6, spec.md §8: after N ticks of a stable observed value v, the
	// EWMA converges to v with per-step error factor (7/8)^N.
	c := NewConnection(1)
	const v = 20 // constant ticks-since-last-recv sample
	for i := 0; i < 200; i++ {
		c.UpdateCommandAgeEWMA(v)
	}
	want := float64(v << 8)
	got := float64(c.Ack.ServerCommandAgeEWMA)
	// The truncating integer division stops the EWMA once (want-ema)/8 rounds
	// to zero, so it settles from below within 7 fixed-point units (7/256 of
	// a tick) of `want`: 5113 for want = 5120.
	assert.Assert(t, got <= want && math.Abs(got-want) <= 7, "got=%v want=%v", got, want)
}

func TestCommandAgeEWMAGrowsUnderStall(t *testing.T) {
	// Scenario S3, spec.md §8: with no datagrams arriving, ticks-since-last
	// grows every tick and the EWMA should trend upward, not decay.
	c := NewConnection(1)
	prev := c.Ack.ServerCommandAgeEWMA
	for ticksSince := int32(1); ticksSince <= 50; ticksSince++ {
		c.UpdateCommandAgeEWMA(ticksSince)
		assert.Assert(t, c.Ack.ServerCommandAgeEWMA >= prev)
		prev = c.Ack.ServerCommandAgeEWMA
	}
}

func TestResetClearsAck(t *testing.T) {
	c := NewConnection(1)
	c.Outgoing = append(c.Outgoing, 1, 2, 3)
	c.Ack.ServerCommandAgeEWMA = 500
	c.Reset()
	assert.Equal(t, len(c.Outgoing), 0)
	assert.Equal(t, c.Ack.ServerCommandAgeEWMA, uint32(0))
}
