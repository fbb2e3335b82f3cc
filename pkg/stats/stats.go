// Package stats implements the per-physics-world telemetry collector
// (spec.md §4.7, Stats Collector / C7): bounded ring counters fed by the
// simulation loop, emitted as framed binary/text packets for the debug
// bridge (pkg/debugbridge) whenever the collection tick advances.
package stats

import (
	"sync"

	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// maxBoundedEntries is the cap on snapshot_ticks, command_ticks and
// time_samples per frame (spec.md §3: "Vec<u32> (≤255)"); entries beyond
// this are dropped silently, matching the "bounded arrays truncate
// silently at their caps" invariant.
const maxBoundedEntries = 255

// TimeSample is one per-tick timing observation (spec.md §4.7's 9-float
// time-sample layout).
type TimeSample struct {
	Fraction      float32
	Timescale     float32
	InterpOffset  float32
	InterpScale   float32
	CommandAge    float32
	RTT           float32
	Jitter        float32
	AgeMin        float32
	AgeMax        float32
}

// Unconnected is the stat_index sentinel meaning "not attached to a
// debugger" (spec.md §3: "stat_index: i32 (−1 ⇒ not connected)").
const Unconnected int32 = -1

// Packet is one framed item in a Collector's outgoing queue: either a
// binary per-tick stats frame or a text name-table frame (spec.md §4.8:
// "sending isString entries as text frames, others as binary frames").
type Packet struct {
	Data     []byte
	IsString bool
}

// Collector accumulates one physics world's telemetry across a tick and
// emits it as framed packets when the tick advances (spec.md §4.7).
type Collector struct {
	mu sync.Mutex

	statIndex         int32
	hasMetricsMonitor bool

	collectionTick tick.Tick

	snapshotStats    []uint32
	snapshotTicks    []uint32
	commandTicks     []uint32
	commandStats     uint32
	predictionErrors []float32
	timeSamples      []TimeSample
	discardedPackets uint8

	ghostNames     []string
	errorNames     []string
	worldName      string
	nameTableDirty bool

	queue []Packet
}

// NewCollector returns a Collector not yet attached to a debugger.
func NewCollector(worldName string) *Collector {
	return &Collector{
		statIndex:      Unconnected,
		worldName:      worldName,
		nameTableDirty: true,
	}
}

// SetStatIndex implements the debug bridge's connect/disconnect
// bookkeeping (spec.md §4.8): binding a world assigns a non-negative index
// and re-arms the name table for retransmission; disconnecting resets it to
// Unconnected and clears the pending queue and bounded buffers (spec.md
// §5's "Cancellation/timeouts": "clears its stats index").
func (c *Collector) SetStatIndex(index int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statIndex = index
	if index == Unconnected {
		c.queue = nil
		c.resetLocked()
		return
	}
	c.nameTableDirty = true
}

// SetMetricsMonitor marks whether a non-debugger metrics listener (e.g. the
// Prometheus collector) is attached, which alone is enough to keep
// recording per spec.md §4.7's guard clause.
func (c *Collector) SetMetricsMonitor(attached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasMetricsMonitor = attached
}

// SetNames records the ghost-type and prediction-error field names, marking
// the name table dirty so it is retransmitted (spec.md §4.7: "Emitted
// whenever the name table changes or the collector is newly bound.").
func (c *Collector) SetNames(ghosts, errors []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ghostNames = append([]string(nil), ghosts...)
	c.errorNames = append([]string(nil), errors...)
	c.nameTableDirty = true
}

// connectedLocked implements spec.md §4.7's recording guard:
// "collection_tick.is_valid() && (connected || has_metrics_monitor)".
func (c *Collector) connectedLocked() bool {
	return c.collectionTick.IsValid() && (c.statIndex != Unconnected || c.hasMetricsMonitor)
}

// AddSnapshotStats implements add_snapshot_stats(tick, per_ghost_triples[]).
func (c *Collector) AddSnapshotStats(t tick.Tick, triples []uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(t)
	if !c.connectedLocked() {
		return
	}
	c.snapshotStats = append(c.snapshotStats, triples...)
	c.appendBoundedLocked(&c.snapshotTicks, uint32(t))
}

// AddCommandStats implements add_command_stats(tick, bytes).
func (c *Collector) AddCommandStats(t tick.Tick, bytes uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(t)
	if !c.connectedLocked() {
		return
	}
	c.commandStats += bytes
	c.appendBoundedLocked(&c.commandTicks, uint32(t))
}

// AddPredictionErrorStats implements add_prediction_error_stats(values[]):
// "stored as per-field max for the tick" (spec.md §4.7).
func (c *Collector) AddPredictionErrorStats(values []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return
	}
	if len(c.predictionErrors) < len(values) {
		grown := make([]float32, len(values))
		copy(grown, c.predictionErrors)
		c.predictionErrors = grown
	}
	for i, v := range values {
		if v > c.predictionErrors[i] {
			c.predictionErrors[i] = v
		}
	}
}

// AddDiscardedPackets implements add_discarded_packets(n), saturating at 255
// (spec.md §3: "discarded_packets: u8 (saturates at 255)").
func (c *Collector) AddDiscardedPackets(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return
	}
	sum := int(c.discardedPackets) + n
	if sum > 255 {
		sum = 255
	}
	c.discardedPackets = uint8(sum)
}

// AddTimeSample records one per-tick timing observation, bounded to
// maxBoundedEntries.
func (c *Collector) AddTimeSample(s TimeSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connectedLocked() {
		return
	}
	if len(c.timeSamples) >= maxBoundedEntries {
		return
	}
	c.timeSamples = append(c.timeSamples, s)
}

// Advance reports the simulation's current tick; call once per fixed step
// even if no stats were added this frame, so tick-rollover emission still
// happens (spec.md §4.7's rollover is driven by "the simulation reports a
// new server tick", not by a stat write).
func (c *Collector) Advance(t tick.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(t)
}

// advanceLocked implements the rollover: on a genuine tick change, emit the
// previous frame as a binary packet and reset the per-tick counters.
func (c *Collector) advanceLocked(t tick.Tick) {
	if c.collectionTick.IsValid() && c.collectionTick == t {
		return
	}
	if c.collectionTick.IsValid() && c.connectedLocked() {
		c.emitBinaryLocked()
	}
	c.collectionTick = t
	c.resetCountersLocked()
	if c.nameTableDirty && c.connectedLocked() {
		c.emitNameTableLocked()
	}
}

func (c *Collector) appendBoundedLocked(dst *[]uint32, v uint32) {
	if len(*dst) >= maxBoundedEntries {
		return
	}
	*dst = append(*dst, v)
}

func (c *Collector) resetCountersLocked() {
	c.snapshotStats = c.snapshotStats[:0]
	c.snapshotTicks = c.snapshotTicks[:0]
	c.commandTicks = c.commandTicks[:0]
	c.commandStats = 0
	c.predictionErrors = c.predictionErrors[:0]
	c.timeSamples = c.timeSamples[:0]
	c.discardedPackets = 0
}

// resetLocked fully clears the collector on disconnect (spec.md §4.8:
// "zero the command/min-max buffers").
func (c *Collector) resetLocked() {
	c.resetCountersLocked()
	c.nameTableDirty = true
}

func (c *Collector) emitBinaryLocked() {
	c.queue = append(c.queue, Packet{Data: encodeBinaryPacket(c), IsString: false})
}

func (c *Collector) emitNameTableLocked() {
	c.queue = append(c.queue, Packet{Data: encodeNameTable(c), IsString: true})
	c.nameTableDirty = false
}

// Drain returns and clears the pending outgoing packet queue (spec.md
// §4.8: "drain each collector's packet_queue").
func (c *Collector) Drain() []Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.queue
	c.queue = nil
	return out
}

// StatIndex returns the collector's current stat_index.
func (c *Collector) StatIndex() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statIndex
}
