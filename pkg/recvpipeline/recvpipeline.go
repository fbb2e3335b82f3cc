// Package recvpipeline implements the server-side per-connection command
// decode loop (spec.md §4.5, Command Receive Pipeline / C5): header parsing,
// per-entity payload dispatch via the routing resolver, the stale-input
// rewrite policy, and the snapshot-ack EWMA bookkeeping.
package recvpipeline

import (
	"errors"

	"github.com/fenwicklabs/ticknet/pkg/command"
	"github.com/fenwicklabs/ticknet/pkg/datagram"
	"github.com/fenwicklabs/ticknet/pkg/entity"
	"github.com/fenwicklabs/ticknet/pkg/routing"
	"github.com/fenwicklabs/ticknet/pkg/session"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// errShortDatagram is returned when conn.Incoming is too short to even hold
// the fixed command header.
var errShortDatagram = errors.New("recvpipeline: datagram shorter than the fixed header")

// minEntityChunk is the smallest possible remaining-bytes count that could
// still hold another entity header (spec.md §4.5 step 2: "Loop while >=10
// bytes remain").
const minEntityChunk = 10

// Options tunes behaviour the spec.md §9 "Open Questions" leaves as policy.
type Options struct {
	// RewriteStaleTicks implements spec.md §4.3/§4.5/§7's default policy: a
	// decoded entry whose tick is older than the server's current tick has
	// its tick field rewritten to the current tick before insertion, so
	// get_at(current) still finds the player's latest intent. Set false to
	// keep the original tick instead (the documented alternative).
	RewriteStaleTicks bool
}

// DefaultOptions matches the behaviour spec.md §4.3 describes.
func DefaultOptions() Options {
	return Options{RewriteStaleTicks: true}
}

// InterpolationDelayTarget is the narrow interface
// CommandDataInterpolationDelay components on a target entity need to
// satisfy for step 3 of spec.md §4.5.
type InterpolationDelayTarget interface {
	SetInterpolationDelay(ticks int32)
}

// Pipeline decodes one connection's incoming command datagram per tick.
type Pipeline struct {
	Registry *command.Registry
	Routing  *routing.Table
	Options  Options
}

// NewPipeline returns a receive pipeline with the default stale-tick policy.
func NewPipeline(reg *command.Registry, routingTable *routing.Table) *Pipeline {
	return &Pipeline{Registry: reg, Routing: routingTable, Options: DefaultOptions()}
}

// Dispatch is how the caller (which owns the ECS/world state) plugs a
// decoded entry into its own per-entity command buffers. target is the
// entity routing resolved the payload to (always valid — invalid targets are
// dropped before Dispatch is called). The header's interpolation delay is
// not passed to Dispatch; ProcessDatagram delivers it through the
// InterpolationDelayTarget that BufferLookup returns.
type Dispatch func(target entity.ID, buf command.AnyBuffer)

// BufferLookup returns the AnyBuffer (and, optionally, the
// InterpolationDelayTarget) for a resolved entity, or ok == false if the
// entity has no buffer for this command type.
type BufferLookup func(target entity.ID) (buf command.AnyBuffer, interp InterpolationDelayTarget, ok bool)

// Result summarizes one ProcessDatagram call for telemetry (spec.md §4.7
// wants command byte counts, and discarded-packet counts are a stats
// input too).
type Result struct {
	EntitiesDispatched int
	Discarded          int
	BytesProcessed     int
}

// ProcessDatagram implements spec.md §4.5: parse the header, loop decoding
// entity payloads, resolve each target via Routing, rewrite stale ticks per
// Options, and insert into the buffer BufferLookup returns. conn.Incoming is
// always cleared before returning, even on error (spec.md §4.5: "The
// incoming byte buffer is cleared every frame, even if empty.").
func (p *Pipeline) ProcessDatagram(conn *session.Connection, serverTick tick.Tick, lookup BufferLookup) (Result, error) {
	defer func() { conn.Incoming = conn.Incoming[:0] }()

	buf := conn.Incoming
	var result Result
	result.BytesProcessed = len(buf)

	if len(buf) < datagram.HeaderSize {
		return result, errShortDatagram
	}
	header, n, err := datagram.Unmarshal(buf)
	if err != nil {
		return result, err
	}
	buf = buf[n:]

	for len(buf) >= minEntityChunk {
		decoded, consumed, ok, derr := command.DecodeNextEntity(p.Registry, buf)
		if derr != nil {
			return result, derr
		}
		buf = buf[consumed:]
		if !ok {
			// spec.md §7: unknown command hash, skip silently.
			continue
		}

		target := p.Routing.Resolve(routing.GhostID(decoded.GhostID), decoded.SpawnTick, conn)
		if !target.IsValid() {
			// spec.md §4.6/§7: missing or mis-owned ghost, drop silently.
			result.Discarded++
			continue
		}

		anyBuf, interp, found := lookup(target)
		if !found {
			result.Discarded++
			continue
		}

		p.insert(anyBuf, decoded, serverTick)
		if interp != nil {
			interp.SetInterpolationDelay(header.InterpolationDelayTicks)
		}
		result.EntitiesDispatched++
	}

	conn.Ack.LastReceivedTick = header.LastReceivedSnapshotTick
	return result, nil
}

// insert implements spec.md §4.3's decode contract: insert in production
// (oldest-first) order so older entries cannot overwrite a newer one that
// lands on the same (possibly rewritten) tick. Only the most recent entry
// is eligible for the stale-tick rewrite (spec.md §7).
func (p *Pipeline) insert(buf command.AnyBuffer, decoded command.DecodedEntity, serverTick tick.Tick) {
	for i, t := range decoded.Ticks {
		isMostRecent := i == len(decoded.Ticks)-1
		if isMostRecent && p.Options.RewriteStaleTicks && serverTick.IsNewerThan(t) {
			t = serverTick
		}
		buf.AddAny(t, decoded.Values[i])
	}
}

// UpdateCommandAge implements spec.md §4.5 step 4: at end-of-frame, for a
// connection with a valid last-received-snapshot tick, update the
// server-command-age EWMA from the age of that snapshot.
func UpdateCommandAge(conn *session.Connection, currentTick tick.Tick) {
	if !conn.Ack.LastReceivedTick.IsValid() {
		return
	}
	conn.UpdateCommandAgeEWMA(currentTick.TicksSince(conn.Ack.LastReceivedTick))
}
