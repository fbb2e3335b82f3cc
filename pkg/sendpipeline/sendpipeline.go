// Package sendpipeline implements the client-side per-tick command send job
// (spec.md §4.4, Command Send Pipeline / C4): target selection, datagram
// framing, the stale-data skip policy, and the interpolation-delay
// calculation carried in every header.
package sendpipeline

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/fenwicklabs/ticknet/pkg/command"
	"github.com/fenwicklabs/ticknet/pkg/datagram"
	"github.com/fenwicklabs/ticknet/pkg/entity"
	"github.com/fenwicklabs/ticknet/pkg/routing"
	"github.com/fenwicklabs/ticknet/pkg/session"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// Target is one entity this connection might send commands for: either an
// AutoCommandTarget-owned ghost (Auto == true, GhostID/SpawnTick populated)
// or the connection's explicit CommandTarget (Auto == false).
type Target[T command.Command] struct {
	ID        entity.ID
	Buffer    *command.Buffer[T]
	Auto      bool
	GhostID   routing.GhostID
	SpawnTick tick.Tick
}

// TickContext is the subset of client clock state the header and the
// interpolation-delay math need for one send (spec.md §4.4).
type TickContext struct {
	ServerTick        tick.Tick
	InterpolationTick tick.Tick
	ServerFrac        float32 // fractional subtick offset of ServerTick
	InterpFrac        float32 // fractional subtick offset of InterpolationTick
}

// InterpolationDelay computes the delay field per spec.md §4.4:
// delay = server_tick - interpolation_tick, adjusted for the fractional
// subtick offset by +1/-1 at the boundary conditions given there.
func InterpolationDelay(ctx TickContext) int32 {
	delay := ctx.ServerTick.TicksSince(ctx.InterpolationTick)
	adjust := (1 - ctx.InterpFrac) - (1 - ctx.ServerFrac)
	switch {
	case adjust >= 1:
		delay++
	case adjust < 0:
		delay--
	}
	return delay
}

// Pipeline builds one outgoing command datagram per connection per tick for
// command type T. One client runs one Pipeline per distinct command type it
// produces.
type Pipeline[T command.Command] struct {
	Hash  command.StableHash
	Codec command.DeltaCodec[T]

	// MTU and MaxHeaderOverhead decide whether BuildDatagram's payload needs
	// the fragmented or unfragmented send path (spec.md §4.4). The
	// fragmentation pipeline itself is the opaque unreliable-ordered
	// transport (spec.md §1) — this package only reports which one to use.
	MTU              int
	MaxHeaderOverhead int
}

// Result is the outcome of one BuildDatagram call.
type Result struct {
	Datagram    []byte
	Fragmented  bool
	EntitiesSent int
}

// BuildDatagram assembles one connection's command datagram for currentTick,
// or reports skipped == true if the duplicate-send gate suppressed it
// entirely (spec.md §4.4: "Gated by a comparison against
// last_full_server_tick to suppress duplicate sends at variable render
// rates.").
func (p *Pipeline[T]) BuildDatagram(
	conn *session.Connection,
	targets []Target[T],
	currentTick tick.Tick,
	ctx TickContext,
) (result Result, skipped bool) {
	if conn.LastFullServerTick.IsValid() && !currentTick.IsNewerThan(conn.LastFullServerTick) {
		return Result{}, true
	}

	header := datagram.Header{
		LastReceivedSnapshotTick: conn.Ack.LastReceivedTick,
		ReceivedSnapshotMask:     conn.Ack.ReceivedMask,
		LocalTimestampMS:         conn.Ack.LocalTimestampMS,
		EchoedRemoteTime:         conn.Ack.EchoedRemoteTime,
		InterpolationDelayTicks:  InterpolationDelay(ctx),
		NumLoadedPrefabs:         0,
		InputTargetTick:          currentTick,
	}
	out := header.Marshal(make([]byte, 0, datagram.HeaderSize+command.MaxPayloadBytes))

	for _, tgt := range selectTargets(targets, conn) {
		if p.skip(conn, tgt.Buffer, currentTick) {
			continue
		}
		ghostID, spawn := int32(0), tick.Tick(0)
		if tgt.Auto {
			ghostID, spawn = int32(tgt.GhostID), tgt.SpawnTick
		}
		encoded, err := command.EncodeEntityPayload[T](p.Codec, p.Hash, ghostID, spawn, tgt.Buffer, currentTick, out)
		if err != nil {
			// spec.md §7: serialization overflow is logged here and this
			// entity's commands are dropped for the tick.
			if errors.Is(err, command.ErrPayloadTooLarge) {
				logrus.WithError(err).WithField("entity", tgt.ID).Error("sendpipeline: dropping entity's commands for this tick")
			}
			continue
		}
		out = encoded
		result.EntitiesSent++
	}

	conn.PrevInputTargetTick = currentTick
	result.Datagram = out
	result.Fragmented = len(out)+p.MaxHeaderOverhead > p.MTU
	return result, false
}

// skip implements the §4.4 skip policy: if the newest buffered tick was
// already sent and the gap to the current target exceeds the buffer's
// capacity, skip this entity rather than ship stale data after a hitch.
func (p *Pipeline[T]) skip(conn *session.Connection, buf *command.Buffer[T], currentTick tick.Tick) bool {
	ticks, _ := buf.Redundant(currentTick, 1)
	if len(ticks) == 0 {
		return true
	}
	newest := ticks[0]
	alreadySent := conn.PrevInputTargetTick.IsValid() && !newest.IsNewerThan(conn.PrevInputTargetTick)
	gap := currentTick.TicksSince(newest)
	return alreadySent && gap > command.Cap
}

// selectTargets implements spec.md §4.4 target selection: every
// AutoCommandTarget-owned entity first, then the explicit CommandTarget only
// if it wasn't already covered by an auto target.
func selectTargets[T command.Command](targets []Target[T], conn *session.Connection) []Target[T] {
	var out []Target[T]
	coveredExplicit := false
	explicit := explicitID(conn)

	for _, t := range targets {
		if !t.Auto {
			continue
		}
		out = append(out, t)
		if t.ID == explicit {
			coveredExplicit = true
		}
	}
	if coveredExplicit || !conn.Target.Set {
		return out
	}
	for _, t := range targets {
		if !t.Auto && t.ID == explicit {
			out = append(out, t)
			break
		}
	}
	return out
}

func explicitID(conn *session.Connection) entity.ID {
	if !conn.Target.Set {
		return 0
	}
	return conn.Target.TargetEntity
}
