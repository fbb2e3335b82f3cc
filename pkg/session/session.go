// Package session holds the per-connection state shared by the send and
// receive pipelines: the network id, the snapshot acknowledgement fields
// embedded in every command datagram, and the explicit command-target
// fallback used when a ghost has no AutoCommandTarget (spec.md §3, §4.6).
package session

import (
	"github.com/fenwicklabs/ticknet/pkg/entity"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// NetworkID identifies one connected peer, independent of its entity.
type NetworkID uint32

// SnapshotAck is the client-observed state of the last snapshots received,
// echoed back to the server on every command datagram (spec.md §6).
type SnapshotAck struct {
	LastReceivedTick tick.Tick
	ReceivedMask     uint32 // receipt bitmask for the last 32 snapshots
	LocalTimestampMS uint32
	EchoedRemoteTime uint32

	EstimatedRTTMS    float32
	EstimatedJitterMS float32

	// ServerCommandAgeEWMA is fixed point /256, updated per spec.md §4.5 step 4.
	ServerCommandAgeEWMA uint32
}

// CommandTarget is the explicit routing fallback (spec.md §3, §4.6): used
// when no AutoCommandTarget entity claims this connection's command stream.
type CommandTarget struct {
	TargetEntity entity.ID
	Set          bool
}

// Connection is one client's server-side (or server-side view of a client's)
// networking state. Commands and stats are per-entity/per-world; Connection
// is the per-peer bookkeeping those pipelines read and update.
type Connection struct {
	NetworkID NetworkID
	Ack       SnapshotAck
	Target    CommandTarget

	Outgoing []byte
	Incoming []byte

	// LastFullServerTick gates the send pipeline's duplicate-send suppression
	// (spec.md §4.4).
	LastFullServerTick tick.Tick
	// PrevInputTargetTick is the input target tick of the last datagram the
	// send pipeline built for this connection, whether or not any entity's
	// commands went into it; used by the skip policy in spec.md §4.4.
	PrevInputTargetTick tick.Tick
}

// NewConnection returns a Connection ready to track a freshly accepted peer.
func NewConnection(id NetworkID) *Connection {
	return &Connection{NetworkID: id}
}

// Reset clears the outgoing buffer and the snapshot-ack state on disconnect
// (spec.md §5, "Cancellation/timeouts": a connection drop zeroes its
// outgoing buffer). The stats index lives on stats.Collector and is not
// touched here.
func (c *Connection) Reset() {
	c.Outgoing = c.Outgoing[:0]
	c.Ack = SnapshotAck{}
}

// UpdateCommandAgeEWMA applies the fixed-point-/256 EWMA from spec.md §4.5
// step 4: ema = (ema*7 + (ticksSinceLastRecv << 8)) / 8.
func (c *Connection) UpdateCommandAgeEWMA(ticksSinceLastRecv int32) {
	sample := uint32(ticksSinceLastRecv) << 8
	c.Ack.ServerCommandAgeEWMA = (c.Ack.ServerCommandAgeEWMA*7 + sample) / 8
}
