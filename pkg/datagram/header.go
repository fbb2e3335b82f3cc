// Package datagram defines the fixed-size command datagram header shared by
// the send pipeline (C4) and receive pipeline (C5) — spec.md §4.4, §6.
package datagram

import (
	"encoding/binary"
	"errors"

	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// ProtocolID identifies the datagram kind on the wire. Command is the only
// one this module produces or consumes; snapshots are out of scope
// (spec.md §1).
type ProtocolID uint8

// Command is the protocol_id byte value for a command datagram.
const Command ProtocolID = 1

// HeaderSize is the fixed size in bytes of Header's wire form (spec.md §4.4:
// "Header size is fixed at 29 bytes").
const HeaderSize = 1 + 4*7

// Header is the per-connection, once-per-tick command datagram header.
type Header struct {
	LastReceivedSnapshotTick tick.Tick
	ReceivedSnapshotMask     uint32
	LocalTimestampMS         uint32
	EchoedRemoteTime         uint32
	InterpolationDelayTicks  int32
	NumLoadedPrefabs         uint32
	InputTargetTick          tick.Tick
}

// Marshal writes h's wire form, prefixed with the Command protocol id, to buf
// and returns the extended slice.
func (h Header) Marshal(buf []byte) []byte {
	buf = append(buf, byte(Command))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.LastReceivedSnapshotTick))
	buf = binary.LittleEndian.AppendUint32(buf, h.ReceivedSnapshotMask)
	buf = binary.LittleEndian.AppendUint32(buf, h.LocalTimestampMS)
	buf = binary.LittleEndian.AppendUint32(buf, h.EchoedRemoteTime)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.InterpolationDelayTicks))
	buf = binary.LittleEndian.AppendUint32(buf, h.NumLoadedPrefabs)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.InputTargetTick))
	return buf
}

var errShortHeader = errors.New("datagram: buffer shorter than the fixed 29-byte header")

// ErrNotCommand is returned when the leading protocol byte is not Command.
var ErrNotCommand = errors.New("datagram: protocol id is not Command")

// Unmarshal reads a Header (including its leading protocol byte) from the
// front of buf, returning the header and the number of bytes consumed.
func Unmarshal(buf []byte) (Header, int, error) {
	if len(buf) < HeaderSize {
		return Header{}, 0, errShortHeader
	}
	if ProtocolID(buf[0]) != Command {
		return Header{}, 0, ErrNotCommand
	}
	b := buf[1:]
	h := Header{
		LastReceivedSnapshotTick: tick.Tick(binary.LittleEndian.Uint32(b[0:4])),
		ReceivedSnapshotMask:     binary.LittleEndian.Uint32(b[4:8]),
		LocalTimestampMS:         binary.LittleEndian.Uint32(b[8:12]),
		EchoedRemoteTime:         binary.LittleEndian.Uint32(b[12:16]),
		InterpolationDelayTicks:  int32(binary.LittleEndian.Uint32(b[16:20])),
		NumLoadedPrefabs:         binary.LittleEndian.Uint32(b[20:24]),
		InputTargetTick:          tick.Tick(binary.LittleEndian.Uint32(b[24:28])),
	}
	return h, HeaderSize, nil
}
