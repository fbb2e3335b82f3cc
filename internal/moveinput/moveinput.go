// Package moveinput is the one concrete Command type cmd/server and
// cmd/client share: a 2D move intent, the smallest payload that exercises
// the full command pipeline (buffer, codec, send/receive) end to end.
package moveinput

import (
	"encoding/binary"
	"io"

	"github.com/fenwicklabs/ticknet/pkg/command"
	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// Hash is this build's stable wire identifier for Move, agreed out of band
// between the client and server binaries (spec.md §9's runtime registry
// substitute for codegen).
const Hash command.StableHash = 0x4d4f5645 // "MOVE"

// Move is a player's per-tick directional intent.
type Move struct {
	At tick.Tick
	DX int16
	DY int16
}

// Tick implements command.Command.
func (m Move) Tick() tick.Tick { return m.At }

// WithTick implements command.Command.
func (m Move) WithTick(t tick.Tick) any {
	m.At = t
	return m
}

// Codec is Move's registered wire codec: two little-endian int16 fields,
// delta-compressed by plain subtraction against the baseline.
func Codec() command.DeltaCodec[Move] {
	return command.DeltaCodec[Move]{
		Codec: command.Codec[Move]{
			Encode: func(v Move, buf []byte) []byte {
				buf = binary.LittleEndian.AppendUint16(buf, uint16(v.DX))
				buf = binary.LittleEndian.AppendUint16(buf, uint16(v.DY))
				return buf
			},
			Decode: func(buf []byte) (Move, int, error) {
				if len(buf) < 4 {
					return Move{}, 0, io.ErrUnexpectedEOF
				}
				return Move{
					DX: int16(binary.LittleEndian.Uint16(buf[0:2])),
					DY: int16(binary.LittleEndian.Uint16(buf[2:4])),
				}, 4, nil
			},
			SizeHint: 4,
		},
		EncodeDelta: func(v, baseline Move, buf []byte) []byte {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v.DX-baseline.DX))
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v.DY-baseline.DY))
			return buf
		},
		DecodeDelta: func(buf []byte, baseline Move) (Move, int, error) {
			if len(buf) < 4 {
				return Move{}, 0, io.ErrUnexpectedEOF
			}
			return Move{
				DX: baseline.DX + int16(binary.LittleEndian.Uint16(buf[0:2])),
				DY: baseline.DY + int16(binary.LittleEndian.Uint16(buf[2:4])),
			}, 4, nil
		},
	}
}

// Register installs Move's codec in reg under Hash.
func Register(reg *command.Registry) {
	command.RegisterDelta(reg, Hash, Codec())
}
