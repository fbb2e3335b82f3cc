package stats

import (
	"encoding/binary"
	"errors"
	"math"
)

// binaryHeaderSize is the 8-byte leading block of the packet (collection
// tick, stat index and the three entry counts); four more fixed bytes
// (rpcs, discarded_packets, two reserved) follow it before the first
// variable-length section (spec.md §4.7's packet layout).
const binaryHeaderSize = 8

// timeSampleSize is the wire size of one TimeSample: 9 little-endian f32
// fields (spec.md §4.7).
const timeSampleSize = 9 * 4

// MaxPacketSize returns the packet-size estimate for n snapshot stat words
// and m prediction-error fields given by spec.md §4.7's sizing formula:
// "8 + 20×255 + 4×|snapshot_stats| + 4×|prediction_errors| + 4×255".
// encodeBinaryPacket uses it only as the initial buffer capacity; a frame
// carrying many time samples (36 bytes each) encodes to more than this and
// the buffer grows.
func MaxPacketSize(snapshotStatWords, predictionErrorFields int) int {
	return binaryHeaderSize + 20*maxBoundedEntries + 4*snapshotStatWords + 4*predictionErrorFields + 4*maxBoundedEntries
}

func clampCount(n int) uint8 {
	if n > maxBoundedEntries {
		return maxBoundedEntries
	}
	return uint8(n)
}

// encodeBinaryPacket writes c's current frame as the little-endian binary
// packet spec.md §4.7 defines. Caller holds c.mu.
func encodeBinaryPacket(c *Collector) []byte {
	bufCap := MaxPacketSize(len(c.snapshotStats), len(c.predictionErrors))
	buf := make([]byte, 0, bufCap)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.collectionTick))
	buf = append(buf, byte(uint8(c.statIndex)))
	buf = append(buf, clampCount(len(c.timeSamples)))
	buf = append(buf, clampCount(len(c.snapshotTicks)))
	buf = append(buf, clampCount(len(c.commandTicks)))
	buf = append(buf, 0) // rpcs, reserved
	buf = append(buf, c.discardedPackets)
	buf = append(buf, 0, 0) // reserved

	for i := 0; i < int(clampCount(len(c.timeSamples))); i++ {
		buf = appendTimeSample(buf, c.timeSamples[i])
	}
	for _, v := range c.snapshotTicks {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	for _, v := range c.snapshotStats {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	for _, v := range c.predictionErrors {
		buf = appendFloat32(buf, v)
	}
	for _, v := range c.commandTicks {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	buf = binary.LittleEndian.AppendUint32(buf, c.commandStats)
	return buf
}

func appendTimeSample(buf []byte, s TimeSample) []byte {
	buf = appendFloat32(buf, s.Fraction)
	buf = appendFloat32(buf, s.Timescale)
	buf = appendFloat32(buf, s.InterpOffset)
	buf = appendFloat32(buf, s.InterpScale)
	buf = appendFloat32(buf, s.CommandAge)
	buf = appendFloat32(buf, s.RTT)
	buf = appendFloat32(buf, s.Jitter)
	buf = appendFloat32(buf, s.AgeMin)
	buf = appendFloat32(buf, s.AgeMax)
	return buf
}

func appendFloat32(buf []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
}

// DecodedPacket is a binary stats packet parsed back into its component
// fields (the receive-side counterpart to encodeBinaryPacket).
type DecodedPacket struct {
	CollectionTick    uint32
	StatIndex         uint8
	DiscardedPackets  uint8
	TimeSamples       []TimeSample
	SnapshotTicks     []uint32
	SnapshotStats     []uint32
	PredictionErrors  []float32
	CommandTicks      []uint32
	CommandStatsBytes uint32
}

// errShortPacket is returned when buf is truncated relative to its own
// declared counts.
var errShortPacket = errors.New("stats: packet shorter than its declared field counts")

// DecodeBinaryPacket parses a packet produced by encodeBinaryPacket.
// snapshotStatWords and predictionErrorFields must come from the matching
// name-table frame (spec.md §4.7 gives neither field an explicit wire
// count — a receiver is expected to already know the ghost-type count and
// prediction-error field count from the most recent name table).
func DecodeBinaryPacket(buf []byte, snapshotStatWords, predictionErrorFields int) (DecodedPacket, error) {
	if len(buf) < binaryHeaderSize+4 {
		return DecodedPacket{}, errShortPacket
	}
	var d DecodedPacket
	d.CollectionTick = binary.LittleEndian.Uint32(buf)
	d.StatIndex = buf[4]
	numTime := int(buf[5])
	numSnapshotTicks := int(buf[6])
	numCommandTicks := int(buf[7])
	d.DiscardedPackets = buf[binaryHeaderSize+1]
	cursor := buf[binaryHeaderSize+4:]

	for i := 0; i < numTime; i++ {
		if len(cursor) < timeSampleSize {
			return DecodedPacket{}, errShortPacket
		}
		d.TimeSamples = append(d.TimeSamples, TimeSample{
			Fraction:     readFloat32(cursor[0:4]),
			Timescale:    readFloat32(cursor[4:8]),
			InterpOffset: readFloat32(cursor[8:12]),
			InterpScale:  readFloat32(cursor[12:16]),
			CommandAge:   readFloat32(cursor[16:20]),
			RTT:          readFloat32(cursor[20:24]),
			Jitter:       readFloat32(cursor[24:28]),
			AgeMin:       readFloat32(cursor[28:32]),
			AgeMax:       readFloat32(cursor[32:36]),
		})
		cursor = cursor[timeSampleSize:]
	}
	for i := 0; i < numSnapshotTicks; i++ {
		if len(cursor) < 4 {
			return DecodedPacket{}, errShortPacket
		}
		d.SnapshotTicks = append(d.SnapshotTicks, binary.LittleEndian.Uint32(cursor))
		cursor = cursor[4:]
	}
	for i := 0; i < snapshotStatWords; i++ {
		if len(cursor) < 4 {
			return DecodedPacket{}, errShortPacket
		}
		d.SnapshotStats = append(d.SnapshotStats, binary.LittleEndian.Uint32(cursor))
		cursor = cursor[4:]
	}
	for i := 0; i < predictionErrorFields; i++ {
		if len(cursor) < 4 {
			return DecodedPacket{}, errShortPacket
		}
		d.PredictionErrors = append(d.PredictionErrors, readFloat32(cursor[0:4]))
		cursor = cursor[4:]
	}
	for i := 0; i < numCommandTicks; i++ {
		if len(cursor) < 4 {
			return DecodedPacket{}, errShortPacket
		}
		d.CommandTicks = append(d.CommandTicks, binary.LittleEndian.Uint32(cursor))
		cursor = cursor[4:]
	}
	if len(cursor) < 4 {
		return DecodedPacket{}, errShortPacket
	}
	d.CommandStatsBytes = binary.LittleEndian.Uint32(cursor)
	return d, nil
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
