package command

import (
	"encoding/binary"
	"errors"

	"github.com/fenwicklabs/ticknet/pkg/tick"
)

// DeltaCodec extends Codec with the delta compression spec.md §4.3 requires
// for the three predecessor inputs carried alongside the baseline.
type DeltaCodec[T Command] struct {
	Codec[T]
	EncodeDelta func(v, baseline T, buf []byte) []byte
	DecodeDelta func(buf []byte, baseline T) (T, int, error)
}

// entityHeaderSize is the fixed portion of one entity's payload, following
// the [u64 hash][u16 len][i32 ghost_id][u32 spawn_tick][u32 baseline_tick]
// layout in spec.md §4.3.
const entityHeaderSize = 8 + 2 + 4 + 4 + 4

// AnyBuffer lets the receive pipeline insert a decoded value into a
// Buffer[T] without statically knowing T (the wire only carries a hash).
type AnyBuffer interface {
	AddAny(t tick.Tick, v any)
}

// AddAny implements AnyBuffer for Buffer[T].
func (b *Buffer[T]) AddAny(t tick.Tick, v any) {
	b.Add(t, v.(T))
}

// Redundant returns up to n buffered entries with tick <= target, newest
// first: element 0 is the baseline, elements 1..n-1 are its predecessors.
func (b *Buffer[T]) Redundant(target tick.Tick, n int) (ticks []tick.Tick, vals []T) {
	type cand struct {
		tick tick.Tick
		idx  int
	}
	var cands []cand
	for i := range b.entries {
		if b.entries[i].tick.IsNewerThan(target) {
			continue
		}
		cands = append(cands, cand{tick: b.entries[i].tick, idx: i})
	}
	// Insertion sort, newest first; Cap is small (64) so this stays cheap.
	for i := 1; i < len(cands); i++ {
		j := i
		for j > 0 && cands[j].tick.IsNewerThan(cands[j-1].tick) {
			cands[j], cands[j-1] = cands[j-1], cands[j]
			j--
		}
	}
	if len(cands) > n {
		cands = cands[:n]
	}
	ticks = make([]tick.Tick, len(cands))
	vals = make([]T, len(cands))
	for i, c := range cands {
		ticks[i] = c.tick
		vals[i] = b.entries[c.idx].cmd
	}
	return ticks, vals
}

// ErrPayloadTooLarge is returned when an entity's encoded payload would
// exceed MaxPayloadBytes; per spec.md §7 the caller logs this and drops the
// tick's commands for that entity rather than propagating a hard failure.
var ErrPayloadTooLarge = errors.New("command: encoded payload exceeds MaxPayloadBytes")

// EncodeEntityPayload appends one entity's framed payload (hash, length,
// routing fields, baseline, and up to Redundancy-1 deltas) to out and
// returns the extended slice. ghostID == 0 means explicit routing (spec.md
// §4.6); spawnTick is ignored in that case.
func EncodeEntityPayload[T Command](
	codec DeltaCodec[T],
	hash StableHash,
	ghostID int32,
	spawnTick tick.Tick,
	buf *Buffer[T],
	targetTick tick.Tick,
	out []byte,
) ([]byte, error) {
	ticks, vals := buf.Redundant(targetTick, Redundancy)
	if len(ticks) == 0 {
		return out, errNoInputForTick
	}
	baselineTick, baseline := ticks[0], vals[0]

	body := make([]byte, 0, entityHeaderSize+codec.SizeHint*Redundancy)
	body = binary.LittleEndian.AppendUint32(body, uint32(ghostID))
	var spawn uint32
	if ghostID != 0 {
		spawn = uint32(spawnTick)
	}
	body = binary.LittleEndian.AppendUint32(body, spawn)
	body = binary.LittleEndian.AppendUint32(body, uint32(baselineTick))
	body = codec.Encode(baseline, body)

	for i := 1; i < Redundancy; i++ {
		if i >= len(ticks) {
			break
		}
		delta := uint32(baselineTick.TicksSince(ticks[i]))
		body = binary.LittleEndian.AppendUint32(body, delta)
		body = codec.EncodeDelta(vals[i], baseline, body)
	}

	if len(body) > MaxPayloadBytes {
		return out, ErrPayloadTooLarge
	}

	out = binary.LittleEndian.AppendUint64(out, uint64(hash))
	out = binary.LittleEndian.AppendUint16(out, uint16(len(body)))
	out = append(out, body...)
	return out, nil
}

var errNoInputForTick = errors.New("command: no buffered input at or before target tick")

// DecodedEntity is one entity's payload after generic decode, before it is
// inserted into the target entity's typed buffer.
type DecodedEntity struct {
	Hash      StableHash
	GhostID   int32
	SpawnTick tick.Tick
	// Ticks/Values are in production order: oldest first, per spec.md §4.3's
	// decode-then-insert-oldest-first rule (so older entries never clobber a
	// newer one that shares a tick after the late-input rewrite in §4.5/§7).
	Ticks  []tick.Tick
	Values []any
}

// DecodeNextEntity reads one framed entity payload from the front of buf
// using reg to resolve the type by hash. If the hash is unknown, ok is false
// and consumed is len(header)+payload_length so the caller can skip forward
// without treating it as an error (spec.md §4.5 step 2, §7).
func DecodeNextEntity(reg *Registry, buf []byte) (decoded DecodedEntity, consumed int, ok bool, err error) {
	const minHeader = 8 + 2
	if len(buf) < minHeader {
		return DecodedEntity{}, 0, false, errShortEntityHeader
	}
	hash := StableHash(binary.LittleEndian.Uint64(buf))
	length := int(binary.LittleEndian.Uint16(buf[8:10]))
	if len(buf) < minHeader+length {
		return DecodedEntity{}, 0, false, errShortEntityBody
	}
	total := minHeader + length

	_, decode, _, found := reg.Lookup(hash)
	if !found {
		return DecodedEntity{}, total, false, nil
	}

	body := buf[minHeader:total]
	if len(body) < 12 {
		return DecodedEntity{}, total, false, errShortEntityBody
	}
	ghostID := int32(binary.LittleEndian.Uint32(body))
	spawnTick := tick.Tick(binary.LittleEndian.Uint32(body[4:8]))
	baselineTick := tick.Tick(binary.LittleEndian.Uint32(body[8:12]))
	cursor := body[12:]

	baseline, n, derr := decode(cursor)
	if derr != nil {
		return DecodedEntity{}, total, false, derr
	}
	cursor = cursor[n:]

	ticks := []tick.Tick{baselineTick}
	values := []any{baseline}
	for i := 1; i < Redundancy && len(cursor) >= 4; i++ {
		delta := binary.LittleEndian.Uint32(cursor)
		cursor = cursor[4:]
		entryTick := tick.Tick(uint32(baselineTick) - delta)

		decodeDelta, foundDelta := reg.lookupDelta(hash)
		if !foundDelta {
			break
		}
		val, n2, derr2 := decodeDelta(cursor, baseline)
		if derr2 != nil {
			return DecodedEntity{}, total, false, derr2
		}
		cursor = cursor[n2:]
		ticks = append(ticks, entryTick)
		values = append(values, val)
	}

	// Reverse into production (oldest-first) order before returning, per
	// spec.md §4.3's decode contract.
	for i, j := 0, len(ticks)-1; i < j; i, j = i+1, j-1 {
		ticks[i], ticks[j] = ticks[j], ticks[i]
		values[i], values[j] = values[j], values[i]
	}

	return DecodedEntity{
		Hash:      hash,
		GhostID:   ghostID,
		SpawnTick: spawnTick,
		Ticks:     ticks,
		Values:    values,
	}, total, true, nil
}

var (
	errShortEntityHeader = errors.New("command: buffer too short for entity header")
	errShortEntityBody   = errors.New("command: buffer too short for advertised payload length")
)

// RegisterDelta installs codec's base and delta encode/decode functions for
// hash in reg. Use this instead of Register for any command type the send
// pipeline will compress against a baseline.
func RegisterDelta[T Command](reg *Registry, hash StableHash, codec DeltaCodec[T]) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.codecs[hash] = erasedCodec{
		encode: func(v any, buf []byte) []byte {
			return codec.Encode(v.(T), buf)
		},
		decode: func(buf []byte) (any, int, error) {
			return codec.Decode(buf)
		},
		decodeDelta: func(buf []byte, baseline any) (any, int, error) {
			return codec.DecodeDelta(buf, baseline.(T))
		},
		sizeHint: codec.SizeHint,
	}
}
