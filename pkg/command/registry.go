package command

import (
	"fmt"
	"sync"
)

// StableHash is the wire identifier for a command type, substituting for the
// source-generator tooling spec.md §9 redesigns away: each concrete input
// type registers one typed Codec under a 64-bit hash agreed out of band
// between client and server builds.
type StableHash uint64

// Codec is the typed serialize/deserialize pair for one command type T,
// registered once at program start. SizeHint is an upper bound on one
// encoded value's size in bytes, used to presize payload buffers.
type Codec[T Command] struct {
	Encode   func(v T, buf []byte) []byte
	Decode   func(buf []byte) (T, int, error)
	SizeHint int
}

// erasedCodec is the type-erased form stored in the registry so one registry
// can hold codecs for arbitrarily many concrete command types.
type erasedCodec struct {
	encode      func(v any, buf []byte) []byte
	decode      func(buf []byte) (any, int, error)
	decodeDelta func(buf []byte, baseline any) (any, int, error)
	sizeHint    int
}

// Registry maps stable type hashes to type-erased codecs. One Registry is
// shared by the send and receive pipelines for a given build.
type Registry struct {
	mu     sync.RWMutex
	codecs map[StableHash]erasedCodec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[StableHash]erasedCodec)}
}

// Register installs codec under hash, erasing T. Re-registering the same
// hash overwrites the previous codec (useful in tests); production callers
// should treat hash collisions as a build-time bug.
func Register[T Command](r *Registry, hash StableHash, codec Codec[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[hash] = erasedCodec{
		encode: func(v any, buf []byte) []byte {
			return codec.Encode(v.(T), buf)
		},
		decode: func(buf []byte) (any, int, error) {
			val, n, err := codec.Decode(buf)
			return val, n, err
		},
		sizeHint: codec.SizeHint,
	}
}

// Lookup returns the codec registered for hash, if any.
func (r *Registry) Lookup(hash StableHash) (encode func(v any, buf []byte) []byte, decode func(buf []byte) (any, int, error), sizeHint int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[hash]
	if !ok {
		return nil, nil, 0, false
	}
	return c.encode, c.decode, c.sizeHint, true
}

// lookupDelta returns the delta-decode function registered for hash via
// RegisterDelta, if any.
func (r *Registry) lookupDelta(hash StableHash) (func(buf []byte, baseline any) (any, int, error), bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[hash]
	if !ok || c.decodeDelta == nil {
		return nil, false
	}
	return c.decodeDelta, true
}

// ErrUnknownHash is returned by callers that need to distinguish "no codec
// registered" from other decode failures. The receive pipeline does not
// treat this as an error (spec.md §7 — unknown hashes are skipped silently
// for forward compatibility); it exists for callers that do want to log it.
var ErrUnknownHash = fmt.Errorf("command: no codec registered for this stable hash")
