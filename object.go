package chicache

import (
	"fmt"
	"time"

	c "github.com/unkn0wn-root/chicache/codec"
	"github.com/unkn0wn-root/chicache/compress"
	"github.com/unkn0wn-root/chicache/internal/wire"
)

// State is the freshness of an entry at a point in time. It is derived from
// the envelope timestamps and never stored.
type State int

const (
	StateFresh   State = iota // before the early deadline, or no early deadline
	StateStale                // early deadline passed, hard deadline not yet
	StateExpired              // hard deadline passed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Object is the envelope stored in the driver for every key.
type Object struct {
	Value          []byte      // payload after serialization and compression
	Compressed     bool        // Value is compressed with Compression
	Compression    compress.ID // compress.None unless Compressed
	Serialized     bool        // false when the caller's value was a []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time // hard expiry
	EarlyExpiresAt time.Time // soft expiry; zero means none
}

// HasEarly reports whether the object carries a soft deadline.
func (o Object) HasEarly() bool { return !o.EarlyExpiresAt.IsZero() }

func (o Object) State(now time.Time) State {
	if !now.Before(o.ExpiresAt) {
		return StateExpired
	}
	if o.HasEarly() && !now.Before(o.EarlyExpiresAt) {
		return StateStale
	}
	return StateFresh
}

// TTL is the remaining hard lifetime at now; never negative.
func (o Object) TTL(now time.Time) time.Duration {
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// clampEarly keeps the soft deadline at or before the hard one.
func (o *Object) clampEarly() {
	if o.HasEarly() && o.EarlyExpiresAt.After(o.ExpiresAt) {
		o.EarlyExpiresAt = o.ExpiresAt
	}
}

func marshalObject(o Object) ([]byte, error) {
	h := wire.Header{
		Compressed:  o.Compressed,
		Serialized:  o.Serialized,
		HasEarly:    o.HasEarly(),
		Compression: byte(o.Compression),
		Created:     o.CreatedAt.UnixNano(),
		Expires:     o.ExpiresAt.UnixNano(),
	}
	if h.HasEarly {
		h.Early = o.EarlyExpiresAt.UnixNano()
	}
	return wire.Encode(h, o.Value)
}

// unmarshalObject decodes a stored envelope. Value aliases b.
func unmarshalObject(b []byte) (Object, error) {
	h, payload, err := wire.Decode(b)
	if err != nil {
		return Object{}, err
	}
	o := Object{
		Value:       payload,
		Compressed:  h.Compressed,
		Compression: compress.ID(h.Compression),
		Serialized:  h.Serialized,
		CreatedAt:   time.Unix(0, h.Created),
		ExpiresAt:   time.Unix(0, h.Expires),
	}
	if h.HasEarly {
		o.EarlyExpiresAt = time.Unix(0, h.Early)
	}
	o.clampEarly()
	return o, nil
}

type compressMode int8

const (
	compressAuto compressMode = iota
	compressForce
	compressOff
)

// objectCodec turns caller values into envelope payloads and back.
type objectCodec[V any] struct {
	codec     c.Codec[V]
	comp      compress.Compressor
	threshold int // NoCompression disables the size trigger
}

// pack fills Value, Serialized and the compression fields of an Object.
func (oc objectCodec[V]) pack(v V, mode compressMode) (Object, error) {
	if b, ok := any(v).([]byte); ok {
		// raw bytes are stored verbatim; copy so later caller writes cannot leak in
		return Object{Value: append([]byte{}, b...)}, nil
	}
	payload, err := oc.codec.Encode(v)
	if err != nil {
		return Object{}, fmt.Errorf("chicache: encode value: %w", err)
	}
	o := Object{Value: payload, Serialized: true}

	shouldCompress := false
	switch mode {
	case compressForce:
		shouldCompress = true
	case compressAuto:
		shouldCompress = oc.threshold >= 0 && len(payload) > oc.threshold
	}
	if shouldCompress {
		z, err := oc.comp.Compress(payload)
		if err != nil {
			return Object{}, fmt.Errorf("chicache: compress value: %w", err)
		}
		o.Value = z
		o.Compressed = true
		o.Compression = oc.comp.ID()
	}
	return o, nil
}

// decompressor returns the compressor for a stored algorithm id. The
// configured compressor wins on its own id, so custom ones read back.
func (oc objectCodec[V]) decompressor(id compress.ID) (compress.Compressor, error) {
	if oc.comp != nil && oc.comp.ID() == id {
		return oc.comp, nil
	}
	return compress.Lookup(id)
}

// unpack reverses pack. Decompression uses the algorithm recorded in o, not
// the configured one.
func (oc objectCodec[V]) unpack(o Object) (V, error) {
	var zero V
	payload := o.Value
	if o.Compressed {
		z, err := oc.decompressor(o.Compression)
		if err != nil {
			return zero, err
		}
		if payload, err = z.Decompress(payload); err != nil {
			return zero, fmt.Errorf("chicache: decompress value: %w", err)
		}
	}
	if !o.Serialized {
		raw := append([]byte{}, payload...)
		if v, ok := any(raw).(V); ok {
			return v, nil
		}
		// written as []byte by another cache type; let the codec interpret it
	}
	v, err := oc.codec.Decode(payload)
	if err != nil {
		return zero, fmt.Errorf("chicache: decode value: %w", err)
	}
	return v, nil
}
