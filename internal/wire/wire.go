package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	version byte = 1

	flagCompressed byte = 1 << 0
	flagSerialized byte = 1 << 1
	flagEarly      byte = 1 << 2

	// magic(4) | ver(1) | flags(1) | comp(1) | created(8) | expires(8) | early(8) | vlen(4)
	headerLen = 4 + 1 + 1 + 1 + 8 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("chicache: corrupt entry")
	ErrTooLong = errors.New("chicache: payload exceeds 4 GiB")
	magic4     = [...]byte{'C', 'H', 'I', 'O'}
)

// Header carries the envelope metadata. Timestamps are unix nanoseconds.
// Early is meaningful only when HasEarly is set.
type Header struct {
	Compressed  bool
	Serialized  bool
	HasEarly    bool
	Compression byte
	Created     int64
	Expires     int64
	Early       int64
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames h and payload into a single buffer.
func Encode(h Header, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrTooLong
	}

	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var flags byte
	if h.Compressed {
		flags |= flagCompressed
	}
	if h.Serialized {
		flags |= flagSerialized
	}
	if h.HasEarly {
		flags |= flagEarly
	}
	buf.WriteByte(flags)
	buf.WriteByte(h.Compression)

	var u8 [8]byte
	var u4 [4]byte

	for _, ts := range [...]int64{h.Created, h.Expires, h.Early} {
		binary.BigEndian.PutUint64(u8[:], uint64(ts))
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses a framed envelope. The returned payload aliases b.
func Decode(b []byte) (h Header, payload []byte, err error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version {
		return Header{}, nil, ErrCorrupt
	}

	flags := b[5]
	if flags&^(flagCompressed|flagSerialized|flagEarly) != 0 {
		return Header{}, nil, ErrCorrupt
	}
	h.Compressed = flags&flagCompressed != 0
	h.Serialized = flags&flagSerialized != 0
	h.HasEarly = flags&flagEarly != 0
	h.Compression = b[6]
	if h.Compressed != (h.Compression != 0) {
		return Header{}, nil, ErrCorrupt
	}

	off := 7
	h.Created = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	h.Expires = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	h.Early = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no short reads, no trailing bytes
		return Header{}, nil, ErrCorrupt
	}

	return h, b[off : off+vlen], nil
}
