// Package compress holds the payload compressors used by the cache envelope.
//
// Each compressor has a stable one-byte ID that is written into the envelope,
// so entries stay readable after the configured compressor changes.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// ID identifies a compression algorithm on the wire. 0 is reserved for "none".
type ID byte

const (
	None   ID = 0
	GzipID ID = 1
	ZstdID ID = 2
	S2ID   ID = 3
)

// Compressor compresses envelope payloads. Implementations must be safe for
// concurrent use.
type Compressor interface {
	ID() ID
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

// Lookup returns the built-in compressor registered under id.
func Lookup(id ID) (Compressor, error) {
	switch id {
	case GzipID:
		return Gzip{}, nil
	case ZstdID:
		return Zstd{}, nil
	case S2ID:
		return S2{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown algorithm id %d", id)
	}
}

// ByName maps a configuration name ("gzip", "zstd", "s2") to a compressor.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", "gzip":
		return Gzip{}, nil
	case "zstd":
		return Zstd{}, nil
	case "s2", "snappy":
		return S2{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown algorithm %q", name)
	}
}

// Gzip is the default compressor. The zero value uses gzip.DefaultCompression.
type Gzip struct {
	Level int
}

func (Gzip) ID() ID { return GzipID }

func (g Gzip) Compress(src []byte) ([]byte, error) {
	level := g.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gzip) Decompress(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// encoder and decoder are shared; EncodeAll/DecodeAll are safe for concurrent use.
func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// Zstd trades a little CPU for noticeably smaller payloads than gzip.
type Zstd struct{}

func (Zstd) ID() ID { return ZstdID }

func (Zstd) Compress(src []byte) ([]byte, error) {
	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(src, nil), nil
}

func (Zstd) Decompress(src []byte) ([]byte, error) {
	_, dec, err := zstdCodecs()
	if err != nil {
		return nil, err
	}
	return dec.DecodeAll(src, nil)
}

// S2 is a fast Snappy-compatible block compressor.
type S2 struct{}

func (S2) ID() ID { return S2ID }

func (S2) Compress(src []byte) ([]byte, error) { return s2.Encode(nil, src), nil }

func (S2) Decompress(src []byte) ([]byte, error) { return s2.Decode(nil, src) }
