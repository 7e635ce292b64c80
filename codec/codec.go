// Package codec provides the serializers a cache uses for non-[]byte values.
package codec

import "fmt"

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// ByName returns the codec registered under a configuration name.
// Protobuf is not available by name since it needs a message constructor.
func ByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", "msgpack":
		return Msgpack[V]{}, nil
	case "json":
		return JSON[V]{}, nil
	case "cbor":
		return NewCBOR[V](false)
	case "cbor-deterministic":
		return NewCBOR[V](true)
	default:
		return nil, fmt.Errorf("codec: unknown serializer %q", name)
	}
}
