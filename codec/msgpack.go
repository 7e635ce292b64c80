package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is the default Codec. The zero value is ready to use.
//
// Use `msgpack:"fieldName"` tags if you need explicit control over field names.
// Decoding into an interface value yields map[string]any for maps.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
