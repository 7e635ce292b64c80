package codec

// Bytes is an identity codec for []byte values. The cache stores []byte
// values unserialized on its own; Bytes is for wrapping in LimitCodec or for
// callers that want the codec path explicitly.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores Go strings as their UTF-8 bytes without validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
