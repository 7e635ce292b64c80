package chicache

import "time"

const (
	DefaultTTL               = 10 * time.Minute
	DefaultCompressThreshold = 64 << 10

	// NoCompression as Options.CompressThreshold never compresses.
	NoCompression = -1

	// MaxTTL caps every TTL so deadlines stay representable.
	MaxTTL = 100 * 365 * 24 * time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func clampTTL(d time.Duration) time.Duration {
	if d > MaxTTL {
		return MaxTTL
	}
	return d
}
