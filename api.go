package chicache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/chicache/codec"
	"github.com/unkn0wn-root/chicache/compress"
	"github.com/unkn0wn-root/chicache/driver"
)

// Builder recomputes a value on a miss or inside the early-expiry window.
type Builder[V any] func(ctx context.Context) (V, error)

// Cache is the backend-agnostic cache API. V is the caller's value type;
// []byte values are stored as-is, anything else goes through the Codec.
type Cache[V any] interface {
	Enabled() bool
	Capabilities() driver.Capabilities
	Close(context.Context) error

	// Get returns fresh and stale (inside the early window) values alike.
	// Absent or hard-expired keys return ok=false with a nil error.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// Fetch returns the cached value while it is fresh. On a miss, on hard
	// expiry and inside the early window it calls build, stores the result
	// (opts override the cache defaults) and returns it.
	Fetch(ctx context.Context, key string, build Builder[V], opts ...SetOption) (V, error)

	// Object returns the stored envelope without decoding the value.
	Object(ctx context.Context, key string) (Object, bool, error)

	Set(ctx context.Context, key string, value V, opts ...SetOption) error
	SetObject(ctx context.Context, key string, value V, opts ...SetOption) (Object, error)

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Expire sets a new hard TTL for an existing key. ok=false if absent.
	// Shrinking the TTL on a driver with native TTLs only moves the driver
	// deadline when the soft deadline still fits; the stored envelope then
	// keeps its old ExpiresAt, so Object reports an upper bound.
	Expire(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)

	// Keys lists keys matching a glob mask ('*', '?') in driver order.
	Keys(ctx context.Context, mask string) ([]string, error)

	// Erase deletes keys matching a glob mask and returns how many were removed.
	Erase(ctx context.Context, mask string) (int, error)
}

// Options configure a Cache. Only Driver is required; the rest have defaults.
// Options are read once by New and never consulted again.
type Options[V any] struct {
	// Required
	Driver driver.Driver

	Codec c.Codec[V] // nil => codec.Msgpack

	// Compressor is used for writes and for reading entries stamped with its
	// ID. Entries with another ID are read with the built-in compressors.
	// nil => compress.Gzip; an ID of compress.None is rejected.
	Compressor compress.Compressor

	// CompressThreshold compresses values whose serialized length exceeds it.
	// 0 means DefaultCompressThreshold, not "always": use 1 to compress every
	// multi-byte value, or WithCompression(true) per call. NoCompression
	// disables the size trigger.
	CompressThreshold int

	TTL      time.Duration    // hard TTL; 0 => 10m, capped at MaxTTL
	EarlyTTL time.Duration    // soft TTL; 0 => no early expiry (use WithEarlyTTL(0) per call for "immediately stale")
	Erase    EraseStrategy    // "" => best available for the driver
	Prefix   string           // prepended to every key; Keys strips it again
	Logger   Logger           // nil => NopLogger
	Hooks    Hooks            // nil => NopHooks
	Now      func() time.Time // nil => time.Now
	Disabled bool             // all reads miss, writes are dropped
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
