// Package driver defines the backend contract used by chicache.
//
// A Driver is a byte store with TTLs. Implementations MUST be byte-for-byte
// transparent: Get returns exactly the []byte previously passed to Set for a
// key (no prepended metadata, no re-encoding). Drivers own their connections;
// the cache never dials, pools or reconnects.
//
// Capabilities beyond get/set/delete are optional interfaces discovered by type
// assertion:
//
//	Expirer       TTL refresh without a write
//	KeyLister     enumerate keys matching a mask
//	AtomicEraser  find-and-delete by mask in one round trip
//
// A driver that does not support an operation must not implement the
// interface; returning an empty result instead would hide keys from callers.
package driver

import (
	"context"
	"time"

	"github.com/unkn0wn-root/chicache/mask"
)

// Driver must be safe for concurrent use.
type Driver interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl is always positive.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources the driver owns.
	Close(ctx context.Context) error
}

// Expirer changes the TTL of an existing key without rewriting its value.
// Expiring a missing key is not an error.
type Expirer interface {
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// KeyLister returns the keys matching p in whatever order the backend yields.
type KeyLister interface {
	Keys(ctx context.Context, p mask.Pattern) ([]string, error)
}

// AtomicEraser deletes every key matching p in a single atomic step and returns
// the number of keys removed.
type AtomicEraser interface {
	EraseMatching(ctx context.Context, p mask.Pattern) (int, error)
}

// Capabilities describes which optional interfaces a driver implements.
type Capabilities struct {
	Expire      bool
	Keys        bool
	AtomicErase bool
}

// Inspect reports the capabilities of d.
func Inspect(d Driver) Capabilities {
	_, ex := d.(Expirer)
	_, kl := d.(KeyLister)
	_, ae := d.(AtomicEraser)
	return Capabilities{Expire: ex, Keys: kl, AtomicErase: ae}
}
