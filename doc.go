// Package chicache is a backend-agnostic cache façade with soft expiry.
//
// Every value is wrapped in an envelope (Object) carrying its creation time,
// a hard expiry and an optional early (soft) expiry. Inside the early window
// Get still returns the value, while Fetch treats it as a miss and rebuilds
// it through the caller's Builder. Concurrent rebuilds are not coordinated;
// the last write wins.
//
// Components:
//   - Driver: byte store with TTL (Redis, Memcached, BigCache, Ristretto, bbolt).
//     Key listing, atomic mask erase and TTL refresh are optional capabilities.
//   - Codec[V]: (de)serializes V <-> []byte. []byte values bypass it.
//   - Compressor: applied to serialized payloads above a size threshold.
//
// Masks:
//
//	cache.Keys(ctx, "user:*:profile")  // '*' any run, '?' one character
//	cache.Erase(ctx, "user:42:*")      // atomic or enumerate-then-delete
//
// Rebuild pattern:
//
//	u, err := cache.Fetch(ctx, "user:42", func(ctx context.Context) (User, error) {
//	    return db.LoadUser(ctx, 42)
//	}, chicache.WithTTL(time.Hour), chicache.WithEarlyTTL(50*time.Minute))
package chicache
