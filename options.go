package chicache

import "time"

// SetOption overrides the cache defaults for a single write.
type SetOption func(*setConfig)

type setConfig struct {
	ttl      time.Duration
	hasTTL   bool
	early    time.Duration
	hasEarly bool
	compress compressMode
}

// WithTTL sets the hard TTL. A ttl <= 0 removes the key instead of writing it.
func WithTTL(ttl time.Duration) SetOption {
	return func(sc *setConfig) { sc.ttl, sc.hasTTL = ttl, true }
}

// WithEarlyTTL sets the soft TTL. Unlike Options.EarlyTTL, 0 is meaningful
// here: the entry is stale from the moment it is written.
func WithEarlyTTL(early time.Duration) SetOption {
	return func(sc *setConfig) {
		if early < 0 {
			early = 0
		}
		sc.early, sc.hasEarly = early, true
	}
}

// WithCompression forces compression on or off regardless of the threshold.
// []byte values are never compressed.
func WithCompression(on bool) SetOption {
	return func(sc *setConfig) {
		if on {
			sc.compress = compressForce
		} else {
			sc.compress = compressOff
		}
	}
}

func (cc *cache[V]) setConfig(opts []SetOption) setConfig {
	sc := setConfig{ttl: cc.ttl}
	if cc.early > 0 {
		sc.early, sc.hasEarly = cc.early, true
	}
	for _, o := range opts {
		if o != nil {
			o(&sc)
		}
	}
	sc.ttl = clampTTL(sc.ttl)
	return sc
}
