package chicache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	c "github.com/unkn0wn-root/chicache/codec"
	"github.com/unkn0wn-root/chicache/compress"
	"github.com/unkn0wn-root/chicache/driver"
	"github.com/unkn0wn-root/chicache/mask"
)

type cache[V any] struct {
	drv     driver.Driver
	caps    driver.Capabilities
	obj     objectCodec[V]
	ttl     time.Duration
	early   time.Duration
	erase   EraseStrategy
	prefix  string
	log     Logger
	hooks   Hooks
	now     func() time.Time
	enabled bool
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Driver == nil {
		return nil, invalidConfig("driver is required")
	}
	if opts.TTL < 0 || opts.EarlyTTL < 0 {
		return nil, invalidConfig("negative ttl")
	}

	caps := driver.Inspect(opts.Driver)
	strategy, err := resolveErase(opts.Erase, caps)
	if err != nil {
		return nil, err
	}

	if opts.Compressor != nil && opts.Compressor.ID() == compress.None {
		return nil, invalidConfig("compressor id %d is reserved", compress.None)
	}

	threshold := coalesce(opts.CompressThreshold, DefaultCompressThreshold)
	if threshold < 0 {
		threshold = NoCompression
	}

	cc := &cache[V]{
		drv:     opts.Driver,
		caps:    caps,
		erase:   strategy,
		prefix:  opts.Prefix,
		enabled: !opts.Disabled,
		obj: objectCodec[V]{
			codec:     coalesce[c.Codec[V]](opts.Codec, c.Msgpack[V]{}),
			comp:      coalesce[compress.Compressor](opts.Compressor, compress.Gzip{}),
			threshold: threshold,
		},
	}

	// defaults
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	cc.ttl = clampTTL(coalesce(opts.TTL, DefaultTTL))
	cc.early = clampTTL(opts.EarlyTTL)
	cc.now = opts.Now
	if cc.now == nil {
		cc.now = time.Now
	}

	return cc, nil
}

func (cc *cache[V]) Enabled() bool { return cc.enabled }

func (cc *cache[V]) Capabilities() driver.Capabilities { return cc.caps }

func (cc *cache[V]) Close(ctx context.Context) error {
	return cc.drv.Close(ctx)
}

func (cc *cache[V]) key(userKey string) string { return cc.prefix + userKey }

func (cc *cache[V]) driverErr(op, key string, err error) error {
	cc.hooks.DriverError(op, err)
	return &DriverError{Op: op, Key: key, Err: err}
}

// heal deletes an entry that can no longer be served. Best effort.
func (cc *cache[V]) heal(ctx context.Context, userKey, reason string) {
	cc.hooks.SelfHeal(userKey, reason)
	if err := cc.drv.Del(ctx, cc.key(userKey)); err != nil {
		cc.log.Debug("self-heal delete failed", Fields{"key": userKey, "reason": reason, "err": err})
	}
}

// load reads and validates the envelope for key. Hard-expired and corrupt
// entries read as misses.
func (cc *cache[V]) load(ctx context.Context, key string) (Object, bool, error) {
	raw, ok, err := cc.drv.Get(ctx, cc.key(key))
	if err != nil {
		return Object{}, false, cc.driverErr("get", key, err)
	}
	if !ok {
		return Object{}, false, nil
	}
	o, err := unmarshalObject(raw)
	if err != nil {
		cc.log.Debug("dropping corrupt entry", Fields{"key": key, "err": err})
		cc.heal(ctx, key, "corrupt")
		return Object{}, false, nil
	}
	if o.State(cc.now()) == StateExpired {
		cc.heal(ctx, key, "expired")
		return Object{}, false, nil
	}
	return o, true, nil
}

func (cc *cache[V]) value(ctx context.Context, key string, o Object) (V, bool) {
	v, err := cc.obj.unpack(o)
	if err != nil {
		cc.log.Debug("dropping undecodable entry", Fields{"key": key, "err": err})
		cc.heal(ctx, key, "value_decode")
		var zero V
		return zero, false
	}
	return v, true
}

func (cc *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !cc.enabled {
		return zero, false, nil
	}
	o, ok, err := cc.load(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, ok := cc.value(ctx, key, o)
	return v, ok, nil
}

func (cc *cache[V]) Object(ctx context.Context, key string) (Object, bool, error) {
	if !cc.enabled {
		return Object{}, false, nil
	}
	return cc.load(ctx, key)
}

func (cc *cache[V]) Fetch(ctx context.Context, key string, build Builder[V], opts ...SetOption) (V, error) {
	var zero V
	if build == nil {
		return zero, errors.New("chicache: nil builder")
	}
	if !cc.enabled {
		return build(ctx)
	}

	o, ok, err := cc.load(ctx, key)
	if err != nil {
		return zero, err
	}
	stale := false
	if ok {
		if o.State(cc.now()) == StateFresh {
			if v, ok := cc.value(ctx, key, o); ok {
				return v, nil
			}
		} else {
			stale = true
		}
	}

	cc.hooks.Recompute(key, stale)
	v, err := build(ctx)
	if err != nil {
		return zero, err
	}
	if err := cc.Set(ctx, key, v, opts...); err != nil {
		cc.log.Warn("storing rebuilt value failed", Fields{"key": key, "err": err})
		return v, err
	}
	return v, nil
}

func (cc *cache[V]) Set(ctx context.Context, key string, value V, opts ...SetOption) error {
	_, err := cc.SetObject(ctx, key, value, opts...)
	return err
}

func (cc *cache[V]) SetObject(ctx context.Context, key string, value V, opts ...SetOption) (Object, error) {
	if !cc.enabled {
		return Object{}, nil
	}
	sc := cc.setConfig(opts)
	if sc.ttl <= 0 {
		return Object{}, cc.Remove(ctx, key)
	}

	o, err := cc.obj.pack(value, sc.compress)
	if err != nil {
		return Object{}, err
	}
	now := cc.now()
	o.CreatedAt = now
	o.ExpiresAt = now.Add(sc.ttl)
	if sc.hasEarly {
		o.EarlyExpiresAt = now.Add(sc.early)
		o.clampEarly()
	}

	b, err := marshalObject(o)
	if err != nil {
		return Object{}, err
	}
	if err := cc.drv.Set(ctx, cc.key(key), b, sc.ttl); err != nil {
		return Object{}, cc.driverErr("set", key, err)
	}
	return o, nil
}

func (cc *cache[V]) Remove(ctx context.Context, key string) error {
	if !cc.enabled {
		return nil
	}
	if err := cc.drv.Del(ctx, cc.key(key)); err != nil {
		return cc.driverErr("del", key, err)
	}
	return nil
}

func (cc *cache[V]) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !cc.enabled {
		return false, nil
	}
	o, ok, err := cc.load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if ttl <= 0 {
		return true, cc.Remove(ctx, key)
	}

	ttl = clampTTL(ttl)
	hard := cc.now().Add(ttl)

	// Shrinking without cutting into the soft window only needs the driver TTL.
	if ex, ok := cc.drv.(driver.Expirer); ok && !hard.After(o.ExpiresAt) &&
		(!o.HasEarly() || !o.EarlyExpiresAt.After(hard)) {
		if err := ex.Expire(ctx, cc.key(key), ttl); err != nil {
			return false, cc.driverErr("expire", key, err)
		}
		return true, nil
	}

	o.ExpiresAt = hard
	o.clampEarly()
	b, err := marshalObject(o)
	if err != nil {
		return false, err
	}
	if err := cc.drv.Set(ctx, cc.key(key), b, ttl); err != nil {
		return false, cc.driverErr("set", key, err)
	}
	return true, nil
}

func (cc *cache[V]) pattern(m string) (mask.Pattern, error) {
	p, err := mask.CompileWithPrefix(cc.prefix, m)
	if err != nil {
		return mask.Pattern{}, fmt.Errorf("chicache: mask %q: %w", m, err)
	}
	return p, nil
}

// listKeys returns physical keys matching m.
func (cc *cache[V]) listKeys(ctx context.Context, m string) ([]string, error) {
	kl, ok := cc.drv.(driver.KeyLister)
	if !ok {
		return nil, unsupported("keys")
	}
	p, err := cc.pattern(m)
	if err != nil {
		return nil, err
	}
	keys, err := kl.Keys(ctx, p)
	if err != nil {
		return nil, cc.driverErr("keys", m, err)
	}
	return keys, nil
}

func (cc *cache[V]) Keys(ctx context.Context, m string) ([]string, error) {
	if !cc.caps.Keys {
		return nil, unsupported("keys")
	}
	if !cc.enabled {
		return nil, nil
	}
	keys, err := cc.listKeys(ctx, m)
	if err != nil {
		return nil, err
	}
	if cc.prefix != "" {
		for i, k := range keys {
			keys[i] = strings.TrimPrefix(k, cc.prefix)
		}
	}
	return keys, nil
}

func (cc *cache[V]) Erase(ctx context.Context, m string) (int, error) {
	if cc.erase == EraseNone {
		return 0, unsupported("erase")
	}
	if !cc.enabled {
		return 0, nil
	}
	var (
		n   int
		err error
	)
	switch cc.erase {
	case EraseAtomic:
		n, err = cc.eraseAtomic(ctx, m)
	case EraseEnumerate:
		n, err = cc.eraseEnumerate(ctx, m)
	default:
		return 0, unsupported("erase")
	}
	if err != nil {
		return n, err
	}
	cc.hooks.Erased(m, cc.erase, n)
	cc.log.Debug("erased keys by mask", Fields{"mask": m, "strategy": string(cc.erase), "n": n})
	return n, nil
}

func (cc *cache[V]) eraseAtomic(ctx context.Context, m string) (int, error) {
	p, err := cc.pattern(m)
	if err != nil {
		return 0, err
	}
	n, err := cc.drv.(driver.AtomicEraser).EraseMatching(ctx, p)
	if err != nil {
		return 0, cc.driverErr("erase", m, err)
	}
	return n, nil
}

// eraseEnumerate is not atomic: keys written after the listing survive.
func (cc *cache[V]) eraseEnumerate(ctx context.Context, m string) (int, error) {
	keys, err := cc.listKeys(ctx, m)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, k := range keys {
		if err := cc.drv.Del(ctx, k); err != nil {
			return n, cc.driverErr("del", strings.TrimPrefix(k, cc.prefix), err)
		}
		n++
	}
	return n, nil
}
