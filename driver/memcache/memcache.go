// Package memcache implements a chicache driver on the memcache text protocol.
//
// Memcache has no key enumeration, so this driver implements neither
// driver.KeyLister nor driver.AtomicEraser; Keys and Erase on a cache built on
// it fail with chicache.ErrUnsupported.
package memcache

import (
	"context"
	"errors"
	"math"
	"time"

	mc "github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/chicache/driver"
)

var ErrNoServers = errors.New("memcache driver: no servers")

// relativeLimit is the largest expiration memcache takes as relative seconds;
// larger values are read as a unix timestamp.
const relativeLimit = 30 * 24 * time.Hour

type Memcache struct {
	c   *mc.Client
	now func() time.Time
}

var (
	_ driver.Driver  = (*Memcache)(nil)
	_ driver.Expirer = (*Memcache)(nil)
)

type Config struct {
	Servers      []string      // host:port; keys are spread by the client's server selector
	Timeout      time.Duration // socket read/write timeout; 0 => client default
	MaxIdleConns int           // 0 => client default
}

func New(cfg Config) (*Memcache, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	c := mc.New(cfg.Servers...)
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.MaxIdleConns > 0 {
		c.MaxIdleConns = cfg.MaxIdleConns
	}
	return &Memcache{c: c, now: time.Now}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(c *mc.Client) *Memcache { return &Memcache{c: c, now: time.Now} }

func (p *Memcache) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.c.Get(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Memcache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return p.c.Set(&mc.Item{Key: key, Value: value, Expiration: p.expiration(ttl)})
}

func (p *Memcache) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil
	}
	return err
}

// Expire uses TOUCH.
func (p *Memcache) Expire(_ context.Context, key string, ttl time.Duration) error {
	err := p.c.Touch(key, p.expiration(ttl))
	if errors.Is(err, mc.ErrCacheMiss) {
		return nil
	}
	return err
}

func (p *Memcache) Close(context.Context) error { return nil }

// expiration converts ttl into memcache's expiration field: whole seconds
// (rounded up) up to 30 days, an absolute unix time beyond that, and 0 (never)
// when the absolute time does not fit in 32 bits.
func (p *Memcache) expiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl <= relativeLimit {
		return int32((ttl + time.Second - 1) / time.Second)
	}
	at := p.now().Add(ttl).Unix()
	if at > math.MaxInt32 {
		return 0
	}
	return int32(at)
}
