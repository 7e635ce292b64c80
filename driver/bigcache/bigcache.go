// Package bigcache implements an in-process chicache driver on allegro/bigcache.
//
// BigCache has a single global LifeWindow instead of per-entry TTLs, so every
// value is stored behind an 8-byte big-endian deadline (unix nanoseconds, 0 =
// none). Get and Keys skip entries past their deadline; LifeWindow only bounds
// memory. Keys are enumerable (iterator), erasure is enumerate-then-delete.
package bigcache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/chicache/driver"
	"github.com/unkn0wn-root/chicache/mask"
)

const deadlineLen = 8

type Provider struct {
	c   *bc.BigCache
	now func() time.Time
}

var (
	_ driver.Driver    = (*Provider)(nil)
	_ driver.KeyLister = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration // should be >= the cache TTL
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow must be positive")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) expired(v []byte, now int64) bool {
	if len(v) < deadlineLen {
		return true
	}
	d := int64(binary.BigEndian.Uint64(v[:deadlineLen]))
	return d > 0 && now >= d
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if p.expired(b, p.now().UnixNano()) {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	return b[deadlineLen:], true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var deadline int64
	if ttl > 0 {
		deadline = p.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, deadlineLen+len(value))
	binary.BigEndian.PutUint64(buf[:deadlineLen], uint64(deadline))
	copy(buf[deadlineLen:], value)
	return p.c.Set(key, buf)
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Keys iterates every shard. Entries removed while iterating, or past their
// deadline, are skipped.
func (p *Provider) Keys(ctx context.Context, pt mask.Pattern) ([]string, error) {
	var out []string
	now := p.now().UnixNano()
	it := p.c.Iterator()
	for it.SetNext() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		e, err := it.Value()
		if err != nil {
			if errors.Is(err, bc.ErrInvalidIteratorState) || errors.Is(err, bc.ErrCannotRetrieveEntry) {
				continue
			}
			return out, err
		}
		if p.expired(e.Value(), now) {
			continue
		}
		if k := e.Key(); pt.Match(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (p *Provider) Len() int { return p.c.Len() }

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}
