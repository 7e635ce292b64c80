// Package ristretto implements an in-process chicache driver on dgraph-io/ristretto.
//
// Ristretto stores keys as hashes, so keys cannot be listed and mask
// operations are unsupported. Writes are admitted asynchronously and may be
// dropped under contention or by the admission policy; a dropped write reads
// back as a miss, which a cache tolerates.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/chicache/driver"
)

// CostFunc prices an entry for ristretto's MaxCost budget.
type CostFunc func(key string, value []byte) int64

type Provider struct {
	c    *rc.Cache
	cost CostFunc
}

var (
	_ driver.Driver  = (*Provider)(nil)
	_ driver.Expirer = (*Provider)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	Cost        CostFunc // nil => len(value)
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	cost := cfg.Cost
	if cost == nil {
		cost = func(_ string, v []byte) int64 { return int64(len(v)) }
	}
	return &Provider{c: c, cost: cost}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.c.SetWithTTL(key, value, p.cost(key, value), ttl)
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

// Expire re-admits the current value with the new TTL. Not atomic with
// concurrent writers.
func (p *Provider) Expire(ctx context.Context, key string, ttl time.Duration) error {
	b, ok, _ := p.Get(ctx, key)
	if !ok {
		return nil
	}
	return p.Set(ctx, key, b, ttl)
}

// Wait blocks until buffered writes are applied.
func (p *Provider) Wait() { p.c.Wait() }

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters; nil unless Config.Metrics is set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
