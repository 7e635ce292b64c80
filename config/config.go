// Package config loads a chicache setup from YAML and builds the driver and
// cache it describes.
//
//	driver: redis-cluster
//	servers: 10.0.0.1:7000,10.0.0.2:7000
//	ttl: 1h
//	early_ttl: 50m
//	strategy_of_erase: lua
//	serializer: msgpack
//	compression: zstd
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/chicache"
	"github.com/unkn0wn-root/chicache/codec"
	"github.com/unkn0wn-root/chicache/compress"
	"github.com/unkn0wn-root/chicache/driver"
	bcdriver "github.com/unkn0wn-root/chicache/driver/bigcache"
	boltdriver "github.com/unkn0wn-root/chicache/driver/bolt"
	mcdriver "github.com/unkn0wn-root/chicache/driver/memcache"
	redisdriver "github.com/unkn0wn-root/chicache/driver/redis"
	rdriver "github.com/unkn0wn-root/chicache/driver/ristretto"
)

// Driver names accepted in the "driver" key.
const (
	DriverRedis        = "redis"
	DriverRedisCluster = "redis-cluster"
	DriverMemcache     = "memcache"
	DriverBigCache     = "bigcache"
	DriverRistretto    = "ristretto"
	DriverBolt         = "bolt"
)

const defaultMemoryMB = 64

type Config struct {
	Driver   string `yaml:"driver"`
	Servers  string `yaml:"servers"` // "host:port,host:port"
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Path     string `yaml:"path,omitempty"`      // bolt file
	MemoryMB int    `yaml:"memory_mb,omitempty"` // bigcache/ristretto budget; 0 => 64

	TTL               time.Duration `yaml:"ttl,omitempty"`
	EarlyTTL          time.Duration `yaml:"early_ttl,omitempty"`
	CompressThreshold int           `yaml:"compress_threshold,omitempty"`
	StrategyOfErase   string        `yaml:"strategy_of_erase,omitempty"`
	Serializer        string        `yaml:"serializer,omitempty"`
	Compression       string        `yaml:"compression,omitempty"`
	Prefix            string        `yaml:"prefix,omitempty"`
	Disabled          bool          `yaml:"disabled,omitempty"`
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a single YAML document. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverRedis
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = defaultMemoryMB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverRedis, DriverRedisCluster, DriverMemcache:
		if _, err := ParseServers(c.Servers); err != nil {
			return err
		}
	case DriverBigCache, DriverRistretto:
	case DriverBolt:
		if c.Path == "" {
			return fmt.Errorf("config: driver %q needs path", c.Driver)
		}
	default:
		return fmt.Errorf("config: unknown driver %q", c.Driver)
	}
	if c.TTL < 0 || c.EarlyTTL < 0 {
		return errors.New("config: ttl must not be negative")
	}
	if _, err := chicache.ParseEraseStrategy(c.StrategyOfErase); err != nil {
		return err
	}
	if _, err := compress.ByName(c.Compression); err != nil {
		return err
	}
	return nil
}

// Endpoint is one host:port pair from the servers string.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string { return net.JoinHostPort(e.Host, strconv.Itoa(e.Port)) }

// ParseServers splits "host:port,host:port" into endpoints. IPv6 hosts use
// brackets: "[::1]:6379".
func ParseServers(s string) ([]Endpoint, error) {
	var out []Endpoint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		host, port, err := net.SplitHostPort(part)
		if err != nil {
			return nil, fmt.Errorf("config: server %q: %w", part, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("config: server %q: invalid port", part)
		}
		if host == "" {
			return nil, fmt.Errorf("config: server %q: missing host", part)
		}
		out = append(out, Endpoint{Host: host, Port: p})
	}
	if len(out) == 0 {
		return nil, errors.New("config: no servers")
	}
	return out, nil
}

func addrs(eps []Endpoint) []string {
	out := make([]string, len(eps))
	for i, e := range eps {
		out[i] = e.String()
	}
	return out
}

// OpenDriver constructs the configured driver. The driver owns any client it
// creates and releases it on Close.
func (c *Config) OpenDriver(ctx context.Context) (driver.Driver, error) {
	switch c.Driver {
	case DriverRedis:
		eps, err := ParseServers(c.Servers)
		if err != nil {
			return nil, err
		}
		if len(eps) > 1 {
			return nil, fmt.Errorf("config: driver %q takes one server, use %q for several", c.Driver, DriverRedisCluster)
		}
		rdb := goredis.NewClient(&goredis.Options{Addr: eps[0].String(), Password: c.Password, DB: c.DB})
		return opened(redisdriver.New(redisdriver.Config{Client: rdb, CloseClient: true}))

	case DriverRedisCluster:
		eps, err := ParseServers(c.Servers)
		if err != nil {
			return nil, err
		}
		rdb := goredis.NewClusterClient(&goredis.ClusterOptions{Addrs: addrs(eps), Password: c.Password})
		return opened(redisdriver.New(redisdriver.Config{Client: rdb, CloseClient: true}))

	case DriverMemcache:
		eps, err := ParseServers(c.Servers)
		if err != nil {
			return nil, err
		}
		return opened(mcdriver.New(mcdriver.Config{Servers: addrs(eps)}))

	case DriverBigCache:
		life := c.TTL
		if life <= 0 {
			life = chicache.DefaultTTL
		}
		return opened(bcdriver.New(ctx, bcdriver.Config{LifeWindow: life, HardMaxCacheSizeMB: c.memoryMB()}))

	case DriverRistretto:
		maxCost := int64(c.memoryMB()) << 20
		return opened(rdriver.New(rdriver.Config{NumCounters: 1 << 20, MaxCost: maxCost, BufferItems: 64}))

	case DriverBolt:
		return opened(boltdriver.Open(boltdriver.Config{Path: c.Path, CleanupInterval: time.Minute}))

	default:
		return nil, fmt.Errorf("config: unknown driver %q", c.Driver)
	}
}

func (c *Config) memoryMB() int {
	if c.MemoryMB <= 0 {
		return defaultMemoryMB
	}
	return c.MemoryMB
}

// opened keeps a failed constructor from yielding a typed-nil driver.
func opened[D driver.Driver](d D, err error) (driver.Driver, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

// NewCache opens the driver and wraps it in a cache for V. The driver is
// closed again if the cache cannot be built.
func NewCache[V any](ctx context.Context, cfg *Config, log chicache.Logger, hooks chicache.Hooks) (chicache.Cache[V], error) {
	cd, err := codec.ByName[V](cfg.Serializer)
	if err != nil {
		return nil, err
	}
	comp, err := compress.ByName(cfg.Compression)
	if err != nil {
		return nil, err
	}
	strategy, err := chicache.ParseEraseStrategy(cfg.StrategyOfErase)
	if err != nil {
		return nil, err
	}

	drv, err := cfg.OpenDriver(ctx)
	if err != nil {
		return nil, err
	}
	cache, err := chicache.New[V](chicache.Options[V]{
		Driver:            drv,
		Codec:             cd,
		Compressor:        comp,
		TTL:               cfg.TTL,
		EarlyTTL:          cfg.EarlyTTL,
		CompressThreshold: cfg.CompressThreshold,
		Erase:             strategy,
		Prefix:            cfg.Prefix,
		Logger:            log,
		Hooks:             hooks,
		Disabled:          cfg.Disabled,
	})
	if err != nil {
		_ = drv.Close(ctx)
		return nil, err
	}
	return cache, nil
}
