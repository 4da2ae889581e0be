package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Maintains a list of constants that determine the type of content held in a
// key. A single item type may have several kinds of cached data.
const (
	CacheList int = 1
)

// Backends understood by New
const (
	BackendRedis    = "redis"
	BackendMemcache = "memcache"
)

// ErrUnavailable is returned when a connection to the cache service cannot be
// acquired, either because the pool is exhausted or the service is down. It
// is not a data error.
var ErrUnavailable = errors.New("cache unavailable")

// Client is a byte oriented key value cache
type Client interface {
	// Get returns found == false with a nil error on a genuine miss
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// PoolStatter is implemented by clients that can report on their pool
type PoolStatter interface {
	PoolStats() (total int, idle int)
}

// Config bounds the connection pool of a cache client
type Config struct {
	Host string
	Port int64

	// MaxOpen caps the number of connections in use at once
	MaxOpen int
	// MinIdle is the number of idle connections kept around
	MinIdle int
	// MaxLifetime retires a connection after it has been open this long
	MaxLifetime time.Duration
	// PoolTimeout is how long to wait for a connection before giving up
	PoolTimeout time.Duration
}

// DefaultConfig returns the pool bounds used when none are configured
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        6379,
		MaxOpen:     16,
		MinIdle:     8,
		MaxLifetime: 60 * time.Second,
		PoolTimeout: time.Second,
	}
}

// Addr is host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// New creates the cache client for the named backend
func New(backend string, cfg Config) (Client, error) {
	if cfg.MaxOpen < 1 {
		return nil, fmt.Errorf("cache pool needs at least one connection, got %d", cfg.MaxOpen)
	}
	if cfg.MinIdle > cfg.MaxOpen {
		return nil, fmt.Errorf(
			"cache min idle (%d) cannot exceed max open (%d)",
			cfg.MinIdle,
			cfg.MaxOpen,
		)
	}

	switch backend {
	case BackendRedis, "":
		return NewRedis(cfg), nil
	case BackendMemcache:
		return NewMemcache(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
