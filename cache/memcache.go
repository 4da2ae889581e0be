package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bradfitz/gomemcache/memcache"
	"golang.org/x/sync/semaphore"
)

// Memcache is a Client backed by memcached.
//
// gomemcache keeps its own idle pool but does not cap open connections or
// retire old ones, so MaxOpen is enforced here with a semaphore and
// MaxLifetime is ignored. gomemcache has no warm minimum either: MinIdle is
// passed on as its MaxIdleConns, the most idle connections kept per server,
// and nothing is dialled ahead of use.
type Memcache struct {
	mc    *memcache.Client
	slots *semaphore.Weighted
	inUse atomic.Int64
	cfg   Config
}

// NewMemcache creates the memcache client
func NewMemcache(cfg Config) *Memcache {
	mc := memcache.New(cfg.Addr())
	mc.MaxIdleConns = cfg.MinIdle
	mc.Timeout = cfg.PoolTimeout

	return &Memcache{
		mc:    mc,
		slots: semaphore.NewWeighted(int64(cfg.MaxOpen)),
		cfg:   cfg,
	}
}

func (m *Memcache) acquire(ctx context.Context) error {
	if m.cfg.PoolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.PoolTimeout)
		defer cancel()
	}

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: pool exhausted: %v", ErrUnavailable, err)
	}
	m.inUse.Add(1)
	return nil
}

func (m *Memcache) release() {
	m.inUse.Add(-1)
	m.slots.Release(1)
}

// PoolStats reports the connections in use. gomemcache does not expose its
// idle pool so idle is always 0.
func (m *Memcache) PoolStats() (total int, idle int) {
	return int(m.inUse.Load()), 0
}

// Get fetches the value for key
func (m *Memcache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, false, err
	}
	defer m.release()

	item, err := m.mc.Get(key)
	if err != nil {
		// Cache misses are expected
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: mc.Get(%s) %v", ErrUnavailable, key, err)
	}

	if len(item.Value) == 0 {
		return nil, false, nil
	}

	return item.Value, true, nil
}

// Set stores value under key with no expiry
func (m *Memcache) Set(ctx context.Context, key string, value []byte) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	err := m.mc.Set(
		&memcache.Item{
			Key:        key,
			Value:      value,
			Expiration: 0,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: mc.Set(%s) %v", ErrUnavailable, key, err)
	}

	return nil
}

// Ping checks that every memcached server is reachable
func (m *Memcache) Ping(ctx context.Context) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()

	if err := m.mc.Ping(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close is a no-op, idle memcache connections are dropped with the process
func (m *Memcache) Close() error {
	return nil
}
