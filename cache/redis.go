package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// Redis is a Client backed by a pooled redis connection
type Redis struct {
	rdb *redis.Client
}

// NewRedis creates the redis client. No connection is made until first use,
// the pool then keeps MinIdle connections warm.
func NewRedis(cfg Config) *Redis {
	return &Redis{
		rdb: redis.NewClient(&redis.Options{
			Addr:            cfg.Addr(),
			PoolSize:        cfg.MaxOpen,
			MinIdleConns:    cfg.MinIdle,
			ConnMaxLifetime: cfg.MaxLifetime,
			PoolTimeout:     cfg.PoolTimeout,
			DialTimeout:     cfg.PoolTimeout,
			// The reader does not retry, and neither does the cache
			MaxRetries: -1,
		}),
	}
}

// Get fetches the value for key
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		// Cache misses are expected, anything else means we could not talk
		// to redis and the caller should go without it
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: rdb.Get(%s) %v", ErrUnavailable, key, err)
	}

	if len(value) == 0 {
		return nil, false, nil
	}

	return value, true, nil
}

// Set stores value under key with no expiry; expiry is a server side policy
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	err := r.rdb.Set(ctx, key, value, 0).Err()
	if err != nil {
		return fmt.Errorf("%w: rdb.Set(%s) %v", ErrUnavailable, key, err)
	}

	return nil
}

// Ping checks that redis is reachable
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases every pooled connection
func (r *Redis) Close() error {
	err := r.rdb.Close()
	if err != nil {
		glog.Warningf("rdb.Close() %+v", err)
	}
	return err
}

// PoolStats reports how many connections are open and idle
func (r *Redis) PoolStats() (total int, idle int) {
	s := r.rdb.PoolStats()
	return int(s.TotalConns), int(s.IdleConns)
}
