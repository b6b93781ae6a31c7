package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a two-tier store: an in-process L1 map in front of Redis (L2).
// Keys never expire; the cache is append-only.
type Redis struct {
	l1     sync.Map // key → []byte
	rdb    *redis.Client
	prefix string
}

// OpenRedis connects to redisURL and scopes keys under namespace.
func OpenRedis(ctx context.Context, redisURL, namespace string) (*Redis, error) {
	if redisURL == "" {
		return nil, errors.New("store: redis backend needs CACHE_URL")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: invalid redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("store: redis unreachable: %w", err)
	}
	slog.Debug("store: redis connected", slog.String("addr", opts.Addr), slog.String("namespace", namespace))
	return &Redis{rdb: rdb, prefix: "yts:" + namespace + ":"}, nil
}

func (r *Redis) Upsert(ctx context.Context, key string, fill FillFunc) ([]byte, bool, error) {
	if v, ok := r.l1.Load(key); ok {
		return v.([]byte), false, nil
	}

	rk := r.prefix + key
	data, err := r.rdb.Get(ctx, rk).Bytes()
	switch {
	case err == nil:
		r.l1.Store(key, data)
		return data, false, nil
	case !errors.Is(err, redis.Nil):
		return nil, false, fmt.Errorf("store: redis get %q: %w", key, err)
	}

	v, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	set, err := r.rdb.SetNX(ctx, rk, v, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("store: redis set %q: %w", key, err)
	}
	if !set {
		stored, err := r.rdb.Get(ctx, rk).Bytes()
		if err != nil {
			return nil, false, fmt.Errorf("store: redis get %q: %w", key, err)
		}
		r.l1.Store(key, stored)
		return stored, false, nil
	}
	r.l1.Store(key, v)
	return v, true, nil
}

// Len counts keys under the namespace with SCAN.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("store: redis scan: %w", err)
	}
	return n, nil
}

func (r *Redis) Flush(context.Context) error { return nil }

func (r *Redis) Close() error { return r.rdb.Close() }
