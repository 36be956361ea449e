package idempotency

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed lua/reserve.lua
var luaReserve string

//go:embed lua/release.lua
var luaRelease string

const inFlightMarker = "__in_flight__"

// RedisStore shares idempotency keys across server instances.
type RedisStore struct {
	rdb        redis.UniversalClient
	ttl        time.Duration
	scrReserve *redis.Script
	scrRelease *redis.Script
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb:        rdb,
		ttl:        ttl,
		scrReserve: redis.NewScript(luaReserve),
		scrRelease: redis.NewScript(luaRelease),
	}
}

// NewRedisStoreFromURL parses a redis:// URL and checks the connection.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

func redisKey(key string) string { return fmt.Sprintf("idem:{%s}", key) }

func (s *RedisStore) Reserve(ctx context.Context, key string) (*Record, error) {
	raw, err := s.scrReserve.Run(ctx, s.rdb, []string{redisKey(key)},
		inFlightMarker, s.ttl.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return decodeStored(raw)
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.scrRelease.Run(ctx, s.rdb, []string{redisKey(key)}, inFlightMarker).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// decodeStored turns the reserve script's reply into a record.
func decodeStored(raw string) (*Record, error) {
	if raw == inFlightMarker {
		return nil, ErrInFlight
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &rec, nil
}
