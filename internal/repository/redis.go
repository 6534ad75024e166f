package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs the KVStore contract with Redis so state survives a
// process restart. Keys are namespaced under "swapguard:".
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: rdb,
		prefix: "swapguard:",
		// Everything this store holds is short-lived heuristic state.
		ttl: 24 * time.Hour,
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, out interface{}) error {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ErrCorrupt
	}
	return nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
