// Package cache keeps short-lived shared state in Redis: the catalog
// snapshot used to build prompts and the request counters of the limiter.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"alcyxob/routine-coach/internal/config"
	"alcyxob/routine-coach/internal/domain"
)

const (
	keyPrefix          = "routine-coach:"
	catalogKeyPrefix   = keyPrefix + "catalog:"
	rateLimitKeyPrefix = keyPrefix + "ratelimit:"
)

// RedisStore implements the catalog cache and the fixed-window rate limiter.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{cfg.Addr},
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.CatalogTTL, logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger.Named("redis")}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func catalogKey(limit int) string {
	return fmt.Sprintf("%s%d", catalogKeyPrefix, limit)
}

// GetCatalog returns the cached snapshot for limit. A miss or a decode
// failure reports ok=false; only transport errors are returned.
func (s *RedisStore) GetCatalog(ctx context.Context, limit int) ([]domain.Exercise, bool, error) {
	raw, err := s.client.Get(ctx, catalogKey(limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var exercises []domain.Exercise
	if err := json.Unmarshal(raw, &exercises); err != nil {
		s.logger.Warn("Dropping undecodable catalog snapshot", zap.Error(err))
		return nil, false, nil
	}
	return exercises, true, nil
}

func (s *RedisStore) SetCatalog(ctx context.Context, limit int, exercises []domain.Exercise) error {
	raw, err := json.Marshal(exercises)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, catalogKey(limit), raw, s.ttl).Err()
}

// InvalidateCatalog removes every cached snapshot regardless of limit.
func (s *RedisStore) InvalidateCatalog(ctx context.Context) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, catalogKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Allow counts a hit for key in the current fixed window. When the limit is
// exceeded it returns false and the time until the window resets. The counter
// and its expiry are written in one MULTI/EXEC so a window always ends.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	fullKey := rateLimitKeyPrefix + key

	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fullKey)
		pipe.ExpireNX(ctx, fullKey, window)
		pttl = pipe.PTTL(ctx, fullKey)
		return nil
	})
	if err != nil {
		return false, 0, err
	}

	if incr.Val() <= int64(limit) {
		return true, 0, nil
	}
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = window
	}
	return false, ttl, nil
}
