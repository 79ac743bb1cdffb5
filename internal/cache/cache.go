package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/next-chapter/resume-engine/internal/models"
)

// KeyPrefix namespaces every cached translation
const KeyPrefix = "translation:"

// Cache stores translation results keyed by catalog version and input
type Cache interface {
	Get(ctx context.Context, key string) (*models.TranslationResult, bool, error)
	Set(ctx context.Context, key string, result models.TranslationResult) error
	Purge(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// Key derives the cache key for in under the given catalog version.
// The athlete reference is ignored so identical experience shares one entry.
func Key(version string, in models.AthleteInput) string {
	in = in.Normalized()
	in.AthleteID = ""

	// json.Marshal of a plain struct cannot fail
	data, _ := json.Marshal(in)
	return KeyPrefix + version + ":" + strconv.FormatUint(xxhash.Sum64(data), 16)
}

// RedisCache implements Cache on Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

// Get returns the cached result for key, if any
func (c *RedisCache) Get(ctx context.Context, key string) (*models.TranslationResult, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached translation: %w", err)
	}

	var result models.TranslationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached translation: %w", err)
	}

	return &result, true, nil
}

// Set stores result under key with the configured TTL
func (c *RedisCache) Set(ctx context.Context, key string, result models.TranslationResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal translation: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache translation: %w", err)
	}

	return nil
}

// Purge removes every cached translation
func (c *RedisCache) Purge(ctx context.Context) (int, error) {
	pattern := KeyPrefix + "*"
	var cursor uint64
	var keysDeleted int

	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return keysDeleted, fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("failed to delete some keys", "error", err)
			} else {
				keysDeleted += len(keys)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	slog.Info("translation cache purged", "keys_deleted", keysDeleted)
	return keysDeleted, nil
}

// Ping verifies Redis connectivity
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Noop is a Cache that stores nothing
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.TranslationResult, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, models.TranslationResult) error { return nil }

func (Noop) Purge(context.Context) (int, error) { return 0, nil }

func (Noop) Ping(context.Context) error { return nil }

func (Noop) Close() error { return nil }
