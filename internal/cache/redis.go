package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/stationledger/internal/domain/models"
)

const keyPrefix = "ledger"

// RedisCache keeps JSON encoded views with a TTL and remembers the keys of each
// material in a set so that a write can drop all of them at once. A per-material
// version counter keeps a read that raced a write from caching its old view.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ SummaryCache = (*RedisCache)(nil)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Key builds a cache key for a material view, e.g. ledger:tofu:weekly:2025-W03.
func Key(material models.MaterialType, view string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, material, view)
}

func keySet(material models.MaterialType) string {
	return fmt.Sprintf("%s:%s:keys", keyPrefix, material)
}

func versionKey(material models.MaterialType) string {
	return fmt.Sprintf("%s:%s:version", keyPrefix, material)
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Version(ctx context.Context, material models.MaterialType) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}

	key := versionKey(material)
	version, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return version, nil
}

func (c *RedisCache) Set(ctx context.Context, material models.MaterialType, version int64, key string, value interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}

	vKey := versionKey(material)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStale
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			pipe.SAdd(ctx, keySet(material), key)
			return nil
		})
		return err
	}, vKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set %s: %w", key, err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, material models.MaterialType) error {
	if c == nil || c.client == nil {
		return nil
	}

	vKey := versionKey(material)
	if err := c.client.Incr(ctx, vKey).Err(); err != nil {
		return fmt.Errorf("redis incr %s: %w", vKey, err)
	}

	setKey := keySet(material)
	keys, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("redis members %s: %w", setKey, err)
	}

	if err := c.client.Del(ctx, append(keys, setKey)...).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", setKey, err)
	}

	c.logger.Debug("cache invalidated", zap.String("material", string(material)), zap.Int("keys", len(keys)))
	return nil
}
