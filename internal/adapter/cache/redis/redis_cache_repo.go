package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/port/cache"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 200

type redisCacheRepository struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
}

func NewRedisClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", zap.String("address", cfg.Address), zap.Error(err))
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}
	logger.Info("Successfully connected to Redis", zap.String("address", cfg.Address))
	return rdb, nil
}

// NewRedisCacheRepository prefixes every key with namespace so several
// gateways can share one Redis database.
func NewRedisCacheRepository(client *redis.Client, namespace string, logger *zap.Logger) cache.CacheRepository {
	return &redisCacheRepository{
		client:    client,
		namespace: namespace,
		logger:    logger.Named("RedisCache"),
	}
}

func (r *redisCacheRepository) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

func (r *redisCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		r.logger.Error("Redis Get operation failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("redisCacheRepository.Get for key '%s': %w", key, err)
	}
	return val, nil
}

func (r *redisCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.logger.Error("Redis Set operation failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redisCacheRepository.Set for key '%s': %w", key, err)
	}
	r.logger.Debug("Redis Set operation successful", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (r *redisCacheRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.logger.Error("Redis Del operation failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("redisCacheRepository.Delete for key '%s': %w", key, err)
	}
	return nil
}

func (r *redisCacheRepository) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := r.key(prefix) + "*"
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()

	batch := make([]string, 0, scanBatch)
	removed := 0
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redisCacheRepository.DeletePrefix for '%s': %w", prefix, err)
			}
			removed += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.logger.Error("Redis Scan operation failed", zap.String("pattern", pattern), zap.Error(err))
		return fmt.Errorf("redisCacheRepository.DeletePrefix scan for '%s': %w", prefix, err)
	}
	if len(batch) > 0 {
		if err := r.client.Unlink(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redisCacheRepository.DeletePrefix for '%s': %w", prefix, err)
		}
		removed += len(batch)
	}
	r.logger.Debug("Redis prefix invalidated", zap.String("prefix", prefix), zap.Int("removed", removed))
	return nil
}
