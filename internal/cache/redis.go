package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "cache:"

// RedisSnapshot stores collection blobs in redis. Entries never expire;
// a stale snapshot beats no snapshot when the remote store is down.
type RedisSnapshot struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisSnapshot(rdb *redis.Client, logger *zap.Logger) *RedisSnapshot {
	return &RedisSnapshot{rdb: rdb, logger: logger}
}

func (s *RedisSnapshot) Save(ctx context.Context, key string, data []byte) error {
	if err := s.rdb.Set(ctx, keyPrefix+key, data, 0).Err(); err != nil {
		s.logger.Error("Failed to save cache snapshot",
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("Cache snapshot saved",
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return nil
}

func (s *RedisSnapshot) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		s.logger.Error("Failed to load cache snapshot",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false, err
	}
	return data, true, nil
}

func (s *RedisSnapshot) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}
