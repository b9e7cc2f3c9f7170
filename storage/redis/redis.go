package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"truckmitr/config"
	"truckmitr/pkg/logger"
	"truckmitr/storage"
)

const keyPrefix = "truckmitr:"

type kvRepo struct {
	rdb *goredis.Client
	log logger.ILogger
}

func Connect(ctx context.Context, cfg config.Config, log logger.ILogger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("redis ping failed", logger.Error(err))
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Info("Redis connected", logger.String("addr", cfg.RedisAddr()))
	return rdb, nil
}

func NewKVRepo(rdb *goredis.Client, log logger.ILogger) storage.IKeyValueStorage {
	return &kvRepo{rdb: rdb, log: log}
}

func (r *kvRepo) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", storage.ErrNotFound
		}
		r.log.Error("failed to get key", logger.String("key", key), logger.Error(err))
		return "", err
	}
	return val, nil
}

func (r *kvRepo) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		r.log.Error("failed to set key", logger.String("key", key), logger.Error(err))
		return err
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	return r.rdb.Del(ctx, full...).Err()
}

func (r *kvRepo) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, keyPrefix+prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			out = append(out, k[len(keyPrefix):])
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}
