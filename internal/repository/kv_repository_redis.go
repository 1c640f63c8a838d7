package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
)

type RedisKeyValueRepository struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisKeyValueRepository(client redis.UniversalClient, prefix string) *RedisKeyValueRepository {
	if prefix == "" {
		prefix = "alumni_portal"
	}
	return &RedisKeyValueRepository{client: client, prefix: prefix}
}

func (r *RedisKeyValueRepository) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.dataKey(key)).Result()
	if err == redis.Nil {
		observability.RecordStorageOperation(ctx, "redis", "get", "miss")
		return "", ErrKeyNotFound
	}
	if err != nil {
		observability.RecordStorageOperation(ctx, "redis", "get", "error")
		return "", err
	}
	observability.RecordStorageOperation(ctx, "redis", "get", "hit")
	return v, nil
}

func (r *RedisKeyValueRepository) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.dataKey(key), value, 0).Err(); err != nil {
		observability.RecordStorageOperation(ctx, "redis", "set", "error")
		return err
	}
	observability.RecordStorageOperation(ctx, "redis", "set", "success")
	return nil
}

func (r *RedisKeyValueRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	dataKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		dataKeys = append(dataKeys, r.dataKey(k))
	}
	if err := r.client.Del(ctx, dataKeys...).Err(); err != nil {
		observability.RecordStorageOperation(ctx, "redis", "delete", "error")
		return err
	}
	observability.RecordStorageOperation(ctx, "redis", "delete", "success")
	return nil
}

func (r *RedisKeyValueRepository) Close() error {
	return r.client.Close()
}

func (r *RedisKeyValueRepository) dataKey(key string) string {
	return fmt.Sprintf("%s:storage:%s", r.prefix, key)
}
