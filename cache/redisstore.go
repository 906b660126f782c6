package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the blob in a single Redis string key
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{client: client, key: NamespaceKey(namespace)}
}

func (rs *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := rs.client.Get(ctx, rs.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", rs.key, err)
	}
	return data, nil
}

func (rs *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := rs.client.Set(ctx, rs.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", rs.key, err)
	}
	return nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
