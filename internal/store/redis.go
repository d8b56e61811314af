package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/iurnickita/posmart/internal/store/config"
)

type redisStore struct {
	client    *redis.Client
	namespace string
}

func NewRedisStore(cfg config.Config) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStore(client, cfg.Namespace), nil
}

func newRedisStore(client *redis.Client, namespace string) *redisStore {
	if namespace == "" {
		namespace = "posmart"
	}
	return &redisStore{client: client, namespace: namespace}
}

func (store *redisStore) key(key string) string {
	return store.namespace + ":" + key
}

func (store *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := store.client.Get(ctx, store.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set writes without expiry: saved carts live until deleted.
func (store *redisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := store.client.Set(ctx, store.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (store *redisStore) Delete(ctx context.Context, key string) error {
	if err := store.client.Del(ctx, store.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (store *redisStore) Close() error {
	return store.client.Close()
}
