package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares translations between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to the server at url and pings it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v []string
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, false, fmt.Errorf("decode cached translation: %w", err)
	}
	return v, true, nil
}

// Set writes the value only if the key is absent.
func (c *RedisCache) Set(ctx context.Context, key string, translations []string) error {
	b, err := json.Marshal(translations)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, key, b, c.ttl).Err()
}
