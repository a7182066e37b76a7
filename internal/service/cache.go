package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const metadataKeyPrefix = "nft:metadata:"

// RedisMetadataCache is a MetadataCache backed by Redis
type RedisMetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping redis")
	}
	return client, nil
}

// NewRedisMetadataCache creates a cache whose entries expire after ttl
func NewRedisMetadataCache(client *redis.Client, ttl time.Duration) *RedisMetadataCache {
	return &RedisMetadataCache{client: client, ttl: ttl}
}

// Get returns the cached document for key. ok is false on a miss.
func (c *RedisMetadataCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := c.client.Get(ctx, metadataKeyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to get metadata")
	}
	return json.RawMessage(data), true, nil
}

// Set stores value under key
func (c *RedisMetadataCache) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := c.client.Set(ctx, metadataKeyPrefix+key, []byte(value), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save metadata")
	}
	return nil
}
