// Package cache provides a Redis-backed cache for resolved profile-picture
// URLs. Presigning an asset-host URL happens on every project-detail and
// user-search read; the cache amortizes that across requests. The service
// runs without it when Redis is not configured.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type AvatarCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewAvatarCache connects to Redis and verifies the connection.
func NewAvatarCache(redisURL string, ttl time.Duration) (*AvatarCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &AvatarCache{client: client, prefix: "avatar:", ttl: ttl}, nil
}

func (c *AvatarCache) key(objectKey string) string {
	return c.prefix + objectKey
}

// GetURL returns the cached URL for an object key, if present.
func (c *AvatarCache) GetURL(ctx context.Context, objectKey string) (string, bool) {
	url, err := c.client.Get(ctx, c.key(objectKey)).Result()
	if err != nil {
		return "", false
	}
	return url, true
}

// SetURL caches a resolved URL. The TTL must stay below the presigned URL's
// own expiry or the cache would serve dead links.
func (c *AvatarCache) SetURL(ctx context.Context, objectKey, url string) error {
	return c.client.Set(ctx, c.key(objectKey), url, c.ttl).Err()
}

// Invalidate drops the cached URL for an object key.
func (c *AvatarCache) Invalidate(ctx context.Context, objectKey string) error {
	return c.client.Del(ctx, c.key(objectKey)).Err()
}

func (c *AvatarCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *AvatarCache) Close() error {
	return c.client.Close()
}
