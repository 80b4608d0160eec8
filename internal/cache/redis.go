// Package cache keeps hot read paths off Postgres. Today that is the
// latest-publish pointer per project, which the dashboard polls.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leaflet/api/internal/store"
)

// ErrMiss is returned when no cached value exists for a project.
var ErrMiss = fmt.Errorf("cache miss")

// PublishCache stores the most recent publish per project with a TTL, so a
// stale entry ages out even if invalidation is missed.
type PublishCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPublishCache(redisURL string) (*PublishCache, error) {
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

	return &PublishCache{
		client: client,
		prefix: "publish:latest:",
		ttl:    6 * time.Hour,
	}, nil
}

func (c *PublishCache) key(projectID string) string {
	return c.prefix + projectID
}

// SetLatest replaces the cached pointer after a successful publish.
func (c *PublishCache) SetLatest(ctx context.Context, projectID string, publish store.Publish) error {
	jsonData, err := json.Marshal(publish)
	if err != nil {
		return fmt.Errorf("marshal publish: %w", err)
	}
	if err := c.client.Set(ctx, c.key(projectID), jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache latest publish: %w", err)
	}
	return nil
}

// GetLatest returns the cached latest publish, or ErrMiss when the entry is
// absent or expired.
func (c *PublishCache) GetLatest(ctx context.Context, projectID string) (store.Publish, error) {
	jsonData, err := c.client.Get(ctx, c.key(projectID)).Result()
	if err == redis.Nil {
		return store.Publish{}, ErrMiss
	}
	if err != nil {
		return store.Publish{}, fmt.Errorf("lookup latest publish: %w", err)
	}

	var publish store.Publish
	if err := json.Unmarshal([]byte(jsonData), &publish); err != nil {
		return store.Publish{}, fmt.Errorf("unmarshal publish: %w", err)
	}
	return publish, nil
}

// Invalidate drops the pointer, for example when a project is deleted.
func (c *PublishCache) Invalidate(ctx context.Context, projectID string) error {
	if err := c.client.Del(ctx, c.key(projectID)).Err(); err != nil {
		return fmt.Errorf("invalidate latest publish: %w", err)
	}
	return nil
}

func (c *PublishCache) Close() error {
	return c.client.Close()
}

func (c *PublishCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
