//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"churnboard/internal/platform/config"
	platformredis "churnboard/internal/platform/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a Redis server reached through the same client
// constructor the service uses.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
	platform  *platformredis.Client
}

// NewRedisContainer starts Redis and connects with platform/redis.New.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := platformredis.New(ctx, config.RedisConfig{URL: url})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect redis: %v", err)
	}

	// Shared through Manager for the whole test binary; Ryuk reaps it.
	return &RedisContainer{
		Container: container,
		URL:       url,
		Client:    client.Client,
		platform:  client,
	}
}

// Health runs the service health check against the container.
func (r *RedisContainer) Health(ctx context.Context) error {
	return r.platform.Health(ctx)
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
