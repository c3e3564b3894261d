package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"churnboard/internal/explain"
)

const rankingKeyPrefix = "churnboard:ranking:"

// Redis shares rankings between instances. Values are JSON with a TTL so a
// refreshed model export is picked up eventually.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed ranking cache. ttl <= 0 keeps entries
// until evicted.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get returns the cached result for key, or false when absent.
func (r *Redis) Get(ctx context.Context, key string) (*explain.Result, bool, error) {
	raw, err := r.client.Get(ctx, rankingKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get ranking %s: %w", key, err)
	}
	var res explain.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("decode ranking %s: %w", key, err)
	}
	return &res, true, nil
}

// SetIfAbsent stores res under key with SET NX.
func (r *Redis) SetIfAbsent(ctx context.Context, key string, res *explain.Result) (bool, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return false, fmt.Errorf("encode ranking %s: %w", key, err)
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	stored, err := r.client.SetNX(ctx, rankingKeyPrefix+key, raw, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set ranking %s: %w", key, err)
	}
	return stored, nil
}
