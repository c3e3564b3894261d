package resettoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
)

const keyPrefix = "churnboard:reset:"

// RedisStore keeps reset tokens in Redis; expiry is enforced by key TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, tokenHash string, userID id.UserID, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyPrefix+tokenHash, userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	return nil
}

// Consume atomically reads and deletes the token with GETDEL.
func (s *RedisStore) Consume(ctx context.Context, tokenHash string) (id.UserID, error) {
	raw, err := s.client.GetDel(ctx, keyPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return id.UserID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.UserID{}, fmt.Errorf("consume reset token: %w", err)
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return id.UserID{}, fmt.Errorf("decode reset token owner: %w", err)
	}
	return userID, nil
}
