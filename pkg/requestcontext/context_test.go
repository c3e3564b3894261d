package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "churnboard/pkg/domain"
)

func TestAccessors(t *testing.T) {
	t.Run("empty context yields zero values", func(t *testing.T) {
		ctx := context.Background()
		assert.Equal(t, id.UserID{}, UserID(ctx))
		assert.Empty(t, ClientIP(ctx))
		assert.Empty(t, UserAgent(ctx))
		assert.Empty(t, RequestID(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("values round trip", func(t *testing.T) {
		userID := id.NewUserID()
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		ctx := WithUserID(context.Background(), userID)
		ctx = WithClientMetadata(ctx, "203.0.113.9", "curl/8.0")
		ctx = WithRequestID(ctx, "req-1")
		ctx = WithTime(ctx, at)

		assert.Equal(t, userID, UserID(ctx))
		assert.Equal(t, "203.0.113.9", ClientIP(ctx))
		assert.Equal(t, "curl/8.0", UserAgent(ctx))
		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, at, Now(ctx))
	})

	t.Run("keys do not collide with plain strings", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), "request_id", "spoofed") //nolint:staticcheck
		assert.Empty(t, RequestID(ctx))
	})
}
