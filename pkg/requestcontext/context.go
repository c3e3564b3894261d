// Package requestcontext carries request-scoped values through a
// context.Context so services never import net/http. Middleware writes them;
// services, stores and loggers read them.
package requestcontext

import (
	"context"
	"time"

	id "churnboard/pkg/domain"
)

type key uint8

const (
	userIDKey key = iota
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

func lookup[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// UserID is the authenticated user, or the zero UserID outside RequireAuth.
func UserID(ctx context.Context) id.UserID {
	userID, _ := lookup[id.UserID](ctx, userIDKey)
	return userID
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ClientIP is the caller address resolved by the metadata middleware.
func ClientIP(ctx context.Context) string {
	ip, _ := lookup[string](ctx, clientIPKey)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := lookup[string](ctx, userAgentKey)
	return ua
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string {
	reqID, _ := lookup[string](ctx, requestIDKey)
	return reqID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time captured when the request started, so every timestamp
// written while serving it agrees. Kafka consumers and tests without the
// middleware get the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := lookup[time.Time](ctx, requestTimeKey); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
