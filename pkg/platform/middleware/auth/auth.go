// Package auth guards routes with bearer access tokens.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/platform/httputil"
	"churnboard/pkg/requestcontext"
)

// queryTokenParam carries the token for EventSource clients, which cannot
// set request headers.
const queryTokenParam = "access_token"

var (
	errMissingToken = dErrors.New(dErrors.CodeUnauthorized, "missing bearer token")
	errBadToken     = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
)

// JWTValidator checks an access token and returns its claims.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the subset of token claims the middleware relies on.
type JWTClaims struct {
	UserID string
	JTI    string
}

// RequireAuth rejects requests without a valid token and puts the caller's
// user id into the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(reason string, err error) {
				attrs := []any{"reason", reason, "request_id", requestcontext.RequestID(ctx)}
				if err != nil {
					attrs = append(attrs, "error", err)
				}
				logger.WarnContext(ctx, "request rejected by auth", attrs...)
			}

			raw := bearerToken(r)
			if raw == "" {
				reject("missing token", nil)
				httputil.WriteError(w, errMissingToken)
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				reject("invalid token", err)
				httputil.WriteError(w, errBadToken)
				return
			}
			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				reject("malformed subject", err)
				httputil.WriteError(w, errBadToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}

// bearerToken prefers the Authorization header and falls back to the
// access_token query parameter.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get(queryTokenParam)
}
