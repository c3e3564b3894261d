// Package requesttime pins one "now" per HTTP request; see requestcontext.Now.
package requesttime

import (
	"net/http"
	"time"

	"churnboard/pkg/requestcontext"
)

// Middleware stamps each request with the wall clock in UTC.
var Middleware = WithClock(time.Now)

// WithClock stamps requests using clock.
func WithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), clock().UTC())))
		})
	}
}
