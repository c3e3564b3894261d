// Package httptransport assembles the HTTP router: shared middleware,
// operational endpoints and the feature handlers behind authentication.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"churnboard/internal/platform/metrics"
	platformmw "churnboard/internal/platform/middleware"
	"churnboard/pkg/platform/httputil"
	authmw "churnboard/pkg/platform/middleware/auth"
	"churnboard/pkg/platform/middleware/metadata"
	"churnboard/pkg/platform/middleware/request"
	"churnboard/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouteRegistrar mounts a feature's routes.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// Dependencies are the pieces NewRouter wires together. Health and
// PublicLimit may be nil.
type Dependencies struct {
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
	Health           HealthChecker
	Validator        authmw.JWTValidator
	TrustedProxyHops int
	PublicLimit      func(http.Handler) http.Handler
	Public           []func(r chi.Router)
	Protected        []RouteRegistrar
}

// NewRouter builds the service handler.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(deps.TrustedProxyHops))
	r.Use(platformmw.Observe(deps.Logger, deps.Metrics))

	r.Get("/health", healthHandler(deps.Health, deps.Logger))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.PublicLimit != nil {
			r.Use(deps.PublicLimit)
		}
		for _, register := range deps.Public {
			register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(deps.Validator, deps.Logger))
		for _, registrar := range deps.Protected {
			registrar.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
}

func healthHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := checker.Health(ctx); err != nil {
			logger.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Redis: "unreachable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Redis: "ok"})
	}
}
