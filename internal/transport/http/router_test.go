package httptransport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "churnboard/pkg/domain"
	authmw "churnboard/pkg/platform/middleware/auth"
	"churnboard/pkg/platform/middleware/request"
	"churnboard/pkg/requestcontext"
	"churnboard/pkg/testutil"
)

type stubHealth struct{ err error }

func (s stubHealth) Health(context.Context) error { return s.err }

type stubValidator struct{ userID string }

func (v stubValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &authmw.JWTClaims{UserID: v.userID, JTI: "jti"}, nil
}

type whoAmI struct{}

func (whoAmI) Register(r chi.Router) {
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.UserID(r.Context()).String()))
	})
}

func newTestRouter(health HealthChecker, userID id.UserID) http.Handler {
	return NewRouter(Dependencies{
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Health:    health,
		Validator: stubValidator{userID: userID.String()},
		Public: []func(chi.Router){func(r chi.Router) {
			r.Get("/public", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		}},
		Protected: []RouteRegistrar{whoAmI{}},
	})
}

func TestRouter(t *testing.T) {
	userID := id.NewUserID()

	testutil.Given(t, "a healthy backing store", func(t *testing.T) {
		router := newTestRouter(stubHealth{}, userID)

		testutil.When(t, "health is requested", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

			testutil.Then(t, "it reports ok with a request id", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.JSONEq(t, `{"status":"ok","redis":"ok"}`, rr.Body.String())
				assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
			})
		})

		testutil.When(t, "metrics are scraped", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))

			testutil.Then(t, "prometheus output is served", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Contains(t, rr.Body.String(), "go_goroutines")
			})
		})

		testutil.When(t, "a public route is called without a token", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/public", nil))

			testutil.Then(t, "it is served", func(t *testing.T) {
				assert.Equal(t, http.StatusNoContent, rr.Code)
			})
		})
	})

	testutil.Given(t, "an unreachable backing store", func(t *testing.T) {
		router := newTestRouter(stubHealth{err: errors.New("connection refused")}, userID)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

		testutil.Then(t, "health is degraded", func(t *testing.T) {
			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			assert.JSONEq(t, `{"status":"degraded","redis":"unreachable"}`, rr.Body.String())
		})
	})

	testutil.Given(t, "no backing store", func(t *testing.T) {
		router := newTestRouter(nil, userID)
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

		testutil.Then(t, "health is ok", func(t *testing.T) {
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
		})
	})

	testutil.Given(t, "a protected route", func(t *testing.T) {
		router := newTestRouter(nil, userID)

		testutil.When(t, "no token is sent", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/whoami", nil))
			testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
		})

		testutil.When(t, "a valid bearer token is sent", func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/whoami", nil), "good")
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the user id reaches the handler", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, userID.String(), rr.Body.String())
			})
		})

		testutil.When(t, "the token is passed as a query parameter", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/whoami?access_token=good", nil))

			testutil.Then(t, "it is accepted", func(t *testing.T) {
				assert.Equal(t, http.StatusOK, rr.Code)
			})
		})
	})
}

func TestRouter_PublicLimit(t *testing.T) {
	userID := id.NewUserID()
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := NewRouter(Dependencies{
		Logger:      slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Validator:   stubValidator{userID: userID.String()},
		PublicLimit: blocked,
		Public: []func(chi.Router){func(r chi.Router) {
			r.Get("/public", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		}},
		Protected: []RouteRegistrar{whoAmI{}},
	})

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/public", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodGet, "/whoami", nil), "good")
	rr = testutil.DoRequest(router, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
