package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"churnboard/internal/explain"
	"churnboard/pkg/platform/httputil"
	"churnboard/pkg/requestcontext"
)

// Service defines the explanation operations the handler needs.
type Service interface {
	Ranking(ctx context.Context, model string, mode explain.Mode) (*explain.Result, error)
	Importance(ctx context.Context, model string) ([]explain.Importance, error)
}

// Handler wires model-explanation endpoints to the explain service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an explain handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts explain endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/explain/{model}/ranking", h.HandleRanking)
	r.Get("/explain/{model}/importance", h.HandleImportance)
}

type importanceResponse struct {
	Model    string               `json:"model"`
	Features []explain.Importance `json:"features"`
}

// HandleRanking handles GET /explain/{model}/ranking?mode=sync|offloaded.
func (h *Handler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	if _, ok := httputil.RequireUser(w, r); !ok {
		return
	}

	model := chi.URLParam(r, "model")
	mode := explain.Mode(r.URL.Query().Get("mode"))

	res, err := h.service.Ranking(ctx, model, mode)
	if err != nil {
		h.logger.ErrorContext(ctx, "feature ranking failed",
			"request_id", requestID,
			"model", model,
			"mode", mode,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "feature ranking served",
		"request_id", requestID,
		"model", model,
		"mode", res.Mode,
		"features", len(res.SortedFeatureNames),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleImportance handles GET /explain/{model}/importance.
func (h *Handler) HandleImportance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if _, ok := httputil.RequireUser(w, r); !ok {
		return
	}

	model := chi.URLParam(r, "model")
	features, err := h.service.Importance(ctx, model)
	if err != nil {
		h.logger.ErrorContext(ctx, "feature importance failed",
			"request_id", requestID,
			"model", model,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, importanceResponse{Model: model, Features: features})
}
