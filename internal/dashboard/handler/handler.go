package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"churnboard/internal/dashboard"
	"churnboard/internal/live"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/httputil"
	"churnboard/pkg/requestcontext"
)

// Service builds an owner's dashboard.
type Service interface {
	Dashboard(ctx context.Context, owner id.UserID) (*dashboard.View, error)
}

// Handler serves the dashboard and its live stream.
type Handler struct {
	service Service
	hub     *live.Hub
	logger  *slog.Logger
}

func New(service Service, hub *live.Hub, logger *slog.Logger) *Handler {
	return &Handler{service: service, hub: hub, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard", h.HandleDashboard)
	r.Get("/dashboard/stream", h.HandleStream)
}

// HandleDashboard handles GET /dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	view, err := h.service.Dashboard(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build dashboard",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleStream handles GET /dashboard/stream. The current dashboard is sent
// first, then a fresh one after every stored prediction.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	// Subscribe before the first snapshot is built so no change made while
	// it is computed goes unbroadcast.
	client := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(client)

	view, err := h.service.Dashboard(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build initial stream snapshot",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.hub.Prime(client, live.Message{Event: live.EventSnapshot, Data: view})

	h.logger.InfoContext(ctx, "dashboard stream opened",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"client_id", client.ID,
	)
	h.hub.Serve(w, r, client)
}
