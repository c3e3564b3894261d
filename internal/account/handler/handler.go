package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"churnboard/internal/account"
	"churnboard/internal/account/service"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/httputil"
	"churnboard/pkg/requestcontext"
)

// Service defines the account operations the handler needs.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*account.User, error)
	Login(ctx context.Context, email, password string) (*account.Session, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	Profile(ctx context.Context, userID id.UserID) (*account.Profile, error)
	UpdateProfile(ctx context.Context, userID id.UserID, upd service.ProfileUpdate) (*account.Profile, error)
	Settings(ctx context.Context, userID id.UserID) (*account.Settings, error)
	UpdateSettings(ctx context.Context, userID id.UserID, settings account.Settings) (*account.Settings, error)
}

// Handler serves the auth and /me endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the endpoints that work without a token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/password-reset", h.HandlePasswordReset)
	r.Post("/auth/password-reset/confirm", h.HandlePasswordResetConfirm)
}

// Register mounts the endpoints of the signed-in user.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me", h.HandleGetProfile)
	r.Patch("/me", h.HandleUpdateProfile)
	r.Get("/me/settings", h.HandleGetSettings)
	r.Put("/me/settings", h.HandleUpdateSettings)
}

type registerResponse struct {
	UserID id.UserID `json:"user_id"`
}

type passwordResetResponse struct {
	ResetToken string `json:"reset_token,omitempty"`
}

// HandleRegister handles POST /auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	u, err := h.service.Register(ctx, req.ToInput())
	if err != nil {
		h.logger.WarnContext(ctx, "registration failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, registerResponse{UserID: u.ID})
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// HandlePasswordReset handles POST /auth/password-reset. It answers 202 for
// known and unknown addresses alike.
func (h *Handler) HandlePasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PasswordResetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token, err := h.service.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		h.logger.ErrorContext(ctx, "password reset request failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, passwordResetResponse{ResetToken: token})
}

// HandlePasswordResetConfirm handles POST /auth/password-reset/confirm.
func (h *Handler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PasswordResetConfirmRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.ConfirmPasswordReset(ctx, req.Token, req.Password); err != nil {
		h.logger.WarnContext(ctx, "password reset failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetProfile handles GET /me.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load profile", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleUpdateProfile handles PATCH /me.
func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateProfileRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	profile, err := h.service.UpdateProfile(ctx, userID, req.ToUpdate())
	if err != nil {
		h.logFailure(ctx, "failed to update profile", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleGetSettings handles GET /me/settings.
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	settings, err := h.service.Settings(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load settings", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings handles PUT /me/settings.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SettingsRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	settings, err := h.service.UpdateSettings(ctx, userID, req.ToSettings())
	if err != nil {
		h.logFailure(ctx, "failed to update settings", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

func (h *Handler) logFailure(ctx context.Context, msg string, userID id.UserID, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"error", err,
	)
}
