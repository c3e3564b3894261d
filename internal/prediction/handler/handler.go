package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"churnboard/internal/churn"
	"churnboard/internal/churn/table"
	"churnboard/internal/prediction/service"
	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/platform/httputil"
	"churnboard/pkg/requestcontext"
)

// Service defines the prediction operations the handler needs.
type Service interface {
	Create(ctx context.Context, owner id.UserID, in service.CreateInput) (*churn.Record, error)
	Get(ctx context.Context, owner id.UserID, predictionID id.PredictionID) (*churn.Record, error)
	Table(ctx context.Context, owner id.UserID, q table.Query) ([]table.Row, error)
	Export(ctx context.Context, owner id.UserID, q table.Query) ([]table.Row, error)
}

// Handler wires prediction endpoints to the prediction service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a prediction handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts prediction endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/predictions", h.HandleCreate)
	r.Get("/predictions", h.HandleTable)
	r.Get("/predictions/export.csv", h.HandleExport)
	r.Get("/predictions/{id}", h.HandleGet)
}

type tableResponse struct {
	Rows  []table.Row `json:"rows"`
	Total int         `json:"total"`
}

// HandleCreate handles POST /predictions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreatePredictionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.Create(ctx, userID, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "prediction failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "prediction created",
		"request_id", requestID,
		"user_id", userID,
		"customer_id", rec.CustomerID,
		"model", rec.Prediction.Model,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// HandleGet handles GET /predictions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	predictionID, err := id.ParsePredictionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.service.Get(ctx, userID, predictionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleTable handles GET /predictions?q=&risk=&sort=&order=.
func (h *Handler) HandleTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	q, err := parseTableQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.service.Table(ctx, userID, q)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list predictions",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tableResponse{Rows: rows, Total: len(rows)})
}

// HandleExport handles GET /predictions/export.csv. It honours the same
// query parameters as the table.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := httputil.RequireUser(w, r)
	if !ok {
		return
	}

	q, err := parseTableQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rows, err := h.service.Export(ctx, userID, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, rows); err != nil {
		h.logger.ErrorContext(ctx, "failed to render csv",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render csv"))
		return
	}

	filename := "churn-predictions-" + requestcontext.Now(ctx).UTC().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
