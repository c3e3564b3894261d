// Package service orchestrates predictions: it calls the predictor, stores
// the record and announces it to live dashboards.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"churnboard/internal/churn"
	"churnboard/internal/churn/table"
	"churnboard/internal/prediction/metrics"
	"churnboard/internal/prediction/predictor"
	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/requestcontext"
)

// Store persists prediction records.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	NextCustomerID(ctx context.Context) (int64, error)
	Append(ctx context.Context, rec *churn.Record) error
	FindByID(ctx context.Context, owner id.UserID, predictionID id.PredictionID) (*churn.Record, error)
	ListByOwner(ctx context.Context, owner id.UserID, filter churn.Filter) ([]churn.Record, error)
}

// Predictor scores one feature vector.
type Predictor interface {
	Predict(ctx context.Context, req predictor.Request) (*predictor.Response, error)
}

// Defaults supplies a user's preferred model and threshold type.
type Defaults interface {
	PredictionDefaults(ctx context.Context, userID id.UserID) (model, thresholdType string, err error)
}

// Publisher announces stored records.
type Publisher interface {
	Publish(ctx context.Context, ev churn.Event) error
}

// CreateInput is a validated prediction form. Empty Model and ThresholdType
// fall back to the user's settings.
type CreateInput struct {
	Customer      churn.CustomerInfo
	Features      churn.Features
	Model         string
	ThresholdType string
}

// Service creates and lists predictions.
type Service struct {
	store     Store
	predictor Predictor
	defaults  Defaults
	publisher Publisher

	defaultModel         string
	defaultThresholdType string

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDefaults consults d for a user's preferred model and threshold type.
func WithDefaults(d Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithPublisher announces every stored record through p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithFallbackSettings sets the model and threshold type used when neither
// the form nor the user's settings name one.
func WithFallbackSettings(model, thresholdType string) Option {
	return func(s *Service) {
		s.defaultModel = model
		s.defaultThresholdType = thresholdType
	}
}

// New constructs a Service.
func New(store Store, p Predictor, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("prediction store is required")
	}
	if p == nil {
		return nil, fmt.Errorf("predictor is required")
	}
	s := &Service{
		store:                store,
		predictor:            p,
		defaultModel:         churn.ModelLogistic,
		defaultThresholdType: churn.ThresholdF1,
		logger:               slog.Default(),
		tracer:               otel.Tracer("churnboard/prediction"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create scores the customer, stores the record under owner and publishes a
// prediction.created event. Predictor failures store nothing.
func (s *Service) Create(ctx context.Context, owner id.UserID, in CreateInput) (*churn.Record, error) {
	model, thresholdType := s.resolveSettings(ctx, owner, in)

	ctx, span := s.tracer.Start(ctx, "prediction.Create", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("threshold_type", thresholdType),
	))
	defer span.End()

	features := sanitizeFeatures(in.Features)
	start := time.Now()
	verdict, err := s.predictor.Predict(ctx, predictor.Request{
		Features:      predictor.Encode(features),
		Model:         model,
		ThresholdType: thresholdType,
	})
	s.metrics.ObservePredictor(model, err == nil, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "predictor call failed",
			"user_id", owner,
			"model", model,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeBadGateway, "prediction service is unavailable")
	}

	probability := churn.Round(churn.SafeNumber(verdict.Probability*100), 1)
	now := requestcontext.Now(ctx).UTC()
	if verdict.ThresholdType != "" {
		thresholdType = verdict.ThresholdType
	}
	rec := &churn.Record{
		ID:        id.NewPredictionID(),
		OwnerID:   owner,
		Timestamp: &now,
		Customer: churn.CustomerInfo{
			Name:   strings.TrimSpace(in.Customer.Name),
			Age:    churn.Age(churn.SafeNumber(float64(in.Customer.Age))),
			Gender: churn.NormalizeGender(in.Customer.Gender),
			Region: strings.TrimSpace(in.Customer.Region),
		},
		Features: features,
		Prediction: churn.Prediction{
			ChurnProbability: probability,
			RiskLevel:        churn.RiskLevelFor(probability),
			Model:            model,
			ThresholdType:    thresholdType,
			Threshold:        verdict.Threshold,
			Churn:            bool(verdict.Prediction),
		},
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		next, err := s.store.NextCustomerID(ctx)
		if err != nil {
			return err
		}
		rec.CustomerID = next
		return s.store.Append(ctx, rec)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store prediction")
	}
	span.SetAttributes(attribute.Int64("customer_id", rec.CustomerID))

	s.metrics.IncrementCreated(model, string(rec.Prediction.RiskLevel))
	s.logAudit(ctx, "prediction_created",
		"user_id", owner,
		"prediction_id", rec.ID,
		"customer_id", rec.CustomerID,
		"risk_level", rec.Prediction.RiskLevel,
	)
	s.publish(ctx, rec)
	return rec, nil
}

// Get returns one of owner's records.
func (s *Service) Get(ctx context.Context, owner id.UserID, predictionID id.PredictionID) (*churn.Record, error) {
	rec, err := s.store.FindByID(ctx, owner, predictionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "prediction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load prediction")
	}
	return rec, nil
}

// Table returns owner's records as table rows, filtered and sorted by q.
func (s *Service) Table(ctx context.Context, owner id.UserID, q table.Query) ([]table.Row, error) {
	records, err := s.store.ListByOwner(ctx, owner, churn.Filter{Risk: q.Risk})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list predictions")
	}
	return table.Apply(table.Project(records), q), nil
}

// Export is Table for CSV downloads.
func (s *Service) Export(ctx context.Context, owner id.UserID, q table.Query) ([]table.Row, error) {
	rows, err := s.Table(ctx, owner, q)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementExports()
	s.logAudit(ctx, "predictions_exported", "user_id", owner, "rows", len(rows))
	return rows, nil
}

func (s *Service) resolveSettings(ctx context.Context, owner id.UserID, in CreateInput) (string, string) {
	model, thresholdType := in.Model, in.ThresholdType
	if (model == "" || thresholdType == "") && s.defaults != nil {
		m, t, err := s.defaults.PredictionDefaults(ctx, owner)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load prediction defaults",
				"user_id", owner,
				"error", err,
			)
		}
		if model == "" {
			model = m
		}
		if thresholdType == "" {
			thresholdType = t
		}
	}
	if model == "" {
		model = s.defaultModel
	}
	if thresholdType == "" {
		thresholdType = s.defaultThresholdType
	}
	return model, thresholdType
}

func (s *Service) publish(ctx context.Context, rec *churn.Record) {
	if s.publisher == nil {
		return
	}
	ev := churn.Event{
		Type:         churn.EventPredictionCreated,
		OwnerID:      rec.OwnerID,
		PredictionID: rec.ID,
		CustomerID:   rec.CustomerID,
		OccurredAt:   *rec.Timestamp,
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to publish prediction event",
			"prediction_id", rec.ID,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
}

func sanitizeFeatures(f churn.Features) churn.Features {
	f.Tenure = churn.SafeNumber(f.Tenure)
	f.MonthlyCharges = churn.SafeNumber(f.MonthlyCharges)
	f.TotalCharges = churn.SafeNumber(f.TotalCharges)
	return f
}
