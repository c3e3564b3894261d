package explain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"churnboard/internal/explain/metrics"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/platform/sentinel"
)

// Fetcher reads the raw bytes stored at a location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Cache stores computed rankings. A key is written at most once.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	SetIfAbsent(ctx context.Context, key string, res *Result) (bool, error)
}

// Service computes feature rankings and serves feature importance.
type Service struct {
	fetcher Fetcher
	cache   Cache
	base    string

	workers      int
	fetchTimeout time.Duration
	pool         *Pool

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

// WithWorkers sets the size of the offloaded worker pool.
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithFetchTimeout bounds one offloaded computation.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.fetchTimeout = d
	}
}

// New constructs a Service reading explanation files under base and starts
// its worker pool. Call Close to stop the pool.
func New(fetcher Fetcher, cache Cache, base string, opts ...Option) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("ranking cache is required")
	}
	if base == "" {
		return nil, fmt.Errorf("explanation source is required")
	}
	s := &Service{
		fetcher: fetcher,
		cache:   cache,
		base:    base,
		workers: 1,
		logger:  slog.Default(),
		tracer:  otel.Tracer("churnboard/explain"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewPool(s.workers, s.fetchTimeout, func(ctx context.Context, req Request) (*Result, error) {
		return s.compute(ctx, req, ModeOffloaded)
	}, s.logger)
	return s, nil
}

// Close stops the worker pool after in-flight rankings finish.
func (s *Service) Close() {
	s.pool.Close()
}

// Ranking returns the feature ranking of model. A cached ranking is returned
// without touching the sources. In offloaded mode the caller may give up
// waiting when ctx ends; the worker still completes and caches the result.
func (s *Service) Ranking(ctx context.Context, model string, mode Mode) (*Result, error) {
	if !ValidModelName(model) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid model name")
	}
	if mode == "" {
		mode = ModeSync
	}
	if mode != ModeSync && mode != ModeOffloaded {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "mode must be sync or offloaded")
	}

	ctx, span := s.tracer.Start(ctx, "explain.Ranking", trace.WithAttributes(
		attribute.String("model", model),
		attribute.String("mode", string(mode)),
	))
	defer span.End()

	if res, ok := s.cached(ctx, model, mode); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return res, nil
	}

	req := Request{Model: model, Locations: Locate(s.base, model)}

	if mode == ModeSync {
		res, err := s.compute(ctx, req, ModeSync)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, dErrors.Wrap(err, dErrors.CodeBadGateway, "ranking failed: "+err.Error())
		}
		return res, nil
	}

	replies, err := s.pool.Submit(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrPoolClosed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ranking workers are shutting down")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "ranking request was not accepted in time")
	}
	select {
	case reply := <-replies:
		if reply.Err != "" {
			span.SetStatus(codes.Error, reply.Err)
			return nil, dErrors.New(dErrors.CodeBadGateway, "ranking failed: "+reply.Err)
		}
		return reply.Result, nil
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller stopped waiting")
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "ranking is still running; retry later")
	}
}

// Importance returns the static feature-importance map of model, ordered by
// descending importance.
func (s *Service) Importance(ctx context.Context, model string) ([]Importance, error) {
	if !ValidModelName(model) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid model name")
	}
	ctx, span := s.tracer.Start(ctx, "explain.Importance", trace.WithAttributes(attribute.String("model", model)))
	defer span.End()

	start := time.Now()
	raw, err := s.fetcher.Fetch(ctx, Resolve(s.base, model, FileImportance))
	s.metrics.ObserveFetch(FileImportance, time.Since(start))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "feature importance not found for model")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadGateway, "failed to load feature importance")
	}
	out, err := DecodeImportance(raw)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeBadGateway, "failed to load feature importance")
	}
	return out, nil
}

func (s *Service) cached(ctx context.Context, model string, mode Mode) (*Result, bool) {
	res, ok, err := s.cache.Get(ctx, cacheKey(model, mode))
	if err != nil {
		s.logger.WarnContext(ctx, "ranking cache lookup failed",
			"model", model,
			"mode", mode,
			"error", err,
		)
		return nil, false
	}
	s.metrics.IncrementCacheLookup(string(mode), ok)
	return res, ok
}

// compute loads the inputs, ranks them and caches the result. If another
// computation cached the same key first, that result wins.
func (s *Service) compute(ctx context.Context, req Request, mode Mode) (*Result, error) {
	start := time.Now()
	res, err := s.rank(ctx, req, mode)
	s.metrics.ObserveCompute(string(mode), err == nil, time.Since(start))
	if err != nil {
		s.logger.WarnContext(ctx, "ranking failed",
			"model", req.Model,
			"mode", mode,
			"error", err,
		)
		return nil, err
	}

	key := cacheKey(req.Model, mode)
	stored, err := s.cache.SetIfAbsent(ctx, key, res)
	if err != nil {
		s.logger.WarnContext(ctx, "ranking cache write failed", "model", req.Model, "error", err)
		return res, nil
	}
	if !stored {
		if existing, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			return existing, nil
		}
	}
	s.logger.InfoContext(ctx, "ranking computed",
		"model", req.Model,
		"mode", mode,
		"samples", res.SampleCount,
		"original_samples", res.OriginalCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) rank(ctx context.Context, req Request, mode Mode) (*Result, error) {
	in, err := Load(ctx, s.fetcher, req.Locations, s.metrics)
	if err != nil {
		return nil, err
	}
	if mode == ModeOffloaded {
		return Rank(req.Model, mode, in, OffloadedSampleCeiling, OffloadedTopN)
	}
	return Rank(req.Model, mode, in, SyncSampleCeiling, 0)
}

// Sync and offloaded rankings differ in sample ceiling and length, so they
// are cached separately.
func cacheKey(model string, mode Mode) string {
	return string(mode) + ":" + model
}
