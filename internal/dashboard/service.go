// Package dashboard builds the per-owner dashboard: the aggregate snapshot
// of every stored prediction plus the insights derived from it.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"churnboard/internal/churn"
	"churnboard/internal/churn/aggregate"
	"churnboard/internal/churn/insight"
	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
)

// RecordLister reads an owner's records.
type RecordLister interface {
	ListByOwner(ctx context.Context, owner id.UserID, filter churn.Filter) ([]churn.Record, error)
}

// View is the dashboard payload served over HTTP and the live stream.
type View struct {
	Snapshot aggregate.Snapshot `json:"snapshot"`
	Insights []insight.Insight  `json:"insights"`
}

type Service struct {
	records RecordLister
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(records RecordLister, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record lister is required")
	}
	s := &Service{records: records, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dashboard recomputes owner's view from the full record set.
func (s *Service) Dashboard(ctx context.Context, owner id.UserID) (*View, error) {
	records, err := s.records.ListByOwner(ctx, owner, churn.Filter{})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list records for dashboard",
			"user_id", owner,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dashboard")
	}
	snapshot := aggregate.Compute(records)
	return &View{
		Snapshot: snapshot,
		Insights: insight.Generate(snapshot),
	}, nil
}
