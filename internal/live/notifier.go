package live

import (
	"context"
	"fmt"
	"log/slog"

	"churnboard/internal/churn"
	"churnboard/internal/dashboard"
	id "churnboard/pkg/domain"
)

// DashboardSource recomputes an owner's dashboard.
type DashboardSource interface {
	Dashboard(ctx context.Context, owner id.UserID) (*dashboard.View, error)
}

// Notifier turns prediction events into fresh dashboard snapshots for the
// owner's open streams. Each event triggers a full recompute, so duplicate
// or reordered events are harmless.
type Notifier struct {
	hub    *Hub
	source DashboardSource
	logger *slog.Logger
}

func NewNotifier(hub *Hub, source DashboardSource, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{hub: hub, source: source, logger: logger}
}

// Notify recomputes and broadcasts the owner's dashboard. Owners without
// open streams are skipped.
func (n *Notifier) Notify(ctx context.Context, ev churn.Event) error {
	if !n.hub.HasSubscribers(ev.OwnerID) {
		return nil
	}
	view, err := n.source.Dashboard(ctx, ev.OwnerID)
	if err != nil {
		return fmt.Errorf("recompute dashboard for %s: %w", ev.OwnerID, err)
	}
	n.hub.Broadcast(ev.OwnerID, Message{Event: EventSnapshot, Data: view})
	n.logger.DebugContext(ctx, "dashboard snapshot broadcast",
		"user_id", ev.OwnerID,
		"prediction_id", ev.PredictionID,
	)
	return nil
}

// Publish lets the notifier stand in for a broker in single-process
// deployments.
func (n *Notifier) Publish(ctx context.Context, ev churn.Event) error {
	return n.Notify(ctx, ev)
}
