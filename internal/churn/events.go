package churn

import (
	"time"

	id "churnboard/pkg/domain"
)

// EventPredictionCreated is emitted after a record is stored.
const EventPredictionCreated = "prediction.created"

// Event notifies listeners that an owner's record set changed. Consumers
// re-read the whole set, so duplicate or reordered events are harmless.
type Event struct {
	Type         string          `json:"type"`
	OwnerID      id.UserID       `json:"ownerId"`
	PredictionID id.PredictionID `json:"predictionId"`
	CustomerID   int64           `json:"customerId"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// Filter narrows a record listing. The zero value matches every record.
type Filter struct {
	Risk []RiskLevel
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r Record) bool {
	if len(f.Risk) == 0 {
		return true
	}
	level := RiskLevelFor(r.Prediction.ChurnProbability)
	for _, want := range f.Risk {
		if level == want {
			return true
		}
	}
	return false
}
