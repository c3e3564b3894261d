package store

import (
	"context"
	"sync"

	"churnboard/internal/churn"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
)

// InMemoryStore keeps records in process memory. RunInTx serializes
// transactions with a coarse lock.
type InMemoryStore struct {
	txMu sync.Mutex

	mu        sync.RWMutex
	records   []churn.Record
	byID      map[id.PredictionID]int
	customers map[int64]struct{}
	lastID    int64
}

// NewInMemory constructs an empty record store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[id.PredictionID]int),
		customers: make(map[int64]struct{}),
	}
}

// RunInTx runs fn while holding the store's transaction lock.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// NextCustomerID increments and returns the global customer counter.
func (s *InMemoryStore) NextCustomerID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID, nil
}

// Append stores rec. Prediction and customer ids must be unique.
func (s *InMemoryStore) Append(_ context.Context, rec *churn.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[rec.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.customers[rec.CustomerID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[rec.ID] = len(s.records)
	s.customers[rec.CustomerID] = struct{}{}
	s.records = append(s.records, *rec)
	return nil
}

// FindByID returns the record with the given id if owner owns it.
func (s *InMemoryStore) FindByID(_ context.Context, owner id.UserID, predictionID id.PredictionID) (*churn.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[predictionID]
	if !ok || s.records[i].OwnerID != owner {
		return nil, sentinel.ErrNotFound
	}
	rec := s.records[i]
	return &rec, nil
}

// ListByOwner returns owner's records in insertion order.
func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.UserID, filter churn.Filter) ([]churn.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]churn.Record, 0)
	for _, rec := range s.records {
		if rec.OwnerID == owner && filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}
