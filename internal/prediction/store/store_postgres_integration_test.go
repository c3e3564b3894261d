//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"churnboard/internal/churn"
	"churnboard/internal/prediction/store"
	id "churnboard/pkg/domain"
	"churnboard/pkg/platform/sentinel"
	"churnboard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "predictions", "counters")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) create(owner id.UserID, probability float64, ts *time.Time) *churn.Record {
	ctx := context.Background()
	rec := &churn.Record{
		ID:        id.NewPredictionID(),
		OwnerID:   owner,
		Timestamp: ts,
		Customer:  churn.CustomerInfo{Name: "Doe, Jane", Age: 42, Gender: churn.GenderFemale, Region: "West"},
		Features: churn.Features{
			Tenure:           12,
			MonthlyCharges:   85.5,
			TotalCharges:     1026,
			Contract:         churn.ContractMonthToMonth,
			InternetService:  churn.InternetFiber,
			OnlineSecurity:   churn.No,
			TechSupport:      churn.No,
			PaymentMethod:    churn.PaymentElectronicCheck,
			StreamingTV:      churn.Yes,
			PaperlessBilling: churn.Yes,
		},
		Prediction: churn.Prediction{
			ChurnProbability: probability,
			RiskLevel:        churn.RiskLevelFor(probability),
			Model:            churn.ModelRandomForest,
			ThresholdType:    churn.ThresholdCost,
			Threshold:        0.42,
			Churn:            probability > 50,
		},
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		next, err := s.store.NextCustomerID(ctx)
		if err != nil {
			return err
		}
		rec.CustomerID = next
		return s.store.Append(ctx, rec)
	})
	s.Require().NoError(err)
	return rec
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	owner := id.NewUserID()
	ts := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)
	rec := s.create(owner, 72.5, &ts)

	got, err := s.store.FindByID(context.Background(), owner, rec.ID)
	s.Require().NoError(err)
	s.Equal(*rec, *got)
}

func (s *PostgresStoreSuite) TestPendingTimestamp() {
	owner := id.NewUserID()
	rec := s.create(owner, 10, nil)

	got, err := s.store.FindByID(context.Background(), owner, rec.ID)
	s.Require().NoError(err)
	s.Nil(got.Timestamp)
}

func (s *PostgresStoreSuite) TestListByOwnerFiltersByRisk() {
	ctx := context.Background()
	owner := id.NewUserID()
	s.create(owner, 10, nil)
	s.create(owner, 50, nil)
	s.create(owner, 95, nil)
	s.create(id.NewUserID(), 95, nil)

	all, err := s.store.ListByOwner(ctx, owner, churn.Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Less(all[0].CustomerID, all[1].CustomerID)

	risky, err := s.store.ListByOwner(ctx, owner, churn.Filter{Risk: []churn.RiskLevel{churn.RiskMedium, churn.RiskHigh}})
	s.Require().NoError(err)
	s.Len(risky, 2)
	for _, r := range risky {
		s.NotEqual(churn.RiskLow, r.Prediction.RiskLevel)
	}
}

func (s *PostgresStoreSuite) TestConcurrentCustomerIDsAreUnique() {
	owner := id.NewUserID()
	const writers = 20

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.create(owner, 40, nil)
		}()
	}
	wg.Wait()

	records, err := s.store.ListByOwner(context.Background(), owner, churn.Filter{})
	s.Require().NoError(err)
	s.Require().Len(records, writers)
	for i, r := range records {
		s.Equal(int64(i+1), r.CustomerID)
	}
}

func (s *PostgresStoreSuite) TestRollbackKeepsCounter() {
	ctx := context.Background()
	boom := errors.New("predictor went away")
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.NextCustomerID(ctx); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	rec := s.create(id.NewUserID(), 10, nil)
	s.Equal(int64(1), rec.CustomerID)
}

func (s *PostgresStoreSuite) TestFindByIDScopedToOwner() {
	rec := s.create(id.NewUserID(), 10, nil)
	_, err := s.store.FindByID(context.Background(), id.NewUserID(), rec.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
