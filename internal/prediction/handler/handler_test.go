package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnboard/internal/churn"
	"churnboard/internal/churn/table"
	"churnboard/internal/prediction/service"
	id "churnboard/pkg/domain"
	dErrors "churnboard/pkg/domain-errors"
	"churnboard/pkg/testutil"
)

type stubService struct {
	createIn  service.CreateInput
	createErr error
	query     table.Query
	rows      []table.Row
	record    *churn.Record
	getErr    error
}

func (s *stubService) Create(_ context.Context, owner id.UserID, in service.CreateInput) (*churn.Record, error) {
	s.createIn = in
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &churn.Record{OwnerID: owner, CustomerID: 1, Customer: in.Customer, Features: in.Features,
		Prediction: churn.Prediction{ChurnProbability: 64.2, RiskLevel: churn.RiskMedium, Model: churn.ModelLogistic}}, nil
}

func (s *stubService) Get(context.Context, id.UserID, id.PredictionID) (*churn.Record, error) {
	return s.record, s.getErr
}

func (s *stubService) Table(_ context.Context, _ id.UserID, q table.Query) ([]table.Row, error) {
	s.query = q
	return s.rows, nil
}

func (s *stubService) Export(ctx context.Context, owner id.UserID, q table.Query) ([]table.Row, error) {
	return s.Table(ctx, owner, q)
}

func newRouter(svc Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func authed(req *http.Request) *http.Request {
	return testutil.WithUserID(req, id.NewUserID().String())
}

func validBody() map[string]any {
	return map[string]any{
		"customerInfo": map[string]any{"name": "Jane Doe", "age": "41", "gender": "Female", "region": "North"},
		"features": map[string]any{
			"tenure":           5,
			"monthlyCharges":   70.5,
			"totalCharges":     352.5,
			"contract":         "Month-to-month",
			"internetService":  "Fiber optic",
			"onlineSecurity":   "No",
			"techSupport":      "No",
			"paymentMethod":    "Electronic check",
			"streamingTV":      "Yes",
			"paperlessBilling": "Yes",
		},
		"model": "randomForest",
	}
}

func TestHandleCreate(t *testing.T) {
	t.Run("creates prediction", func(t *testing.T) {
		svc := &stubService{}
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/predictions", validBody()))
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, churn.ModelRandomForest, svc.createIn.Model)
		assert.Equal(t, churn.Age(41), svc.createIn.Customer.Age, "numeric strings are accepted")
		body := testutil.UnmarshalResponse[churn.Record](t, rr)
		assert.Equal(t, churn.RiskMedium, body.Prediction.RiskLevel)
	})

	t.Run("non-numeric age decodes as zero", func(t *testing.T) {
		svc := &stubService{}
		b := validBody()
		b["customerInfo"].(map[string]any)["age"] = "forty"
		rr := testutil.DoRequest(newRouter(svc), authed(testutil.NewJSONRequest(t, http.MethodPost, "/predictions", b)))

		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Zero(t, svc.createIn.Customer.Age)
	})

	invalid := map[string]func(map[string]any){
		"missing name":      func(b map[string]any) { b["customerInfo"].(map[string]any)["name"] = " " },
		"negative tenure":   func(b map[string]any) { b["features"].(map[string]any)["tenure"] = -1 },
		"unknown contract":  func(b map[string]any) { b["features"].(map[string]any)["contract"] = "Weekly" },
		"unknown model":     func(b map[string]any) { b["model"] = "xgboost" },
		"unknown threshold": func(b map[string]any) { b["thresholdType"] = "recall" },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			b := validBody()
			mutate(b)
			rr := testutil.DoRequest(newRouter(&stubService{}), authed(testutil.NewJSONRequest(t, http.MethodPost, "/predictions", b)))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		})
	}

	t.Run("predictor unavailable", func(t *testing.T) {
		svc := &stubService{createErr: dErrors.New(dErrors.CodeBadGateway, "prediction service is unavailable")}
		rr := testutil.DoRequest(newRouter(svc), authed(testutil.NewJSONRequest(t, http.MethodPost, "/predictions", validBody())))
		testutil.AssertStatusAndError(t, rr, http.StatusBadGateway, "predictor_unavailable")
	})

	t.Run("requires authentication", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(&stubService{}), testutil.NewJSONRequest(t, http.MethodPost, "/predictions", validBody()))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func TestHandleTable(t *testing.T) {
	t.Run("parses query", func(t *testing.T) {
		svc := &stubService{rows: []table.Row{{CustomerID: 1, Customer: "Ann"}}}
		req := authed(testutil.NewJSONRequest(t, http.MethodGet, "/predictions?q=ann&risk=high,Medium&risk=high&sort=probability&order=asc", nil))
		rr := testutil.DoRequest(newRouter(svc), req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, table.Query{
			Search: "ann",
			Risk:   []churn.RiskLevel{churn.RiskHigh, churn.RiskMedium},
			SortBy: table.SortProbability,
		}, svc.query)
		body := testutil.UnmarshalResponse[tableResponse](t, rr)
		assert.Equal(t, 1, body.Total)
	})

	t.Run("defaults to newest first", func(t *testing.T) {
		svc := &stubService{}
		rr := testutil.DoRequest(newRouter(svc), authed(testutil.NewJSONRequest(t, http.MethodGet, "/predictions", nil)))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, table.SortDate, svc.query.SortBy)
		assert.True(t, svc.query.Descending)
	})

	for _, raw := range []string{"sort=age", "order=sideways", "risk=extreme"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			rr := testutil.DoRequest(newRouter(&stubService{}), authed(testutil.NewJSONRequest(t, http.MethodGet, "/predictions?"+raw, nil)))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
		})
	}
}

func TestHandleExport(t *testing.T) {
	date := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	svc := &stubService{rows: []table.Row{
		{CustomerID: 1, Customer: "Doe, Jane", Region: "North", Date: &date, Probability: 81.26, Model: "logistic", Status: churn.RiskHigh},
		{CustomerID: 2, Customer: `Bob "Bobby" Roe`, Region: "South", Probability: 12, Model: "randomForest", Status: churn.RiskLow},
	}}
	rr := testutil.DoRequest(newRouter(svc), authed(testutil.NewJSONRequest(t, http.MethodGet, "/predictions/export.csv?sort=customer", nil)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment;")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Customer,Region,Date,Probability,Model,Status", lines[0])
	assert.Equal(t, `"Doe, Jane",North,2025-01-05,81.3%,logistic,High`, lines[1])
	assert.Equal(t, `"Bob ""Bobby"" Roe",South,Pending,12.0%,randomForest,Low`, lines[2])
	assert.Equal(t, table.SortCustomer, svc.query.SortBy)
}

func TestHandleGet(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(&stubService{}), authed(testutil.NewJSONRequest(t, http.MethodGet, "/predictions/not-a-uuid", nil)))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	t.Run("not found", func(t *testing.T) {
		svc := &stubService{getErr: dErrors.New(dErrors.CodeNotFound, "prediction not found")}
		rr := testutil.DoRequest(newRouter(svc), authed(testutil.NewJSONRequest(t, http.MethodGet, "/predictions/"+id.NewPredictionID().String(), nil)))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}
