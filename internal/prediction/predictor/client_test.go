package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churnboard/internal/churn"
)

func TestEncode(t *testing.T) {
	f := churn.Features{
		Tenure:           12,
		MonthlyCharges:   70.35,
		TotalCharges:     844.2,
		Contract:         churn.ContractTwoYear,
		InternetService:  churn.InternetFiber,
		OnlineSecurity:   churn.Yes,
		TechSupport:      churn.No,
		PaymentMethod:    churn.PaymentMailedCheck,
		StreamingTV:      churn.Yes,
		PaperlessBilling: churn.No,
	}
	assert.Equal(t, []float64{12, 70.35, 844.2, 0, 1, 0, 0, 1, 1, 0, 1, 0, 1, 0}, Encode(f))

	t.Run("baselines encode as zeros", func(t *testing.T) {
		v := Encode(churn.Features{
			Contract:        churn.ContractMonthToMonth,
			InternetService: churn.InternetDSL,
			PaymentMethod:   churn.PaymentBankTransfer,
		})
		assert.Len(t, v, VectorLength)
		for i, x := range v {
			assert.Zero(t, x, "index %d", i)
		}
	})

	t.Run("negative numerics are zeroed", func(t *testing.T) {
		v := Encode(churn.Features{Tenure: -3, MonthlyCharges: -1})
		assert.Zero(t, v[0])
		assert.Zero(t, v[1])
	})
}

func TestClientPredict(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction": 1, "probability": 0.8123, "threshold_type": "cost", "threshold": 0.35}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	features := make([]float64, VectorLength)
	resp, err := c.Predict(context.Background(), Request{Features: features, Model: churn.ModelRandomForest, ThresholdType: churn.ThresholdCost})
	require.NoError(t, err)

	assert.True(t, bool(resp.Prediction))
	assert.InDelta(t, 0.8123, resp.Probability, 1e-9)
	assert.Equal(t, "cost", resp.ThresholdType)
	assert.Equal(t, churn.ModelRandomForest, got.Model)
	assert.Equal(t, churn.ThresholdCost, got.ThresholdType)
	assert.Len(t, got.Features, VectorLength)
}

func TestClientPredictFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"error body", http.StatusOK, `{"error": "model not loaded"}`, "model not loaded"},
		{"error body with failure status", http.StatusBadRequest, `{"error": "bad features"}`, "bad features"},
		{"server error", http.StatusInternalServerError, `oops`, "unexpected status code 500"},
		{"malformed body", http.StatusOK, `{"probability": "high"}`, "decode response"},
		{"probability out of range", http.StatusOK, `{"prediction": true, "probability": 1.5}`, "outside [0,1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).Predict(context.Background(), Request{Features: make([]float64, VectorLength)})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPredictor)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("wrong vector length", func(t *testing.T) {
		_, err := New("http://127.0.0.1:1", time.Second).Predict(context.Background(), Request{Features: []float64{1}})
		assert.ErrorIs(t, err, ErrPredictor)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := New("http://127.0.0.1:1", 200*time.Millisecond).Predict(context.Background(), Request{Features: make([]float64, VectorLength)})
		assert.ErrorIs(t, err, ErrPredictor)
	})
}

func TestLabelUnmarshal(t *testing.T) {
	for raw, want := range map[string]bool{`true`: true, `false`: false, `1`: true, `0`: false, `1.0`: true} {
		var l Label
		require.NoError(t, json.Unmarshal([]byte(raw), &l), raw)
		assert.Equal(t, want, bool(l), raw)
	}
	var l Label
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &l))
}
