// Package predictor calls the remote model-serving endpoint.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrPredictor marks every failure of a predictor call.
var ErrPredictor = errors.New("predictor call failed")

const maxResponseBytes = 1 << 20

// Request is the predictor's input.
type Request struct {
	Features      []float64 `json:"features"`
	Model         string    `json:"model"`
	ThresholdType string    `json:"threshold_type"`
}

// Response is the predictor's verdict. Probability is in [0,1].
type Response struct {
	Prediction    Label   `json:"prediction"`
	Probability   float64 `json:"probability"`
	ThresholdType string  `json:"threshold_type"`
	Threshold     float64 `json:"threshold"`
	Error         string  `json:"error,omitempty"`
}

// Label is the predicted churn label. The predictor may send it as a
// boolean or as 0/1.
type Label bool

func (l *Label) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*l = Label(v)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("prediction must be a boolean or a number: %w", err)
	}
	*l = n != 0
	return nil
}

// Client posts feature vectors to the predictor.
type Client struct {
	url    string
	client *http.Client
}

// New builds a Client for url whose calls time out after timeout.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
	}
}

// Predict sends req and returns the predictor's verdict. Every failure wraps
// ErrPredictor; calls are never retried.
func (c *Client) Predict(ctx context.Context, req Request) (*Response, error) {
	if len(req.Features) != VectorLength {
		return nil, fmt.Errorf("%w: feature vector has %d values, want %d", ErrPredictor, len(req.Features), VectorLength)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrPredictor, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrPredictor, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredictor, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPredictor, err)
	}

	var out Response
	decodeErr := json.Unmarshal(raw, &out)
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrPredictor, out.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrPredictor, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPredictor, decodeErr)
	}
	if math.IsNaN(out.Probability) || out.Probability < 0 || out.Probability > 1 {
		return nil, fmt.Errorf("%w: probability %v outside [0,1]", ErrPredictor, out.Probability)
	}
	return &out, nil
}
