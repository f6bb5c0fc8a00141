package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
)

// HTTPClient talks to the astrolabe HTTP API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Health checks /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Chart posts a single chart request.
func (c *HTTPClient) Chart(ctx context.Context, req types.ChartRequest) (types.ChartEnvelope, error) { //nolint:gocritic // hugeParam: request is a value type
	var env types.ChartEnvelope
	err := c.call(ctx, http.MethodPost, "/v1/charts", req, &env)
	return env, err
}

// Batch posts several chart requests at once.
func (c *HTTPClient) Batch(ctx context.Context, reqs []types.ChartRequest) (types.BatchResponse, error) {
	var out types.BatchResponse
	err := c.call(ctx, http.MethodPost, "/v1/charts/batch", types.BatchRequest{Items: reqs}, &out)
	return out, err
}

// Synastry posts a synastry request.
func (c *HTTPClient) Synastry(ctx context.Context, req types.SynastryRequest) (types.SynastryEnvelope, error) {
	var env types.SynastryEnvelope
	err := c.call(ctx, http.MethodPost, "/v1/synastry", req, &env)
	return env, err
}

// Stored fetches a stored chart by id.
func (c *HTTPClient) Stored(ctx context.Context, id string) (*model.Chart, error) {
	var out model.Chart
	if err := c.call(ctx, http.MethodGet, "/v1/charts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// APIError is a request the server rejected before any calculation ran.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Code, e.Message)
}

// call sends body as JSON and decodes the reply into out. Calculation
// failures come back as envelopes with a non-2xx status and are decoded
// like successes; plain error responses become an *APIError.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e types.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Code != "" {
			return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Message}
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
