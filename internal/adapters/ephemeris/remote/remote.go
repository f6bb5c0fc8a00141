// Package remote fetches ephemeris positions from an HTTP service.
//
// The service answers GET {base}/positions?jd=&lat=&lon= with
// {"positions": {"sun": {"lon":..,"lat":..,"dist":..,"speed":..}, ...}}.
// Network errors and 5xx answers are retried with exponential backoff;
// other failures are returned at once.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/astrolabe/internal/domain/ephemeris"
	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/pkg/logger"
)

const (
	providerName        = "remote"
	defaultTimeout      = 3 * time.Second
	defaultRetries      = 2
	defaultRetryWaitMin = 100 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
	maxErrorBody        = 512
)

// ErrInvalidBaseURL is returned by New for unusable service URLs.
var ErrInvalidBaseURL = errors.New("invalid ephemeris base url")

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n int) Option {
	return func(p *Provider) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// WithRetryWait sets the backoff bounds between attempts.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(p *Provider) {
		if minWait > 0 && maxWait >= minWait {
			p.retryWaitMin = minWait
			p.retryWaitMax = maxWait
		}
	}
}

// Provider implements ephemeris.Provider over HTTP.
type Provider struct {
	base         *url.URL
	client       *http.Client
	retries      int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// New creates a Provider for the service at base.
func New(base string, opts ...Option) (*Provider, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}
	p := &Provider{
		base:         u,
		client:       &http.Client{Timeout: defaultTimeout},
		retries:      defaultRetries,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name implements ephemeris.Provider.
func (p *Provider) Name() string { return providerName }

type response struct {
	Positions map[string]ephemeris.RawPosition `json:"positions"`
}

// statusError is a non-2xx answer.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ephemeris service answered %d", e.status)
}

// Positions implements ephemeris.Provider.
func (p *Provider) Positions(ctx context.Context, jd float64, loc *model.Location) (ephemeris.Positions, error) {
	target := p.endpoint(jd, loc)
	log := logger.Get().Named("ephemeris_remote")

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			wait := p.backoff(attempt)
			log.Debug(ctx, "retrying ephemeris request", logger.Int("attempt", attempt), logger.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("remote positions: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		positions, err := p.fetch(ctx, target)
		if err == nil {
			return positions, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remote positions: %w", ctx.Err())
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	var se *statusError
	if errors.As(lastErr, &se) {
		return nil, ephemeris.NewError(providerName, map[string]any{"status": se.status, "body": se.body}, lastErr)
	}
	return nil, ephemeris.NewError(providerName, map[string]any{"url": target}, lastErr)
}

func (p *Provider) endpoint(jd float64, loc *model.Location) string {
	u := p.base.JoinPath("positions")
	q := url.Values{}
	q.Set("jd", strconv.FormatFloat(jd, 'f', 8, 64))
	if loc != nil {
		q.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', 6, 64))
		q.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', 6, 64))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Provider) fetch(ctx context.Context, target string) (ephemeris.Positions, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request ephemeris: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &decodeError{err: err}
	}
	out := make(ephemeris.Positions, len(r.Positions))
	for name, pos := range r.Positions {
		b, err := model.ParseBody(name)
		if err != nil {
			continue
		}
		out[b] = pos
	}
	return out, nil
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode ephemeris response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// retryable reports whether another attempt may succeed: transport errors
// and 5xx answers are retried, 4xx and undecodable bodies are not.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	var de *decodeError
	return !errors.As(err, &de)
}

func (p *Provider) backoff(attempt int) time.Duration {
	wait := p.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if wait > p.retryWaitMax || wait <= 0 {
		wait = p.retryWaitMax
	}
	return wait
}
