// Package loadgen drives a running astrolabe server with random chart,
// batch and synastry requests and reports what came back.
package loadgen

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Default load test settings.
const (
	DefaultRequests      = 1000
	DefaultTimeout       = 30 * time.Second
	DefaultBatchSize     = 25
	DefaultSynastryRatio = 0.1
	DefaultVerifyCount   = 20
)

// Errors returned by Run.
var (
	ErrInvalidConfig = errors.New("invalid load test config")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrMismatch      = errors.New("stored chart does not match the computed one")
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Requests      int           // Number of single chart requests
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	BatchSize     int           // Items in the trailing batch request, 0 disables it
	SynastryRatio float64       // Share of requests sent as synastry instead of chart
	VerifyCount   int           // Stored charts read back by id
	From, To      time.Time     // Birth moments are drawn from [From, To)
	Verbose       bool          // Log every failure
}

// DefaultRange is the window covered by the bundled ephemeris table.
func DefaultRange() (from, to time.Time) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
}

func (c *Config) validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Requests, validation.Min(1)),
		validation.Field(&c.Workers, validation.Min(1)),
		validation.Field(&c.BatchSize, validation.Min(0)),
		validation.Field(&c.SynastryRatio, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.To, validation.By(func(any) error {
			if !c.To.After(c.From) {
				return errors.New("must be after From")
			}
			return nil
		})),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Stats holds load test statistics.
type Stats struct {
	Generated    int
	Submitted    int
	Successful   int
	Failed       int
	Synastries   int
	BatchItems   int
	BatchFailed  int
	Verified     int
	FailedByKind map[string]int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}
