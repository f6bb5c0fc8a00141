// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and ASTRO_ env vars.
// - Validate is called by Load; errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Ephemeris sources.
const (
	SourceTable  = "table"
	SourceRemote = "remote"
)

// Aspect matching modes.
const (
	MatchScan    = "scan"
	MatchNearest = "nearest"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the batch chart queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of batch workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxBatchSize caps POST /v1/charts/batch.
	MaxBatchSize int `koanf:"max_batch_size"`

	// StoreCapacity bounds the number of charts kept for lookup by id.
	StoreCapacity int `koanf:"store_capacity"`

	// EphemerisSource is "table" or "remote".
	EphemerisSource string `koanf:"ephemeris_source"`

	// EphemerisTable is the YAML table used by the table source.
	EphemerisTable string `koanf:"ephemeris_table"`

	// EphemerisWatch reloads the table file when it changes.
	EphemerisWatch bool `koanf:"ephemeris_watch"`

	// EphemerisURL is the base URL of the remote source.
	EphemerisURL string `koanf:"ephemeris_url"`

	// EphemerisRetries is the number of retries of the remote source.
	EphemerisRetries int `koanf:"ephemeris_retries"`

	// EphemerisTimeoutMS bounds a single ephemeris lookup.
	EphemerisTimeoutMS int `koanf:"ephemeris_timeout_ms"`

	// EphemerisCacheSize bounds the position cache; 0 disables it.
	EphemerisCacheSize int `koanf:"ephemeris_cache_size"`

	// MinJulianDay is the earliest accepted Julian Day.
	MinJulianDay float64 `koanf:"min_julian_day"`

	// DefaultHouseSystem is used when a request names none.
	DefaultHouseSystem string `koanf:"default_house_system"`

	// AspectMatch is "scan" (first matching type wins) or "nearest".
	AspectMatch string `koanf:"aspect_match"`

	// RetrogradeThreshold marks bodies with a lower daily speed retrograde.
	RetrogradeThreshold float64 `koanf:"retrograde_threshold"`

	// KeyAspects is the number of strongest synastry aspects reported.
	KeyAspects int `koanf:"key_aspects"`

	// Composite adds composite midpoints to synastry reports.
	Composite bool `koanf:"composite"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		MaxBatchSize:        1000,
		StoreCapacity:       10_000,
		EphemerisSource:     SourceTable,
		EphemerisTable:      "data/ephemeris.yaml",
		EphemerisRetries:    2,
		EphemerisTimeoutMS:  5000,
		EphemerisCacheSize:  4096,
		MinJulianDay:        1721425.5,
		DefaultHouseSystem:  "placidus",
		AspectMatch:         MatchScan,
		RetrogradeThreshold: 0,
		KeyAspects:          10,
		Composite:           true,
	}
}

// EphemerisTimeout returns EphemerisTimeoutMS as a duration.
func (c *Config) EphemerisTimeout() time.Duration {
	return time.Duration(c.EphemerisTimeoutMS) * time.Millisecond
}

var houseSystems = []interface{}{
	"placidus", "koch", "equal", "whole_sign", "campanus",
	"regiomontanus", "topocentric", "alcabitius", "morinus", "porphyrius",
}

// Validate checks every field.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.Required, validation.In("text", "json")),
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
		validation.Field(&c.WorkerCount, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxBatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.StoreCapacity, validation.Required, validation.Min(1)),
		validation.Field(&c.EphemerisSource, validation.Required, validation.In(SourceTable, SourceRemote)),
		validation.Field(&c.EphemerisTable, validation.When(c.EphemerisSource == SourceTable, validation.Required)),
		validation.Field(&c.EphemerisURL,
			validation.When(c.EphemerisSource == SourceRemote, validation.Required),
			is.URL,
		),
		validation.Field(&c.EphemerisRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.EphemerisTimeoutMS, validation.Required, validation.Min(1)),
		validation.Field(&c.EphemerisCacheSize, validation.Min(0)),
		validation.Field(&c.DefaultHouseSystem, validation.Required, validation.In(houseSystems...)),
		validation.Field(&c.AspectMatch, validation.Required, validation.In(MatchScan, MatchNearest)),
		validation.Field(&c.KeyAspects, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
