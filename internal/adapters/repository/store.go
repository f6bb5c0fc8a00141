// Package repository keeps computed charts addressable by id.
package repository

import (
	"context"

	"github.com/okian/astrolabe/internal/domain/model"
)

// Store provides read/write access to computed charts.
type Store interface {
	// Save stores a copy of c under a fresh id and returns the stored chart.
	Save(ctx context.Context, c *model.Chart) (*model.Chart, error)

	// Get returns the chart stored under id.
	// Returns ErrNotFound if the id is unknown or was evicted.
	Get(ctx context.Context, id string) (*model.Chart, error)

	// Count returns the number of charts held.
	Count(ctx context.Context) int
}
