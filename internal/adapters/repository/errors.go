package repository

import "errors"

// Sentinel kinds for chart store errors.
var (
	ErrNotFound = errors.New("chart not found")
	ErrNilChart = errors.New("nil chart")
)
