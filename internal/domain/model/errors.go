package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed calculation.
type ErrorKind string

// Error kinds surfaced by public operations.
const (
	KindInvalidBirthData ErrorKind = "invalid_birth_data"
	KindInvalidInput     ErrorKind = "invalid_input"
	KindEphemeris        ErrorKind = "ephemeris"
	KindHouseCalculation ErrorKind = "house_calculation"
	KindCancelled        ErrorKind = "cancelled"
	KindNotFound         ErrorKind = "not_found"
	KindBackpressure     ErrorKind = "backpressure"
	KindInternal         ErrorKind = "internal"
)

// Sentinel kinds. An *Error matches the sentinel of its kind with errors.Is.
var (
	ErrInvalidBirthData = errors.New("invalid birth data")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEphemeris        = errors.New("ephemeris failure")
	ErrHouseCalculation = errors.New("house calculation failed")
	ErrCancelled        = errors.New("calculation cancelled")
	ErrNotFound         = errors.New("not found")
	ErrBackpressure     = errors.New("backpressure")
	ErrInternal         = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidBirthData: ErrInvalidBirthData,
	KindInvalidInput:     ErrInvalidInput,
	KindEphemeris:        ErrEphemeris,
	KindHouseCalculation: ErrHouseCalculation,
	KindCancelled:        ErrCancelled,
	KindNotFound:         ErrNotFound,
	KindBackpressure:     ErrBackpressure,
	KindInternal:         ErrInternal,
}

// Error is a classified failure. Detail carries an optional payload such as
// the offending field or the provider response.
type Error struct {
	Kind   ErrorKind
	Op     string
	Err    error
	Detail any
}

// NewError builds a classified error for op.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, kindSentinels[e.Kind])
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf classifies an arbitrary error. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
