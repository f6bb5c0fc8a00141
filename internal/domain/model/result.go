package model

import (
	"errors"
	"time"
)

// Accuracy grades how faithful a calculation is.
type Accuracy string

// Accuracy levels.
const (
	AccuracyHigh   Accuracy = "high"
	AccuracyMedium Accuracy = "medium"
	AccuracyLow    Accuracy = "low"
)

// Failure describes why a calculation did not produce a value.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Detail  any       `json:"detail,omitempty"`
}

// Result is the outcome of a public calculation: either a value or a
// classified failure, always with the elapsed time and an accuracy grade.
type Result[T any] struct {
	Value    T
	Failure  *Failure
	Elapsed  time.Duration
	Accuracy Accuracy
}

// OK reports whether the calculation succeeded.
func (r Result[T]) OK() bool { return r.Failure == nil }

// Err returns the failure as an error, or nil.
func (r Result[T]) Err() error {
	if r.Failure == nil {
		return nil
	}
	return &Error{Kind: r.Failure.Kind, Op: "result", Err: errors.New(r.Failure.Message), Detail: r.Failure.Detail}
}

// Succeed builds a successful result.
func Succeed[T any](v T, elapsed time.Duration, accuracy Accuracy) Result[T] {
	return Result[T]{Value: v, Elapsed: elapsed, Accuracy: accuracy}
}

// Fail builds a failed result from err. Failed results are graded low.
func Fail[T any](err error, elapsed time.Duration) Result[T] {
	f := &Failure{Kind: KindOf(err), Message: err.Error()}
	var e *Error
	if errors.As(err, &e) {
		f.Detail = e.Detail
	}
	return Result[T]{Failure: f, Elapsed: elapsed, Accuracy: AccuracyLow}
}
