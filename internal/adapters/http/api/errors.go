package api

import (
	"errors"
	"net/http"

	"github.com/okian/astrolabe/internal/domain/model"
	"github.com/okian/astrolabe/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrMissingID   = errors.New("missing chart id")
	ErrInvalidTime = errors.New("invalid at; must be RFC3339")
)

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindInvalidBirthData, model.KindInvalidInput:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindHouseCalculation:
		return http.StatusUnprocessableEntity
	case model.KindBackpressure:
		return http.StatusTooManyRequests
	case model.KindEphemeris:
		return http.StatusBadGateway
	case model.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeResult writes an envelope with the status of its failure kind, or 200.
func writeResult[T any](w http.ResponseWriter, res model.Result[T]) {
	status := http.StatusOK
	if !res.OK() {
		status = statusFor(res.Failure.Kind)
	}
	writeJSON(w, status, types.FromResult(res))
}

// writeKindError writes err as an ErrorResponse using its classified kind.
func writeKindError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	writeError(w, statusFor(kind), string(kind), err)
}
