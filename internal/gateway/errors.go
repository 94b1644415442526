package gateway

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

var (
	// ErrReconciliation wraps every failure to obtain an authoritative status.
	ErrReconciliation = errors.New("gateway: status reconciliation failed")

	// ErrUnavailable marks transient failures: network errors, timeouts, 5xx answers.
	ErrUnavailable = errors.New("gateway: unavailable")

	// ErrMalformedResponse is returned when the answer matches no known shape.
	ErrMalformedResponse = errors.New("gateway: malformed response")

	// ErrRejected is returned when the gateway refuses the request itself
	// (bad credentials, missing fields, creation not accepted).
	ErrRejected = errors.New("gateway: request rejected")
)

func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// ClassifyError maps an error to a metrics label.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "other"
	}
}
