package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrMalformedPayload = fmt.Errorf("malformed payload")
	ErrUnknownChannel   = fmt.Errorf("unknown notification channel")
	ErrUnknownOperation = fmt.Errorf("unknown chat operation")

	ErrSinkFull   = fmt.Errorf("session buffer full")
	ErrSinkClosed = fmt.Errorf("session closed")
	ErrFeedClosed = fmt.Errorf("change feed closed")

	ErrUnauthenticated = fmt.Errorf("unauthenticated")
)

// ClassifyReason maps a classification failure to a short label used in
// logs and metrics. Errors outside the classification taxonomy map to "other".
func ClassifyReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, ErrUnknownChannel):
		return "unknown_channel"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown_operation"
	default:
		return "other"
	}
}

// Is mirrors the standard library so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
