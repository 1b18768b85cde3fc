// Package apperr defines the error taxonomy shared by the console components.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTransport         = errors.New("transport error")
	ErrHTTPStatus        = errors.New("unexpected http status")
	ErrValidation        = errors.New("validation failed")
	ErrBusinessRejection = errors.New("rejected by service")
	ErrCatalogFetch      = errors.New("catalog fetch failed")
)

// Transport wraps a network level failure.
func Transport(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// StatusError is a non-2xx response. It matches ErrHTTPStatus.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.Code) }

func (e *StatusError) Is(target error) bool { return target == ErrHTTPStatus }

// HTTPCode wraps a non-2xx response code.
func HTTPCode(code int) error {
	return &StatusError{Code: code}
}

// Validation builds a local precondition failure.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Kind returns a short label for logs, metrics and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, ErrValidation):
		return "validation"

	case errors.Is(err, ErrBusinessRejection):
		return "business"

	case errors.Is(err, ErrTransport):
		return "transport"

	case errors.Is(err, ErrHTTPStatus):
		return "http"

	case errors.Is(err, ErrCatalogFetch):
		return "catalog"

	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code returned by the console API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrBusinessRejection):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, ErrTransport),
		errors.Is(err, ErrHTTPStatus),
		errors.Is(err, ErrCatalogFetch):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
