// Package errors defines unified error types for relay operations.
// Every failure the store, the registry or the ingest path can produce is
// mapped to one of these kinds.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Sentinels for errors.Is matching. A RelayError unwraps to the sentinel of
// its kind.
var (
	ErrDecode           = stderrors.New("decode error")
	ErrMalformedPayload = stderrors.New("malformed payload")
	ErrNotFound         = stderrors.New("not found")
	ErrDelivery         = stderrors.New("delivery failed")
	ErrRateLimited      = stderrors.New("rate limited")
	ErrInternal         = stderrors.New("internal error")
)

// Common error types as constants for consistency.
const (
	TypeDecode           = "decode_error"
	TypeMalformedPayload = "malformed_payload"
	TypeNotFound         = "not_found_error"
	TypeDelivery         = "delivery_error"
	TypeRateLimit        = "rate_limit_error"
	TypeInternalError    = "internal_error"
)

// RelayError represents a standardized relay error.
// It carries everything needed for logging and for the client response.
type RelayError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Session    string `json:"session,omitempty"`
	VectorID   string `json:"vector_id,omitempty"`
	// Recoverable reports whether a long-lived connection may keep going
	// after this error.
	Recoverable bool  `json:"-"`
	Cause       error `json:"-"`

	kind error
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	msg := fmt.Sprintf("[%s] %s (session=%s, vector=%s, code=%d)",
		e.Type, e.Message, e.Session, e.VectorID, e.StatusCode)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the kind sentinel and the cause.
func (e *RelayError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *RelayError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// WithCause returns a copy of e with the given cause attached.
func (e *RelayError) WithCause(cause error) *RelayError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// NewDecodeError creates a decode error (400): the payload is not valid JSON
// or is not shaped like a vector submission.
func NewDecodeError(session, message string) *RelayError {
	return &RelayError{
		StatusCode:  http.StatusBadRequest,
		Message:     message,
		Type:        TypeDecode,
		Session:     session,
		Recoverable: true,
		kind:        ErrDecode,
	}
}

// NewMalformedPayloadError creates a malformed payload error (422): valid JSON
// missing the fields a vector id is derived from.
func NewMalformedPayloadError(session, message string) *RelayError {
	return &RelayError{
		StatusCode:  http.StatusUnprocessableEntity,
		Message:     message,
		Type:        TypeMalformedPayload,
		Session:     session,
		Recoverable: true,
		kind:        ErrMalformedPayload,
	}
}

// NewNotFoundError creates a not found error (404).
func NewNotFoundError(session, vectorID string) *RelayError {
	return &RelayError{
		StatusCode: http.StatusNotFound,
		Message:    "vector not found",
		Type:       TypeNotFound,
		Session:    session,
		VectorID:   vectorID,
		kind:       ErrNotFound,
	}
}

// NewDeliveryError creates a delivery error. It is never sent to a client.
func NewDeliveryError(session string, cause error) *RelayError {
	return &RelayError{
		StatusCode:  http.StatusServiceUnavailable,
		Message:     "subscriber delivery failed",
		Type:        TypeDelivery,
		Session:     session,
		Recoverable: true,
		Cause:       cause,
		kind:        ErrDelivery,
	}
}

// NewRateLimitError creates a rate limit error (429).
func NewRateLimitError(session, message string) *RelayError {
	return &RelayError{
		StatusCode:  http.StatusTooManyRequests,
		Message:     message,
		Type:        TypeRateLimit,
		Session:     session,
		Recoverable: true,
		kind:        ErrRateLimited,
	}
}

// NewInternalError creates an internal server error (500).
func NewInternalError(session, message string) *RelayError {
	return &RelayError{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Type:       TypeInternalError,
		Session:    session,
		kind:       ErrInternal,
	}
}

// IsRecoverable reports whether a connection that hit err can keep reading.
// Errors that are not RelayErrors (transport failures) are never recoverable.
func IsRecoverable(err error) bool {
	var relayErr *RelayError
	if stderrors.As(err, &relayErr) {
		return relayErr.Recoverable
	}
	return false
}

// As is a convenience wrapper that extracts a *RelayError.
func As(err error) (*RelayError, bool) {
	var relayErr *RelayError
	ok := stderrors.As(err, &relayErr)
	return relayErr, ok
}
