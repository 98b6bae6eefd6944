package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestRelayError(t *testing.T) {
	t.Run("error message format", func(t *testing.T) {
		err := NewNotFoundError("alpha", "v1")
		msg := err.Error()

		for _, s := range []string{"not_found_error", "alpha", "v1", "404"} {
			if !strings.Contains(msg, s) {
				t.Errorf("error message should contain %q, got %q", s, msg)
			}
		}
	})

	t.Run("HTTP status codes", func(t *testing.T) {
		tests := []struct {
			name     string
			err      *RelayError
			wantCode int
		}{
			{"decode", NewDecodeError("s", "msg"), 400},
			{"malformed", NewMalformedPayloadError("s", "msg"), 422},
			{"not found", NewNotFoundError("s", "v"), 404},
			{"rate limit", NewRateLimitError("s", "msg"), 429},
			{"internal", NewInternalError("s", "msg"), 500},
			{"zero value", &RelayError{}, 500},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.err.HTTPStatusCode(); got != tt.wantCode {
					t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.wantCode)
				}
			})
		}
	})

	t.Run("sentinel matching", func(t *testing.T) {
		tests := []struct {
			err  error
			kind error
		}{
			{NewDecodeError("s", "msg"), ErrDecode},
			{NewMalformedPayloadError("s", "msg"), ErrMalformedPayload},
			{NewNotFoundError("s", "v"), ErrNotFound},
			{NewDeliveryError("s", io.ErrClosedPipe), ErrDelivery},
			{NewRateLimitError("s", "msg"), ErrRateLimited},
			{NewInternalError("s", "msg"), ErrInternal},
		}
		for _, tt := range tests {
			if !stderrors.Is(tt.err, tt.kind) {
				t.Errorf("%v should match %v", tt.err, tt.kind)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !stderrors.Is(wrapped, tt.kind) {
				t.Errorf("wrapped %v should match %v", tt.err, tt.kind)
			}
		}
		if stderrors.Is(NewDecodeError("s", "msg"), ErrNotFound) {
			t.Error("decode error must not match ErrNotFound")
		}
	})

	t.Run("cause is reachable", func(t *testing.T) {
		err := NewDeliveryError("s", io.ErrClosedPipe)
		if !stderrors.Is(err, io.ErrClosedPipe) {
			t.Error("expected cause to be unwrapped")
		}
		withCause := NewDecodeError("s", "bad").WithCause(io.ErrUnexpectedEOF)
		if !stderrors.Is(withCause, io.ErrUnexpectedEOF) || !stderrors.Is(withCause, ErrDecode) {
			t.Error("WithCause should keep kind and add cause")
		}
	})
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"decode", NewDecodeError("s", "msg"), true},
		{"malformed", NewMalformedPayloadError("s", "msg"), true},
		{"delivery", NewDeliveryError("s", nil), true},
		{"rate limit", NewRateLimitError("s", "msg"), true},
		{"not found", NewNotFoundError("s", "v"), false},
		{"internal", NewInternalError("s", "msg"), false},
		{"transport", io.EOF, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewNotFoundError("s", "v"))
	relayErr, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find RelayError")
	}
	if relayErr.HTTPStatusCode() != http.StatusNotFound {
		t.Errorf("status = %d, want %d", relayErr.HTTPStatusCode(), http.StatusNotFound)
	}
	if _, ok := As(io.EOF); ok {
		t.Error("As should fail for plain errors")
	}
}
