package httputil

import (
	"errors"
	"strings"
	"testing"
)

func TestReadLimitedBody_AllowsWithinLimit(t *testing.T) {
	body, err := ReadLimitedBody(strings.NewReader(`{"v":1}`), 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(body) != `{"v":1}` {
		t.Fatalf("unexpected body: %s", string(body))
	}
}

func TestReadLimitedBody_AllowsExactLimit(t *testing.T) {
	body, err := ReadLimitedBody(strings.NewReader("12345"), 5)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(body) != "12345" {
		t.Fatalf("unexpected body: %s", string(body))
	}
}

func TestReadLimitedBody_RejectsOversize(t *testing.T) {
	body, err := ReadLimitedBody(strings.NewReader("helloworld"), 5)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("unexpected body: %s", string(body))
	}
}

func TestReadLimitedBody_NoLimit(t *testing.T) {
	body, err := ReadLimitedBody(strings.NewReader("helloworld"), 0)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(body) != "helloworld" {
		t.Fatalf("unexpected body: %s", string(body))
	}
}
