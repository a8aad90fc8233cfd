package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"status", status.Error(codes.NotFound, "app not found"), codes.NotFound},
		{"wrapped api error", fmt.Errorf("update: %w", &Error{Code: codes.InvalidArgument}), codes.InvalidArgument},
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"plain", errors.New("connection reset"), codes.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Code != tt.code {
				t.Errorf("expected %s, got %s", tt.code, got.Code)
			}
		})
	}

	if FromError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestIsNotFoundError(t *testing.T) {
	if !IsNotFoundError(&Error{Code: codes.NotFound, Message: "gone"}) {
		t.Error("expected api error to be recognised")
	}
	if !IsNotFoundError(WithRetry(status.Error(codes.NotFound, "gone"), nil)) {
		t.Error("expected status error to be recognised")
	}
	if IsNotFoundError(&Error{Code: codes.Unavailable}) {
		t.Error("unavailable is not NotFound")
	}
}

func TestFromStatus(t *testing.T) {
	if FromStatus(status.New(codes.OK, "")) != nil {
		t.Error("OK status should not produce an error")
	}
	err := FromStatus(status.New(codes.PermissionDenied, "no"))
	if err == nil || err.Code != codes.PermissionDenied || err.Message != "no" {
		t.Errorf("unexpected conversion: %#v", err)
	}
}

func TestWithRetry(t *testing.T) {
	if WithRetry(nil, func() {}) != nil {
		t.Fatal("expected nil")
	}

	calls := 0
	err := WithRetry(&Error{Code: codes.Aborted, Message: "conflict"}, func() { calls++ })

	r, ok := CanRetry(fmt.Errorf("create release: %w", err))
	if !ok {
		t.Fatal("expected retry capability")
	}
	r.Retry()
	if calls != 1 {
		t.Errorf("expected 1 retry, got %d", calls)
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Code != codes.Aborted {
		t.Errorf("expected wrapped api error, got %v", err)
	}

	if _, ok := CanRetry(errors.New("plain")); ok {
		t.Error("plain errors cannot be retried")
	}
}
