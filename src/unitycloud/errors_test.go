package unitycloud

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError_Unwrap(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{404, ErrNotFound},
		{500, ErrTransport},
		{502, ErrTransport},
	}

	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &APIError{StatusCode: tt.code, URL: "https://example.com", Body: "{}"})
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: error %v is not %v", tt.code, err, tt.want)
		}
	}
}

func TestWrapError_Unauthorized(t *testing.T) {
	err := WrapError(fmt.Errorf("listing projects: %w", &APIError{StatusCode: 403}))

	var userErr *UserError
	if !errors.As(err, &userErr) {
		t.Fatalf("WrapError() did not produce a UserError: %v", err)
	}
	if !strings.Contains(userErr.Hint, "UCB_API_KEY") {
		t.Errorf("hint does not mention UCB_API_KEY: %q", userErr.Hint)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("wrapped error lost ErrUnauthorized")
	}
}

func TestWrapError_PassThrough(t *testing.T) {
	plain := errors.New("something else")
	if got := WrapError(plain); got != plain {
		t.Errorf("WrapError() = %v, want original error", got)
	}
	if got := WrapError(nil); got != nil {
		t.Errorf("WrapError(nil) = %v, want nil", got)
	}
}
