package chat

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		retryable  bool
		rateLimit  bool
		overloaded bool
	}{
		{name: "nil", err: nil},
		{name: "status 429", err: &UpstreamError{Status: 429}, retryable: true, rateLimit: true},
		{name: "status 503", err: &UpstreamError{Status: 503}, retryable: true, overloaded: true},
		{name: "status 500", err: &UpstreamError{Status: 500, Message: "internal"}},
		{name: "status 400", err: &UpstreamError{Status: 400, Message: "bad request"}},
		{name: "overloaded message", err: errors.New("The model is overloaded. Please try again later."), retryable: true, overloaded: true},
		{name: "unavailable message", err: errors.New("UNAVAILABLE"), retryable: true, overloaded: true},
		{name: "resource exhausted", err: errors.New("RESOURCE_EXHAUSTED"), retryable: true, rateLimit: true},
		{name: "resource exhausted spaced", err: errors.New("resource exhausted"), retryable: true, rateLimit: true},
		{name: "quota exceeded", err: errors.New("Quota exceeded for metric"), retryable: true, rateLimit: true},
		{name: "wrapped", err: fmt.Errorf("complete: %w", &UpstreamError{Status: 429}), retryable: true, rateLimit: true},
		{name: "plain failure", err: errors.New("invalid argument")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if got := IsRateLimit(tt.err); got != tt.rateLimit {
				t.Errorf("IsRateLimit = %v, want %v", got, tt.rateLimit)
			}
			if got := IsOverloaded(tt.err); got != tt.overloaded {
				t.Errorf("IsOverloaded = %v, want %v", got, tt.overloaded)
			}
		})
	}
}

func TestUpstreamFromGenai(t *testing.T) {
	err := upstreamFromGenai(genai.APIError{Code: 503, Message: "The model is overloaded.", Status: "UNAVAILABLE"})

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("error = %T, want *UpstreamError", err)
	}
	if upstream.Status != 503 || upstream.Message != "The model is overloaded." {
		t.Errorf("upstream = %+v", upstream)
	}
	if !IsOverloaded(err) {
		t.Error("converted error should classify as overloaded")
	}

	plain := errors.New("dial tcp: timeout")
	if got := upstreamFromGenai(plain); got != plain {
		t.Errorf("non-API errors should pass through, got %v", got)
	}
	if upstreamFromGenai(nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestDelay(t *testing.T) {
	if Delay(1) != 1500*time.Millisecond || Delay(2) != 3*time.Second {
		t.Errorf("Delay = %v, %v; want 1.5s, 3s", Delay(1), Delay(2))
	}
}

func TestUpstreamError_Error(t *testing.T) {
	if got := (&UpstreamError{Status: 503}).Error(); got != "Service Unavailable" {
		t.Errorf("Error() = %q", got)
	}
	inner := errors.New("inner")
	e := &UpstreamError{Err: inner}
	if e.Error() != "inner" || !errors.Is(e, inner) {
		t.Errorf("Error() = %q, Unwrap broken", e.Error())
	}
}

func TestRetryReason(t *testing.T) {
	if r := retryReason(&UpstreamError{Status: 429}); r != "rate_limit" {
		t.Errorf("reason = %q", r)
	}
	if r := retryReason(&UpstreamError{Status: 503}); r != "overloaded" {
		t.Errorf("reason = %q", r)
	}
	if r := retryReason(errors.New("x")); r != "other" {
		t.Errorf("reason = %q", r)
	}
}
