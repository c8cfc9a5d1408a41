package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTemporary = errors.New("temporary error")
	errFatal     = errors.New("fatal error")
)

func isTemporary(err error) bool { return errors.Is(err, errTemporary) }

func TestRetry(t *testing.T) {
	tests := []struct {
		name         string
		maxAttempts  int
		failures     []error
		wantValue    string
		wantErr      error
		wantAttempts int
		wantDelays   []int
	}{
		{
			name:         "succeeds first attempt",
			maxAttempts:  3,
			wantValue:    "ok",
			wantAttempts: 1,
		},
		{
			name:         "succeeds after retries",
			maxAttempts:  3,
			failures:     []error{errTemporary, errTemporary},
			wantValue:    "ok",
			wantAttempts: 3,
			wantDelays:   []int{1, 2},
		},
		{
			name:         "exhausts attempts",
			maxAttempts:  3,
			failures:     []error{errTemporary, errTemporary, errTemporary, errTemporary},
			wantErr:      errTemporary,
			wantAttempts: 3,
			wantDelays:   []int{1, 2},
		},
		{
			name:         "non retryable stops",
			maxAttempts:  3,
			failures:     []error{errFatal},
			wantErr:      errFatal,
			wantAttempts: 1,
		},
		{
			name:         "zero attempts runs once",
			maxAttempts:  0,
			failures:     []error{errTemporary},
			wantErr:      errTemporary,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int
			var delays []int
			got, err := Retry(context.Background(), tt.maxAttempts, isTemporary,
				func(attempt int) time.Duration {
					delays = append(delays, attempt)
					return 0
				},
				func(_ context.Context, attempt int) (string, error) {
					attempts++
					if attempt <= len(tt.failures) {
						return "", tt.failures[attempt-1]
					}
					return "ok", nil
				})

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Retry() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.wantValue {
				t.Errorf("Retry() value = %q, want %q", got, tt.wantValue)
			}
			if attempts != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantAttempts)
			}
			if len(delays) != len(tt.wantDelays) {
				t.Fatalf("delays = %v, want %v", delays, tt.wantDelays)
			}
			for i := range delays {
				if delays[i] != tt.wantDelays[i] {
					t.Errorf("delays = %v, want %v", delays, tt.wantDelays)
				}
			}
		})
	}
}

func TestRetry_NilClassifierRetriesEverything(t *testing.T) {
	var attempts int
	_, err := Retry(context.Background(), 2, nil, nil, func(context.Context, int) (int, error) {
		attempts++
		return 0, errFatal
	})
	if !errors.Is(err, errFatal) || attempts != 2 {
		t.Errorf("Retry() = %v after %d attempts, want errFatal after 2", err, attempts)
	}
}

func TestRetry_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts int
	_, err := Retry(ctx, 3, nil,
		func(int) time.Duration { return time.Second },
		func(context.Context, int) (int, error) {
			attempts++
			cancel()
			return 0, errTemporary
		})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Retry(ctx, 3, nil, nil, func(context.Context, int) (int, error) {
		called = true
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Errorf("Retry() = %v, called = %v; want context.Canceled without calling fn", err, called)
	}
}
