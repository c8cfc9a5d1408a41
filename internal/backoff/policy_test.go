package backoff

import (
	"testing"
	"time"
)

func TestLinearPolicy_Delay(t *testing.T) {
	tests := []struct {
		name    string
		policy  LinearPolicy
		attempt int
		want    time.Duration
	}{
		{name: "default first", policy: DefaultPolicy(), attempt: 1, want: 1500 * time.Millisecond},
		{name: "default second", policy: DefaultPolicy(), attempt: 2, want: 3000 * time.Millisecond},
		{name: "default third", policy: DefaultPolicy(), attempt: 3, want: 4500 * time.Millisecond},
		{name: "zero attempt clamps", policy: DefaultPolicy(), attempt: 0, want: 1500 * time.Millisecond},
		{name: "capped", policy: LinearPolicy{Base: time.Second, Max: 2 * time.Second}, attempt: 5, want: 2 * time.Second},
		{name: "under cap", policy: LinearPolicy{Base: time.Second, Max: 2 * time.Second}, attempt: 1, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}
