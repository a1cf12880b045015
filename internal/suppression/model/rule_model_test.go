package model

import (
	"testing"
	"time"
)

func TestRule_Expired(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		rule     Rule
		at       time.Time
		expected bool
	}{
		{
			name:     "bounded_before_expiry",
			rule:     NewRule("hive-1", KindBounded, time.Hour, created),
			at:       created.Add(59 * time.Minute),
			expected: false,
		},
		{
			name:     "bounded_at_expiry",
			rule:     NewRule("hive-1", KindBounded, time.Hour, created),
			at:       created.Add(time.Hour),
			expected: true,
		},
		{
			name:     "session_never_expires",
			rule:     NewRule("hive-1", KindSession, time.Hour, created),
			at:       created.Add(24 * 365 * time.Hour),
			expected: false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.rule.Expired(test.at); got != test.expected {
				t.Errorf("calling Expired, got: %v, expected: %v", got, test.expected)
			}
		})
	}
}

func TestNewRule_SessionHasNoDuration(t *testing.T) {
	r := NewRule("hive-1", KindSession, time.Hour, time.Now())
	if r.DurationMs != 0 {
		t.Errorf("session rule duration, got: %d, expected: 0", r.DurationMs)
	}
	if !r.ExpiresAt().IsZero() {
		t.Errorf("session rule expiry, got: %v, expected zero", r.ExpiresAt())
	}
}
