package backoff

import (
	"testing"
	"time"
)

func TestLinearDelays(t *testing.T) {
	b := New(DefaultPolicy())

	want := []time.Duration{time.Second, 11 * time.Second, 21 * time.Second}
	for i, w := range want {
		d, ok := b.Next()
		if !ok {
			t.Fatalf("retry %d: budget exhausted early", i)
		}
		if d != w {
			t.Errorf("retry %d: expected %v, got %v", i, w, d)
		}
	}

	if _, ok := b.Next(); ok {
		t.Fatalf("expected budget to be exhausted after %d retries", len(want))
	}
	if !b.Exhausted() {
		t.Errorf("expected Exhausted to report true")
	}
}

func TestLinearReset(t *testing.T) {
	b := New(Policy{Base: 10 * time.Millisecond, Increment: 5 * time.Millisecond, MaxRetries: 2})
	b.Next()
	b.Next()
	b.Reset()

	if b.Retries() != 0 {
		t.Fatalf("expected 0 retries after reset, got %d", b.Retries())
	}
	d, ok := b.Next()
	if !ok || d != 10*time.Millisecond {
		t.Errorf("expected base delay after reset, got %v (ok=%v)", d, ok)
	}
}

func TestPolicyClamp(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		first  time.Duration
		ok     bool
	}{
		{"zero retries", Policy{Base: time.Second, MaxRetries: 0}, 0, false},
		{"negative values", Policy{Base: -time.Second, Increment: -time.Second, MaxRetries: 1}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := New(tt.policy).Next()
			if ok != tt.ok || d != tt.first {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.first, tt.ok, d, ok)
			}
		})
	}
}
