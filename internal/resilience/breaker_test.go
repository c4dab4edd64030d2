package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if b.Healthy() {
		t.Fatal("open breaker must not report healthy")
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	base := time.Now()
	b.now = func() time.Time { return base }

	_ = b.Execute(func() error { return errors.New("boom") })
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// After the timeout the next call reaches the backend and success closes
	// the circuit again.
	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open call failed: %v", err)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("closed circuit rejected call: %v", err)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	base := time.Now()
	b.now = func() time.Time { return base }
	_ = b.Execute(func() error { return errors.New("boom") })

	b.now = func() time.Time { return base.Add(2 * time.Minute) }
	_ = b.Execute(func() error { return errors.New("still down") })

	b.now = func() time.Time { return base.Add(2*time.Minute + time.Second) }
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopened circuit, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	boom := errors.New("boom")

	_ = b.Execute(func() error { return boom })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return boom })

	// Only one consecutive failure; the circuit stays closed.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("circuit opened too early: %v", err)
	}
}
