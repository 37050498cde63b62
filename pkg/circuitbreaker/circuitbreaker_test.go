package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail() (interface{}, error)    { return nil, errBoom }
func succeed() (interface{}, error) { return "ok", nil }

func TestTripsAfterConsecutiveFailures(t *testing.T) {
	cb := New(2, 1, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(fail); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want boom", err)
		}
	}
	if cb.State() != Open {
		t.Fatalf("State() = %v, want Open", cb.State())
	}

	if _, err := cb.Execute(succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(2, 1, time.Minute)

	cb.Execute(fail)
	cb.Execute(succeed)
	cb.Execute(fail)

	if cb.State() != Closed {
		t.Errorf("State() = %v, want Closed after interleaved success", cb.State())
	}
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New(1, 2, 10*time.Millisecond)

	cb.Execute(fail)
	if cb.State() != Open {
		t.Fatalf("State() = %v, want Open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	// 半开状态下需要连续两次成功才会闭合。
	if _, err := cb.Execute(succeed); err != nil {
		t.Fatalf("Execute() error = %v, want probe allowed", err)
	}
	if cb.State() != HalfOpen {
		t.Fatalf("State() = %v, want HalfOpen", cb.State())
	}

	cb.Execute(succeed)
	if cb.State() != Closed {
		t.Errorf("State() = %v, want Closed after recovery", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(1, 1, 10*time.Millisecond)

	cb.Execute(fail)
	time.Sleep(20 * time.Millisecond)

	cb.Execute(fail)
	if cb.State() != Open {
		t.Errorf("State() = %v, want Open after half-open failure", cb.State())
	}
}
