package ratelimiter

import (
	"testing"
	"time"
)

func TestTokenBucket_BurstUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d denied, want allowed within capacity", i+1)
		}
	}
	if tb.Allow() {
		t.Error("request over capacity allowed, want denied")
	}
}

func TestTokenBucket_Refills(t *testing.T) {
	tb := NewTokenBucket(100, 1)

	if !tb.Allow() {
		t.Fatal("first request denied")
	}
	if tb.Allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(20 * time.Millisecond)
	if !tb.Allow() {
		t.Error("request denied after refill period")
	}
}

func TestSlidingWindowCounter_Limit(t *testing.T) {
	swc := NewSlidingWindowCounter(2, time.Second, 4)

	if !swc.Allow() || !swc.Allow() {
		t.Fatal("requests within limit denied")
	}
	if swc.Allow() {
		t.Error("request over limit allowed, want denied")
	}
}

func TestSlidingWindowCounter_WindowSlides(t *testing.T) {
	swc := NewSlidingWindowCounter(1, 40*time.Millisecond, 4)

	if !swc.Allow() {
		t.Fatal("first request denied")
	}
	if swc.Allow() {
		t.Fatal("second request allowed within window")
	}

	time.Sleep(60 * time.Millisecond)
	if !swc.Allow() {
		t.Error("request denied after window slid past")
	}
}
