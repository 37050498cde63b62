package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wavespeed2api/internal/config"
	"wavespeed2api/pkg/circuitbreaker"
)

func TestDo_WithoutBreaker(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := New(config.CircuitBreakerConfig{Enabled: false}, time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()
}

func TestDo_BreakerTripsOnServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client, err := New(config.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          "10s",
	}, time.Second)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// 连续两次 5xx 触发熔断。
	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
		if _, err := client.Do(req); err == nil {
			t.Fatalf("Do() error = nil on request %d, want server error", i+1)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	if _, err := client.Do(req); !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("Do() error = %v, want ErrCircuitOpen", err)
	}
}

func TestNew_InvalidTimeout(t *testing.T) {
	_, err := New(config.CircuitBreakerConfig{Enabled: true, Timeout: "not-a-duration"}, time.Second)
	if err == nil {
		t.Error("New() error = nil, want invalid duration error")
	}
}
