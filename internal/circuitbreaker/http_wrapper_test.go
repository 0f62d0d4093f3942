package circuitbreaker

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestHTTPWrapper_ServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
	logger := zaptest.NewLogger(t)
	hw := NewHTTPWrapper(srv.Client(), "qdrant-test-5xx", "vectordb", cfg, logger)

	// 5xx responses still reach the caller but count as breaker failures
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := hw.Do(req)
		if err != nil {
			t.Fatalf("Expected response despite 5xx, got error: %v", err)
		}
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	if hw.State() != StateOpen {
		t.Fatalf("Expected breaker open after repeated 5xx, got %s", hw.State())
	}

	// Open breaker rejects without hitting the server
	before := calls.Load()
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := hw.Do(req); err != ErrCircuitBreakerOpen {
		t.Errorf("Expected circuit breaker open error, got %v", err)
	}
	if calls.Load() != before {
		t.Error("Open breaker should not forward requests to the server")
	}
}

func TestHTTPWrapper_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
	logger := zaptest.NewLogger(t)
	hw := NewHTTPWrapper(srv.Client(), "searxng-test-4xx", "websearch", cfg, logger)

	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := hw.Do(req)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	}

	if hw.State() != StateClosed {
		t.Errorf("4xx responses must not trip the breaker, got %s", hw.State())
	}
}
