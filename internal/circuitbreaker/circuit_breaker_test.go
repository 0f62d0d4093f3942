package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestCircuitBreakerStates(t *testing.T) {
	logger := zaptest.NewLogger(t)
	config := DefaultConfig()
	config.FailureThreshold = 3
	config.SuccessThreshold = 2
	config.MaxRequests = 5
	config.Timeout = 100 * time.Millisecond
	config.Interval = 200 * time.Millisecond

	cb := NewCircuitBreaker("qdrant", config, logger)
	ctx := context.Background()

	if cb.State() != StateClosed {
		t.Errorf("Expected initial state to be closed, got %s", cb.State())
	}

	// Successful calls keep the breaker closed
	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Errorf("Expected success, got error: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected state to remain closed, got %s", cb.State())
	}

	// Reaching the failure threshold trips the breaker
	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, func() error { return errors.New("connection refused") }); err == nil {
			t.Error("Expected error, got nil")
		}
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected state to be open, got %s", cb.State())
	}

	// Open breaker rejects without invoking fn
	if err := cb.Execute(ctx, func() error { return nil }); err != ErrCircuitBreakerOpen {
		t.Errorf("Expected circuit breaker open error, got %v", err)
	}

	// After the open timeout the breaker probes half-open
	time.Sleep(150 * time.Millisecond)
	cb.beforeRequest()

	if cb.State() != StateHalfOpen {
		t.Errorf("Expected state to be half-open, got %s", cb.State())
	}

	// Enough successes in half-open recover to closed
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Errorf("Expected success, got error: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected state to be closed, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailure(t *testing.T) {
	logger := zaptest.NewLogger(t)
	config := DefaultConfig()
	config.FailureThreshold = 2
	config.Timeout = 50 * time.Millisecond

	cb := NewCircuitBreaker("ollama", config, logger)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cb.Execute(ctx, func() error { return errors.New("timeout") })
	}
	if cb.State() != StateOpen {
		t.Fatalf("Expected open after failures, got %s", cb.State())
	}

	time.Sleep(80 * time.Millisecond)

	// A single failure while probing reopens immediately
	cb.Execute(ctx, func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("Expected open after half-open failure, got %s", cb.State())
	}
}

func TestCircuitBreakerMaxRequests(t *testing.T) {
	logger := zaptest.NewLogger(t)
	config := DefaultConfig()
	config.MaxRequests = 2
	config.Timeout = 100 * time.Millisecond
	config.SuccessThreshold = 5 // keep it in half-open for the whole test

	cb := NewCircuitBreaker("searxng", config, logger)
	ctx := context.Background()

	// Force to half-open state
	cb.mutex.Lock()
	cb.state = StateHalfOpen
	cb.generation++
	cb.counts = Counts{}
	cb.mutex.Unlock()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Errorf("Expected success, got error: %v", err)
		}
	}

	// Third concurrent probe is rejected
	if err := cb.Execute(ctx, func() error { return nil }); err != ErrTooManyRequests {
		t.Errorf("Expected too many requests error, got %v", err)
	}
}

func TestCircuitBreakerCounts(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cb := NewCircuitBreaker("embedder", DefaultConfig(), logger)
	ctx := context.Background()

	cb.Execute(ctx, func() error { return nil })
	cb.Execute(ctx, func() error { return errors.New("boom") })
	cb.Execute(ctx, func() error { return nil })

	counts := cb.Counts()
	if counts.Requests != 3 {
		t.Errorf("Expected 3 requests, got %d", counts.Requests)
	}
	if counts.TotalSuccesses != 2 {
		t.Errorf("Expected 2 successes, got %d", counts.TotalSuccesses)
	}
	if counts.TotalFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", counts.TotalFailures)
	}
}

func TestStateChangeCallback(t *testing.T) {
	logger := zaptest.NewLogger(t)
	config := DefaultConfig()
	config.FailureThreshold = 2

	var callbackCalled bool
	var fromState, toState State
	config.OnStateChange = func(name string, from State, to State) {
		callbackCalled = true
		fromState = from
		toState = to
	}

	cb := NewCircuitBreaker("qdrant", config, logger)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cb.Execute(ctx, func() error { return errors.New("boom") })
	}

	if !callbackCalled {
		t.Error("Expected state change callback to be called")
	}
	if fromState != StateClosed || toState != StateOpen {
		t.Errorf("Expected transition from closed to open, got %s to %s", fromState, toState)
	}
}
