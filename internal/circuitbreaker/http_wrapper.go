package circuitbreaker

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPWrapper wraps an http.Client with a circuit breaker and records metrics
// consistently. All outbound HTTP collaborators (vector store, LLM, web
// search, embedder) go through one of these.
type HTTPWrapper struct {
	client  *http.Client
	cb      *CircuitBreaker
	name    string
	service string
	logger  *zap.Logger
}

// NewHTTPWrapper creates a new HTTP wrapper with circuit breaker and metrics
func NewHTTPWrapper(client *http.Client, name, service string, cfg Config, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.FailureThreshold == 0 {
		// A zero threshold would trip on the first failure.
		cfg = GetHTTPConfig().ToConfig()
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	cb := NewCircuitBreaker(name, cfg, logger)
	GlobalMetricsCollector.RegisterCircuitBreaker(name, service, cb)
	return &HTTPWrapper{client: client, cb: cb, name: name, service: service, logger: logger}
}

// Do executes an HTTP request through the circuit breaker. 5xx responses are
// treated as failures for breaker purposes; 4xx do not trip the breaker.
func (hw *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := hw.cb.Execute(req.Context(), func() error {
		var err2 error
		resp, err2 = hw.client.Do(req)
		// If transport error, propagate
		if err2 != nil {
			return err2
		}
		// Classify 5xx as breaker failures
		if resp.StatusCode >= 500 {
			return &httpStatusError{code: resp.StatusCode}
		}
		return nil
	})

	state := hw.cb.State()
	success := err == nil
	GlobalMetricsCollector.RecordRequest(hw.name, hw.service, state, success)

	// If breaker failed due to 5xx classification, still return the underlying
	// response so callers can read the status and body.
	if _, ok := err.(*httpStatusError); ok {
		return resp, nil
	}
	return resp, err
}

// State returns the current breaker state
func (hw *HTTPWrapper) State() State {
	return hw.cb.State()
}

// httpStatusError marks 5xx responses for breaker accounting
type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return http.StatusText(e.code) }
