// Package httpapi exposes the decision loop over a JSON API: the query
// endpoint, a service banner, and live progress streams (SSE, WebSocket,
// and a polling fallback). Middleware covers request IDs, CORS, access
// logging, Redis-backed rate limiting and idempotency.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/agent"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/streaming"
)

const (
	serviceName    = "Legal RAG AI Engine"
	serviceVersion = "1.0.0"
)

// QueryRunner is the slice of the orchestrator the API needs.
type QueryRunner interface {
	RunQuery(ctx context.Context, p agent.Params) (*agent.AnswerPayload, error)
}

// Server wires handlers and middleware for the engine API.
type Server struct {
	agent   QueryRunner
	events  *streaming.Manager
	cfg     *config.EngineConfig
	liveCfg func() *config.EngineConfig
	redis   *redis.Client
	logger  *zap.Logger
}

// NewServer builds the API server. redisClient backs the rate limiter and
// idempotency cache; nil disables both. agent may be nil until the engine
// finishes initializing, queries then get 503.
func NewServer(agent QueryRunner, events *streaming.Manager, cfg *config.EngineConfig, redisClient *redis.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		agent:  agent,
		events: events,
		cfg:    cfg,
		redis:  redisClient,
		logger: logger,
	}
}

// SetConfigProvider lets hot-reloaded agent tunables reach new requests.
// Middleware settings stay fixed at the values Handler was built with.
func (s *Server) SetConfigProvider(fn func() *config.EngineConfig) {
	s.liveCfg = fn
}

// conf returns the current configuration for a request.
func (s *Server) conf() *config.EngineConfig {
	if s.liveCfg != nil {
		if c := s.liveCfg(); c != nil {
			return c
		}
	}
	return s.cfg
}

// Handler returns the full route set behind the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/query", s.handleQuery)

	stream := NewStreamingHandler(s.events, s.logger)
	stream.RegisterRoutes(mux)

	chain := []func(http.Handler) http.Handler{
		requestIDMiddleware(),
	}
	if s.cfg.API.CORSEnabled {
		chain = append(chain, corsMiddleware())
	}
	chain = append(chain, accessLogMiddleware(s.logger))
	if s.redis != nil && s.cfg.API.RateLimitPerMinute > 0 {
		chain = append(chain, NewRateLimiter(s.redis, s.cfg.API.RateLimitPerMinute, s.logger).Middleware)
	}
	if s.redis != nil && s.cfg.API.IdempotencyEnabled {
		chain = append(chain, NewIdempotencyMiddleware(s.redis, s.logger).Middleware)
	}
	return Chain(mux, chain...)
}

// handleRoot serves the service banner on exactly "/".
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
		"status":  "running",
		"docs":    "/api/info",
	})
}

// handleInfo describes the API surface and the loop defaults in play.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cfg := s.conf()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"query":         "POST /api/query",
			"stream_sse":    "GET /api/stream/sse?request_id=<id>",
			"stream_ws":     "GET /api/stream/ws?request_id=<id>",
			"stream_events": "GET /api/stream/events?request_id=<id>",
		},
		"defaults": map[string]interface{}{
			"max_iterations":    cfg.Agent.MaxIterations,
			"top_k":             cfg.Agent.TopK,
			"enable_web_search": cfg.Agent.EnableWebSearch,
		},
		"limits": map[string]interface{}{
			"max_iterations": cfg.Agent.MaxIterationsLimit,
			"top_k":          cfg.Agent.TopKLimit,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	})
}
