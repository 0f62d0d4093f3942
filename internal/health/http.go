package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPHandler serves health endpoints backed by a Manager.
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{manager: manager, logger: logger}
}

// RegisterRoutes mounts the health endpoints on the given mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/health/live", h.handleLiveness)
	mux.HandleFunc("/health/detailed", h.handleDetailed)
}

// handleHealth returns the overall status. With ?cached=true it summarizes
// the last background sweep instead of probing dependencies inline.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var detailed DetailedHealth
	if r.URL.Query().Get("cached") == "true" {
		detailed = Summarize(h.manager.GetLastResults())
	} else {
		detailed = h.manager.GetDetailedHealth(r.Context())
	}

	overall := detailed.Overall

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(overall.Status))
	if err := json.NewEncoder(w).Encode(overall); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// handleReadiness reports whether the service can take traffic.
func (h *HTTPHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ready := h.manager.IsReady(r.Context())
	response := map[string]interface{}{
		"ready":     ready,
		"timestamp": time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}

// handleLiveness reports whether the process should keep running.
func (h *HTTPHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	live := h.manager.IsLive(r.Context())
	response := map[string]interface{}{
		"live":      live,
		"timestamp": time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	if live {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode liveness response", zap.Error(err))
	}
}

// handleDetailed returns per-component results.
func (h *HTTPHandler) handleDetailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var detailed DetailedHealth
	if r.URL.Query().Get("cached") == "true" {
		detailed = Summarize(h.manager.GetLastResults())
	} else {
		detailed = h.manager.GetDetailedHealth(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(detailed.Overall.Status))
	if err := json.NewEncoder(w).Encode(detailed); err != nil {
		h.logger.Error("Failed to encode detailed health response", zap.Error(err))
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	response := map[string]interface{}{
		"error":     message,
		"timestamp": time.Now(),
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// statusCode maps a health status to an HTTP status. Degraded still serves.
func statusCode(status CheckStatus) int {
	switch status {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

// StartHealthServer runs the health endpoints on their own port so probes
// stay reachable while the API server drains.
func StartHealthServer(manager *Manager, port int, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	handler := NewHTTPHandler(manager, logger)
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Health server starting", zap.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server failed", zap.Error(err))
		}
	}()

	return server
}
