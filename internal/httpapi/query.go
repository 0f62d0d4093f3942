package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/agent"
)

// statusClientClosedRequest is the nginx convention for a caller that
// disconnected before the answer was ready.
const statusClientClosedRequest = 499

// queryRequest mirrors the public contract: question plus optional loop
// overrides. EnableWebSearch is a pointer so an absent field keeps the
// configured default instead of reading as false.
type queryRequest struct {
	Question        string `json:"question"`
	MaxIterations   int    `json:"max_iterations"`
	TopK            int    `json:"top_k"`
	EnableWebSearch *bool  `json:"enable_web_search"`
}

// handleQuery runs one question through the decision loop.
// POST /api/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not initialized yet")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params, err := s.buildParams(r, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if timeout := s.conf().Agent.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := s.agent.RunQuery(ctx, params)
	if err != nil {
		s.writeQueryError(w, r, params.RequestID, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// buildParams validates the request against the configured limits and fills
// defaults for absent fields.
func (s *Server) buildParams(r *http.Request, req queryRequest) (agent.Params, error) {
	cfg := s.conf()
	p := agent.Params{
		RequestID:       requestIDFromContext(r.Context()),
		Question:        req.Question,
		MaxIterations:   req.MaxIterations,
		TopK:            req.TopK,
		EnableWebSearch: cfg.Agent.EnableWebSearch,
	}
	if strings.TrimSpace(p.Question) == "" {
		return p, fmt.Errorf("question is required")
	}

	if p.MaxIterations == 0 {
		p.MaxIterations = cfg.Agent.MaxIterations
	}
	if p.TopK == 0 {
		p.TopK = cfg.Agent.TopK
	}
	if req.EnableWebSearch != nil {
		p.EnableWebSearch = *req.EnableWebSearch
	}

	if p.MaxIterations < 1 || p.MaxIterations > cfg.Agent.MaxIterationsLimit {
		return p, fmt.Errorf("max_iterations must be between 1 and %d", cfg.Agent.MaxIterationsLimit)
	}
	if p.TopK < 1 || p.TopK > cfg.Agent.TopKLimit {
		return p, fmt.Errorf("top_k must be between 1 and %d", cfg.Agent.TopKLimit)
	}
	return p, nil
}

func (s *Server) writeQueryError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	switch {
	case errors.Is(err, agent.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "question is required")
	case errors.Is(err, agent.ErrRequestCanceled):
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Query deadline exceeded",
				zap.String("request_id", requestID),
			)
			writeError(w, http.StatusGatewayTimeout, "query timed out")
			return
		}
		// The caller went away; the status is for the access log.
		s.logger.Info("Client canceled query",
			zap.String("request_id", requestID),
		)
		writeError(w, statusClientClosedRequest, "client closed request")
	default:
		s.logger.Error("Query failed",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to process the question")
	}
}
