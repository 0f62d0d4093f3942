package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/circuitbreaker"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/llm"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/vectordb"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/websearch"
)

// QdrantHealthChecker checks the statute collection. It is the one critical
// dependency: without it every query degrades to the fallback answer.
type QdrantHealthChecker struct {
	timeout time.Duration
}

func NewQdrantHealthChecker() *QdrantHealthChecker {
	return &QdrantHealthChecker{timeout: 5 * time.Second}
}

func (q *QdrantHealthChecker) Name() string           { return "qdrant" }
func (q *QdrantHealthChecker) IsCritical() bool       { return true }
func (q *QdrantHealthChecker) Timeout() time.Duration { return q.timeout }

func (q *QdrantHealthChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: "qdrant", Critical: true}

	client := vectordb.Get()
	if client == nil {
		result.Status = StatusUnhealthy
		result.Message = "Vector store client not initialized"
		return result
	}

	info, err := client.Info(ctx)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Collection info request failed"
		return result
	}

	// Qdrant reports collection status as green/yellow/red.
	switch info.Status {
	case "green", "":
		result.Status = StatusHealthy
		result.Message = "Vector store healthy"
	case "yellow":
		result.Status = StatusDegraded
		result.Message = "Collection optimizing"
	default:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Collection status %s", info.Status)
	}
	if info.PointsCount == 0 {
		result.Status = StatusDegraded
		result.Message = "Collection is empty, run the ingest pipeline"
	}

	result.Details = map[string]interface{}{
		"collection":   info.Name,
		"status":       info.Status,
		"points_count": info.PointsCount,
		"vector_size":  info.VectorSize,
	}
	return result
}

// OllamaHealthChecker checks the inference server. Non-critical: with the
// model down queries still complete with the fixed fallback answer.
type OllamaHealthChecker struct {
	timeout time.Duration
}

func NewOllamaHealthChecker() *OllamaHealthChecker {
	return &OllamaHealthChecker{timeout: 10 * time.Second}
}

func (o *OllamaHealthChecker) Name() string           { return "ollama" }
func (o *OllamaHealthChecker) IsCritical() bool       { return false }
func (o *OllamaHealthChecker) Timeout() time.Duration { return o.timeout }

func (o *OllamaHealthChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: "ollama"}

	client := llm.Get()
	if client == nil {
		result.Status = StatusUnhealthy
		result.Message = "LLM client not initialized"
		return result
	}

	models, err := client.Probe(ctx)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Ollama unreachable"
		return result
	}

	// Model names carry tags (qwen2.5:7b); match on the base name.
	want := strings.SplitN(client.Model(), ":", 2)[0]
	found := false
	for _, m := range models {
		if strings.HasPrefix(m, want) {
			found = true
			break
		}
	}
	if found {
		result.Status = StatusHealthy
		result.Message = "Ollama healthy"
	} else {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("Model %s not pulled", client.Model())
	}

	result.Details = map[string]interface{}{
		"model":        client.Model(),
		"local_models": models,
	}
	return result
}

// SearxngHealthChecker checks the web search instance. Non-critical: web
// search already degrades to empty results inside the loop.
type SearxngHealthChecker struct {
	timeout time.Duration
}

func NewSearxngHealthChecker() *SearxngHealthChecker {
	return &SearxngHealthChecker{timeout: 5 * time.Second}
}

func (s *SearxngHealthChecker) Name() string           { return "searxng" }
func (s *SearxngHealthChecker) IsCritical() bool       { return false }
func (s *SearxngHealthChecker) Timeout() time.Duration { return s.timeout }

func (s *SearxngHealthChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: "searxng"}

	client := websearch.Get()
	if client == nil || !client.Enabled() {
		result.Status = StatusHealthy
		result.Message = "Web search disabled"
		result.Details = map[string]interface{}{"enabled": false}
		return result
	}

	if err := client.Probe(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "SearXNG unreachable"
		return result
	}

	result.Status = StatusHealthy
	result.Message = "SearXNG healthy"
	result.Details = map[string]interface{}{"enabled": true}
	return result
}

// RedisHealthChecker checks the embedding cache. Non-critical: misses just
// cost an embedder round trip.
type RedisHealthChecker struct {
	wrapper *circuitbreaker.RedisWrapper
	timeout time.Duration
}

func NewRedisHealthChecker(wrapper *circuitbreaker.RedisWrapper) *RedisHealthChecker {
	return &RedisHealthChecker{wrapper: wrapper, timeout: 5 * time.Second}
}

func (r *RedisHealthChecker) Name() string           { return "redis" }
func (r *RedisHealthChecker) IsCritical() bool       { return false }
func (r *RedisHealthChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisHealthChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Component: "redis"}

	if r.wrapper == nil {
		result.Status = StatusHealthy
		result.Message = "Embedding cache disabled"
		result.Details = map[string]interface{}{"enabled": false}
		return result
	}

	if r.wrapper.IsCircuitBreakerOpen() {
		result.Status = StatusUnhealthy
		result.Error = "circuit breaker open"
		result.Message = "Redis circuit breaker is open"
		return result
	}

	if err := r.wrapper.Ping(ctx).Err(); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Redis ping failed"
		return result
	}

	latency := time.Since(start)
	if latency > 100*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Redis responding but with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Redis healthy"
	}
	result.Details = map[string]interface{}{
		"latency_ms": latency.Milliseconds(),
	}
	return result
}

// HTTPHealthChecker probes a plain HTTP endpoint, non-2xx is unhealthy. The
// embedding sidecar registers one against its health URL.
type HTTPHealthChecker struct {
	name     string
	url      string
	critical bool
	client   *http.Client
	timeout  time.Duration
}

func NewHTTPHealthChecker(name, url string, critical bool) *HTTPHealthChecker {
	return &HTTPHealthChecker{
		name:     name,
		url:      url,
		critical: critical,
		client:   &http.Client{Timeout: 5 * time.Second},
		timeout:  5 * time.Second,
	}
}

func (h *HTTPHealthChecker) Name() string           { return h.name }
func (h *HTTPHealthChecker) IsCritical() bool       { return h.critical }
func (h *HTTPHealthChecker) Timeout() time.Duration { return h.timeout }

func (h *HTTPHealthChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Component: h.name, Critical: h.critical}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		return result
	}
	resp, err := h.client.Do(req)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = fmt.Sprintf("%s unreachable", h.name)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("HTTP status %d", resp.StatusCode)
		return result
	}
	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("%s healthy", h.name)
	result.Details = map[string]interface{}{"url": h.url}
	return result
}

// CustomHealthChecker wraps a bare check function.
type CustomHealthChecker struct {
	name     string
	critical bool
	timeout  time.Duration
	checkFn  func(ctx context.Context) CheckResult
}

func NewCustomHealthChecker(name string, critical bool, timeout time.Duration, checkFn func(ctx context.Context) CheckResult) *CustomHealthChecker {
	return &CustomHealthChecker{
		name:     name,
		critical: critical,
		timeout:  timeout,
		checkFn:  checkFn,
	}
}

func (c *CustomHealthChecker) Name() string           { return c.name }
func (c *CustomHealthChecker) IsCritical() bool       { return c.critical }
func (c *CustomHealthChecker) Timeout() time.Duration { return c.timeout }

func (c *CustomHealthChecker) Check(ctx context.Context) CheckResult {
	return c.checkFn(ctx)
}
