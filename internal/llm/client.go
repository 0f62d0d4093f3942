package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/circuitbreaker"
	ometrics "github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/tracing"
)

// Client talks to an Ollama server. Generation goes through the circuit
// breaker; the health probe uses a plain short-timeout client so health
// checks neither trip nor depend on the breaker.
type Client struct {
	cfg    Config
	http   *circuitbreaker.HTTPWrapper
	probe  *http.Client
	logger *zap.Logger
}

// Global singleton for simple wiring
var globalClient *Client

// Initialize creates the shared client used across the engine.
func Initialize(cfg Config, logger *zap.Logger) {
	globalClient = New(cfg, logger)
}

// Get returns the shared client.
func Get() *Client { return globalClient }

// New constructs a client with defaults filled in.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:7b"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.DecisionTemperature == 0 {
		cfg.DecisionTemperature = 0.3
	}
	if cfg.DecisionMaxTokens == 0 {
		cfg.DecisionMaxTokens = 16
	}
	if cfg.RefineTemperature == 0 {
		cfg.RefineTemperature = 0.3
	}
	if cfg.RefineMaxTokens == 0 {
		cfg.RefineMaxTokens = 64
	}
	if cfg.AnswerTemperature == 0 {
		cfg.AnswerTemperature = 0.1
	}
	if cfg.AnswerMaxTokens == 0 {
		cfg.AnswerMaxTokens = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	wrapper := circuitbreaker.NewHTTPWrapper(
		httpClient,
		"ollama",
		"llm",
		circuitbreaker.GetLLMConfig().ToConfig(),
		logger,
	)

	return &Client{
		cfg:    cfg,
		http:   wrapper,
		probe:  &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Generate runs one non-streaming completion. The purpose labels metrics
// and the span so decision, refinement and synthesis latencies stay apart.
func (c *Client) Generate(ctx context.Context, purpose string, p GenerateParams) (string, error) {
	if c == nil {
		return "", fmt.Errorf("llm client not initialized")
	}

	start := time.Now()

	url := c.cfg.BaseURL + "/api/generate"
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	payload := generateRequest{
		Model:  c.cfg.Model,
		Prompt: p.Prompt,
		System: p.System,
		Stream: false,
		Options: generateOptions{
			Temperature: p.Temperature,
			NumPredict:  p.MaxTokens,
		},
	}
	buf, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		ometrics.RecordLLMMetrics(purpose, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		ometrics.RecordLLMMetrics(purpose, "error", time.Since(start).Seconds())
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm http status %d: %s", resp.StatusCode, string(body))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		ometrics.RecordLLMMetrics(purpose, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("llm decode: %w", err)
	}

	text := strings.TrimSpace(gr.Response)
	if text == "" {
		ometrics.RecordLLMMetrics(purpose, "empty", time.Since(start).Seconds())
		return "", fmt.Errorf("llm returned empty response")
	}

	ometrics.RecordLLMMetrics(purpose, "ok", time.Since(start).Seconds())
	return text, nil
}

// Decide asks for the next loop action. Low token cap: the prompt demands
// a one-word reply.
func (c *Client) Decide(ctx context.Context, prompt string) (string, error) {
	return c.Generate(ctx, PurposeDecision, GenerateParams{
		Prompt:      prompt,
		Temperature: c.cfg.DecisionTemperature,
		MaxTokens:   c.cfg.DecisionMaxTokens,
	})
}

// Refine asks for a replacement search query.
func (c *Client) Refine(ctx context.Context, prompt string) (string, error) {
	return c.Generate(ctx, PurposeRefinement, GenerateParams{
		Prompt:      prompt,
		Temperature: c.cfg.RefineTemperature,
		MaxTokens:   c.cfg.RefineMaxTokens,
	})
}

// Synthesize produces the grounded final answer.
func (c *Client) Synthesize(ctx context.Context, system, prompt string) (string, error) {
	return c.Generate(ctx, PurposeSynthesis, GenerateParams{
		Prompt:      prompt,
		System:      system,
		Temperature: c.cfg.AnswerTemperature,
		MaxTokens:   c.cfg.AnswerMaxTokens,
	})
}

// Probe checks the server via /api/tags and returns the local model names.
// A localhost base URL falls back to 127.0.0.1 when the first attempt fails,
// which sidesteps hosts resolving localhost to an IPv6 address Ollama does
// not listen on.
func (c *Client) Probe(ctx context.Context) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("llm client not initialized")
	}

	models, err := c.probeOnce(ctx, c.cfg.BaseURL)
	if err != nil && strings.Contains(c.cfg.BaseURL, "localhost") {
		alt := strings.Replace(c.cfg.BaseURL, "localhost", "127.0.0.1", 1)
		if models2, err2 := c.probeOnce(ctx, alt); err2 == nil {
			c.logger.Debug("Ollama reachable via 127.0.0.1 fallback", zap.String("url", alt))
			return models2, nil
		}
	}
	return models, err
}

func (c *Client) probeOnce(ctx context.Context, baseURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama http status %d", resp.StatusCode)
	}

	var tr tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		models = append(models, m.Name)
	}
	return models, nil
}
