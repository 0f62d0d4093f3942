package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/circuitbreaker"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
	ometrics "github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/tracing"
)

// Client searches Vietnamese legal sources through a self-hosted SearXNG
// instance. Search never returns an error: web results are supplementary
// context, and a broken metasearch engine must not fail a user query.
type Client struct {
	cfg     Config
	http    *circuitbreaker.HTTPWrapper
	probe   *http.Client
	limiter *rate.Limiter
	sources *config.WebSourcesConfig
	logger  *zap.Logger
}

var globalClient *Client

// Initialize sets up the global web search client.
func Initialize(cfg Config, logger *zap.Logger) {
	globalClient = New(cfg, logger)
}

// Get returns the global web search client.
func Get() *Client {
	return globalClient
}

// New builds a web search client with defaults filled in.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8888"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Language == "" {
		cfg.Language = "vi"
	}
	if cfg.Categories == "" {
		cfg.Categories = "general"
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}

	wrapper := circuitbreaker.NewHTTPWrapper(
		&http.Client{Timeout: cfg.Timeout},
		"searxng",
		"websearch",
		circuitbreaker.GetWebSearchConfig().ToConfig(),
		logger,
	)

	sources, err := config.LoadWebSources()
	if err != nil {
		logger.Warn("Failed to load web source groups, using defaults", zap.Error(err))
	}

	return &Client{
		cfg:     cfg,
		http:    wrapper,
		probe:   &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		sources: sources,
		logger:  logger,
	}
}

// Enabled reports whether web search is available for this process.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

// Search runs a raw query against SearXNG. It returns instant answers first
// (score 1.0) followed by up to maxResults articles scored by position:
// SearXNG exposes no relevance scores, so the first article gets 0.9, the
// second 0.8 and so on, floored at 0.1.
//
// Any failure (timeout, connection refused, non-200, bad JSON) yields an
// empty slice.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []Result {
	if !c.Enabled() || strings.TrimSpace(query) == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Warn("Web search rate limit wait aborted", zap.Error(err))
		return nil
	}

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, c.cfg.BaseURL+"/search")
	defer span.End()

	form := url.Values{}
	form.Set("q", query)
	form.Set("format", "json")
	form.Set("language", c.cfg.Language)
	form.Set("categories", c.cfg.Categories)
	if len(c.cfg.Engines) > 0 {
		form.Set("engines", strings.Join(c.cfg.Engines, ","))
	}

	// SearXNG instances commonly block GET /search for bots; POST works.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", strings.NewReader(form.Encode()))
	if err != nil {
		ometrics.RecordWebSearchMetrics("error", time.Since(start).Seconds(), 0)
		return nil
	}
	req.Header.Set("User-Agent", "Legal-RAG-Bot/1.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		ometrics.RecordWebSearchMetrics("error", time.Since(start).Seconds(), 0)
		c.logger.Warn("Web search request failed",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		ometrics.RecordWebSearchMetrics("error", time.Since(start).Seconds(), 0)
		c.logger.Warn("Web search returned non-200",
			zap.String("query", query),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	var body searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		ometrics.RecordWebSearchMetrics("error", time.Since(start).Seconds(), 0)
		c.logger.Warn("Web search returned invalid JSON", zap.Error(err))
		return nil
	}

	results := make([]Result, 0, maxResults+len(body.Answers))

	for _, raw := range body.Answers {
		text := raw.Text()
		if text == "" {
			continue
		}
		results = append(results, Result{
			Type:    "answer",
			Content: text,
			Score:   1.0,
			Source:  "Web Search",
			Engine:  raw.Engine(),
		})
	}

	engines := make(map[string]struct{})
	articles := 0
	for _, item := range body.Results {
		if articles >= maxResults {
			break
		}
		articles++
		score := 1.0 - float64(articles)*0.1
		if score < 0.1 {
			score = 0.1
		}
		engine := item.Engine
		if engine == "" {
			engine = "unknown"
		}
		engines[engine] = struct{}{}
		results = append(results, Result{
			Type:    "article",
			Title:   item.Title,
			URL:     item.URL,
			Content: item.Content,
			Score:   score,
			Source:  "Web Search",
			Engine:  engine,
		})
	}

	status := "ok"
	if len(results) == 0 {
		status = "empty"
	}
	ometrics.RecordWebSearchMetrics(status, time.Since(start).Seconds(), len(results))

	c.logger.Info("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Strings("engines", engineList(engines)),
		zap.Duration("duration", time.Since(start)))

	return results
}

// SearchVietnameseLaw searches with the labor-law query prefix so generic
// questions land on statute text instead of news articles.
func (c *Client) SearchVietnameseLaw(ctx context.Context, query string, maxResults int) []Result {
	if !c.Enabled() {
		return nil
	}
	prefixed := query
	if c.sources != nil {
		prefixed = c.sources.BuildPrefixedQuery(query, "labor_law")
	}
	if prefixed == query {
		prefixed = fmt.Sprintf("Bộ luật lao động Việt Nam %s", query)
	}
	return c.Search(ctx, prefixed, maxResults)
}

// SearchDomains restricts a search to specific sites with site: operators.
func (c *Client) SearchDomains(ctx context.Context, query string, domains []string, maxResults int) []Result {
	if len(domains) == 0 {
		return c.Search(ctx, query, maxResults)
	}
	filters := make([]string, 0, len(domains))
	for _, d := range domains {
		filters = append(filters, fmt.Sprintf("site:%s", d))
	}
	full := fmt.Sprintf("%s (%s)", query, strings.Join(filters, " OR "))
	return c.Search(ctx, full, maxResults)
}

// SearchGroup searches within a configured source group, applying the
// group's site filter, result cap and priority boost.
func (c *Client) SearchGroup(ctx context.Context, query, group string, maxResults int) []Result {
	if !c.Enabled() || c.sources == nil {
		return c.Search(ctx, query, maxResults)
	}
	sg, ok := c.sources.GetGroup(group)
	if !ok {
		return c.Search(ctx, query, maxResults)
	}
	if maxResults <= 0 && sg.MaxResults > 0 {
		maxResults = sg.MaxResults
	}

	filtered := c.sources.BuildSiteFilterQuery(query, group)
	results := c.Search(ctx, filtered, maxResults)

	if sg.PriorityBoost > 0 && sg.PriorityBoost != 1.0 {
		for i := range results {
			boosted := results[i].Score * sg.PriorityBoost
			if boosted > 1.0 {
				boosted = 1.0
			}
			results[i].Score = boosted
		}
	}
	return results
}

// Probe checks the SearXNG health endpoint. It uses a plain short-timeout
// client so health checks neither trip nor depend on the breaker.
func (c *Client) Probe(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("websearch client not initialized")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("searxng unreachable at %s: %w", c.cfg.BaseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 512))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("searxng health check returned %d", resp.StatusCode)
	}
	return nil
}

func engineList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// searxngRawValue tolerates both answer encodings SearXNG has shipped:
// a bare string and an object with answer/engine fields.
type searxngRawValue struct {
	raw json.RawMessage
}

func (v *searxngRawValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}

func (v searxngRawValue) Text() string {
	var s string
	if err := json.Unmarshal(v.raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(v.raw, &obj); err == nil {
		return strings.TrimSpace(obj.Answer)
	}
	return ""
}

func (v searxngRawValue) Engine() string {
	var obj struct {
		Engine string `json:"engine"`
	}
	if err := json.Unmarshal(v.raw, &obj); err == nil && obj.Engine != "" {
		return obj.Engine
	}
	return "searxng"
}
