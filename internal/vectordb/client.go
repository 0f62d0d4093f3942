package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/circuitbreaker"
	ometrics "github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/tracing"
)

// Client is a minimal Qdrant HTTP client
type Client struct {
	cfg   Config
	base  string
	httpw *circuitbreaker.HTTPWrapper
	log   *zap.Logger
}

var global *Client

func Initialize(cfg Config, logger *zap.Logger) {
	c := cfg
	if c.URL == "" {
		c.URL = "http://localhost:6333"
	}
	if c.Collection == "" {
		c.Collection = "legal_documents"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 768
	}
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: c.Timeout}
	httpw := circuitbreaker.NewHTTPWrapper(
		httpClient,
		"qdrant",
		"vectordb",
		circuitbreaker.GetVectorDBConfig().ToConfig(),
		logger,
	)

	client := &Client{cfg: c, base: strings.TrimRight(c.URL, "/"), httpw: httpw, log: logger}
	global = client
}

func Get() *Client { return global }

// GetConfig returns the current configuration
func (c *Client) GetConfig() Config {
	if c == nil {
		return Config{Collection: "legal_documents"}
	}
	return c.cfg
}

// Collection returns the configured collection name.
func (c *Client) Collection() string {
	if c == nil {
		return ""
	}
	return c.cfg.Collection
}

// qdrant search request/response (simplified)
type qdrantQueryRequest struct {
	Query          []float32              `json:"query"`
	Limit          int                    `json:"limit"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
	WithPayload    bool                   `json:"with_payload"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
}

type qdrantPoint struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type qdrantSearchResponse struct {
	Result []qdrantPoint `json:"result"`
	Status string        `json:"status"`
}

// qdrantQueryResponse for the /points/query endpoint which has nested structure
type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

func (c *Client) search(ctx context.Context, collection string, vec []float32, limit int, threshold float64, filter map[string]interface{}) ([]qdrantPoint, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: search called while disabled")
	}
	start := time.Now()

	ctx, span := tracing.StartHTTPSpan(ctx, "POST", fmt.Sprintf("%s/collections/%s/points/query", c.base, collection))
	defer span.End()

	// Prefer modern /points/query; fall back to /points/search for older servers
	var thr *float64
	if threshold > 0 {
		thr = &threshold
	}
	reqBody := qdrantQueryRequest{Query: vec, Limit: limit, ScoreThreshold: thr, WithPayload: true, Filter: filter}
	buf, _ := json.Marshal(reqBody)

	call := func(url string, body []byte) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		tracing.InjectTraceparent(ctx, req)
		return c.httpw.Do(req)
	}

	urlQuery := fmt.Sprintf("%s/collections/%s/points/query", c.base, collection)
	resp, err := call(urlQuery, buf)
	if err != nil {
		ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		urlSearch := fmt.Sprintf("%s/collections/%s/points/search", c.base, collection)
		legacy := map[string]interface{}{"vector": vec, "limit": limit, "with_payload": true}
		if threshold > 0 {
			legacy["score_threshold"] = threshold
		}
		if filter != nil {
			legacy["filter"] = filter
		}
		buf2, _ := json.Marshal(legacy)
		resp2, err2 := call(urlSearch, buf2)
		if err2 != nil {
			ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("qdrant query/search failed: %w", err2)
		}
		defer resp2.Body.Close()
		if resp2.StatusCode != http.StatusOK {
			ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("qdrant status %d", resp2.StatusCode)
		}
		var qr qdrantSearchResponse
		if err := json.NewDecoder(resp2.Body).Decode(&qr); err != nil {
			ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
			return nil, err
		}
		ometrics.RecordVectorSearchMetrics(collection, "ok", time.Since(start).Seconds())
		return qr.Result, nil
	}

	var qr qdrantQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	ometrics.RecordVectorSearchMetrics(collection, "ok", time.Since(start).Seconds())
	return qr.Result.Points, nil
}

// Upsert inserts or updates points in the configured collection. wait=true
// so ingestion reads its own writes when verifying counts.
func (c *Client) Upsert(ctx context.Context, points []UpsertItem) (*UpsertResponse, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: upsert called while disabled")
	}
	if len(points) == 0 {
		return &UpsertResponse{Status: "ok"}, nil
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.base, c.cfg.Collection)
	ctx, span := tracing.StartHTTPSpan(ctx, "PUT", url)
	defer span.End()

	body := map[string]interface{}{"points": points}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)
	resp, err := c.httpw.Do(req)
	if err != nil {
		ometrics.VectorUpserts.WithLabelValues(c.cfg.Collection, "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ometrics.VectorUpserts.WithLabelValues(c.cfg.Collection, "error").Inc()
		return nil, fmt.Errorf("qdrant upsert status %d", resp.StatusCode)
	}
	var r UpsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	ometrics.VectorUpserts.WithLabelValues(c.cfg.Collection, "ok").Add(float64(len(points)))
	return &r, nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (c *Client) EnsureCollection(ctx context.Context) error {
	if c == nil || !c.cfg.Enabled {
		return fmt.Errorf("vectordb: ensure collection called while disabled")
	}

	checkURL := fmt.Sprintf("%s/collections/%s", c.base, c.cfg.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpw.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	createBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     c.cfg.VectorSize,
			"distance": "Cosine",
		},
	}
	buf, _ := json.Marshal(createBody)
	createReq, err := http.NewRequestWithContext(ctx, http.MethodPut, checkURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	createReq.Header.Set("Content-Type", "application/json")

	createResp, err := c.httpw.Do(createReq)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", c.cfg.Collection, err)
	}
	defer createResp.Body.Close()

	// 409 means another writer created it between check and create
	if createResp.StatusCode != http.StatusOK && createResp.StatusCode != http.StatusConflict {
		return fmt.Errorf("create collection %s: status %d", c.cfg.Collection, createResp.StatusCode)
	}

	c.log.Info("Collection created",
		zap.String("collection", c.cfg.Collection),
		zap.Int("vector_size", c.cfg.VectorSize),
	)
	return nil
}

// RecreateCollection drops and recreates the collection. Used by the ingest
// CLI when re-indexing from scratch.
func (c *Client) RecreateCollection(ctx context.Context) error {
	if c == nil || !c.cfg.Enabled {
		return fmt.Errorf("vectordb: recreate collection called while disabled")
	}

	url := fmt.Sprintf("%s/collections/%s", c.base, c.cfg.Collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpw.Do(req)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", c.cfg.Collection, err)
	}
	resp.Body.Close()

	return c.EnsureCollection(ctx)
}
