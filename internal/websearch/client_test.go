package websearch

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newTestSearcher(t *testing.T, url string) *Client {
	t.Helper()
	return New(Config{
		Enabled: true,
		BaseURL: url,
		RPS:     1000, // tests should not wait on the production rate limit
		Burst:   1000,
	}, zaptest.NewLogger(t))
}

func searxngHandler(t *testing.T, results []map[string]string, answers []interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body := map[string]interface{}{"results": results}
		if answers != nil {
			body["answers"] = answers
		}
		json.NewEncoder(w).Encode(body)
	}
}

func TestSearchSendsSearxngForm(t *testing.T) {
	var gotForm map[string]string
	var gotUA, gotAccept, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		gotForm = map[string]string{
			"q":          r.PostFormValue("q"),
			"format":     r.PostFormValue("format"),
			"language":   r.PostFormValue("language"),
			"categories": r.PostFormValue("categories"),
		}
		searxngHandler(t, []map[string]string{
			{"title": "Thử việc", "url": "https://thuvienphapluat.vn/1", "content": "Điều 24...", "engine": "google"},
			{"title": "Lương thử việc", "url": "https://luatvietnam.vn/2", "content": "Điều 26...", "engine": "bing"},
		}, nil)(w, r)
	}))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	results := c.Search(context.Background(), "thời gian thử việc", 3)

	if gotUA != "Legal-RAG-Bot/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotForm["q"] != "thời gian thử việc" || gotForm["format"] != "json" {
		t.Errorf("form = %v", gotForm)
	}
	if gotForm["language"] != "vi" || gotForm["categories"] != "general" {
		t.Errorf("form = %v", gotForm)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	first, second := results[0], results[1]
	if first.Type != "article" || first.Source != "Web Search" {
		t.Errorf("first = %+v", first)
	}
	if !almostEqual(first.Score, 0.9) {
		t.Errorf("first score = %v", first.Score)
	}
	if !almostEqual(second.Score, 0.8) {
		t.Errorf("second score = %v", second.Score)
	}
	if first.Engine != "google" {
		t.Errorf("engine = %q", first.Engine)
	}
}

func TestSearchScoreFloor(t *testing.T) {
	items := make([]map[string]string, 12)
	for i := range items {
		items[i] = map[string]string{"title": "t", "url": "u", "content": "c"}
	}
	server := httptest.NewServer(searxngHandler(t, items, nil))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	results := c.Search(context.Background(), "mức phạt", 12)

	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	if results[11].Score != 0.1 {
		t.Errorf("floor score = %v", results[11].Score)
	}
	if results[9].Score != 0.1 {
		t.Errorf("position 10 score = %v", results[9].Score)
	}
	if results[0].Engine != "unknown" {
		t.Errorf("missing engine should default to unknown, got %q", results[0].Engine)
	}
}

func TestSearchInstantAnswersComeFirst(t *testing.T) {
	server := httptest.NewServer(searxngHandler(t,
		[]map[string]string{{"title": "bài", "url": "u", "content": "c", "engine": "google"}},
		[]interface{}{
			"Thời gian thử việc tối đa 180 ngày.",
			map[string]string{"answer": "Theo Điều 25.", "engine": "duckduckgo"},
		},
	))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	results := c.Search(context.Background(), "thử việc", 3)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Type != "answer" || results[0].Score != 1.0 {
		t.Errorf("first = %+v", results[0])
	}
	if results[0].Content != "Thời gian thử việc tối đa 180 ngày." {
		t.Errorf("answer content = %q", results[0].Content)
	}
	if results[0].Engine != "searxng" {
		t.Errorf("string answer engine = %q", results[0].Engine)
	}
	if results[1].Engine != "duckduckgo" || results[1].Content != "Theo Điều 25." {
		t.Errorf("object answer = %+v", results[1])
	}
	if results[2].Type != "article" || !almostEqual(results[2].Score, 0.9) {
		t.Errorf("article after answers = %+v", results[2])
	}
}

func TestSearchTruncatesArticles(t *testing.T) {
	items := []map[string]string{
		{"title": "1", "content": "a"},
		{"title": "2", "content": "b"},
		{"title": "3", "content": "c"},
		{"title": "4", "content": "d"},
	}
	server := httptest.NewServer(searxngHandler(t, items, nil))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	results := c.Search(context.Background(), "nghỉ phép năm", 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestSearchFailuresReturnEmpty(t *testing.T) {
	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}))
		defer server.Close()
		c := newTestSearcher(t, server.URL)
		if got := c.Search(context.Background(), "x", 3); len(got) != 0 {
			t.Errorf("expected empty, got %d", len(got))
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>blocked</html>"))
		}))
		defer server.Close()
		c := newTestSearcher(t, server.URL)
		if got := c.Search(context.Background(), "x", 3); len(got) != 0 {
			t.Errorf("expected empty, got %d", len(got))
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := newTestSearcher(t, "http://127.0.0.1:1")
		if got := c.Search(context.Background(), "x", 3); len(got) != 0 {
			t.Errorf("expected empty, got %d", len(got))
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		c := New(Config{Enabled: false}, zaptest.NewLogger(t))
		if got := c.Search(context.Background(), "x", 3); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("NilClient", func(t *testing.T) {
		var c *Client
		if got := c.Search(context.Background(), "x", 3); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestSearchVietnameseLawAddsStatutePrefix(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotQuery = r.PostFormValue("q")
		searxngHandler(t, nil, nil)(w, r)
	}))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	c.SearchVietnameseLaw(context.Background(), "lương thử việc", 3)

	if !strings.HasPrefix(gotQuery, "Bộ luật lao động Việt Nam ") {
		t.Errorf("query = %q", gotQuery)
	}
	if !strings.HasSuffix(gotQuery, "lương thử việc") {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestSearchDomainsBuildsSiteFilter(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotQuery = r.PostFormValue("q")
		searxngHandler(t, nil, nil)(w, r)
	}))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	c.SearchDomains(context.Background(), "thời gian thử việc", []string{"thuvienphapluat.vn", "luatvietnam.vn"}, 3)

	want := "thời gian thử việc (site:thuvienphapluat.vn OR site:luatvietnam.vn)"
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
}

func TestSearchGroupAppliesBoostAndFilter(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotQuery = r.PostFormValue("q")
		searxngHandler(t, []map[string]string{
			{"title": "a", "content": "x"},
			{"title": "b", "content": "y"},
		}, nil)(w, r)
	}))
	defer server.Close()

	c := newTestSearcher(t, server.URL)
	c.sources = &config.WebSourcesConfig{
		SourceGroups: map[string]config.SourceGroupConfig{
			"government": {
				Sites:         []string{"chinhphu.vn"},
				PriorityBoost: 1.2,
				MaxResults:    2,
			},
		},
	}

	results := c.SearchGroup(context.Background(), "nghị định mới", "government", 0)

	if gotQuery != "nghị định mới (site:chinhphu.vn)" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// 0.9 * 1.2 = 1.08, capped at 1.0
	if results[0].Score != 1.0 {
		t.Errorf("boosted score = %v", results[0].Score)
	}
	if !almostEqual(results[1].Score, 0.96) {
		t.Errorf("boosted score = %v", results[1].Score)
	}
}

func TestProbe(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/healthz" {
				t.Errorf("path = %s", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()
		c := newTestSearcher(t, server.URL)
		if err := c.Probe(context.Background()); err != nil {
			t.Errorf("Probe: %v", err)
		}
	})

	t.Run("Unhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()
		c := newTestSearcher(t, server.URL)
		if err := c.Probe(context.Background()); err == nil {
			t.Errorf("expected error for 503 health")
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := newTestSearcher(t, "http://127.0.0.1:1")
		if err := c.Probe(context.Background()); err == nil {
			t.Errorf("expected error for unreachable instance")
		}
	})
}
