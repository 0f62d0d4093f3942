package websearch

import "time"

// Config holds SearXNG client configuration.
type Config struct {
	Enabled    bool
	BaseURL    string
	Timeout    time.Duration
	MaxResults int
	Language   string
	Categories string
	Engines    []string

	// Requests per second against the SearXNG instance. Public engines
	// behind it ban aggressive clients, so the default is deliberately low.
	RPS   float64
	Burst int
}

// Result is a single web search hit. Type is "article" for regular results
// and "answer" for instant-answer summaries SearXNG extracts itself.
type Result struct {
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	Engine  string  `json:"engine"`
}

// searxng JSON API response (simplified)
type searxngResponse struct {
	Results []searxngResult   `json:"results"`
	Answers []searxngRawValue `json:"answers"`
}

type searxngResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Engine  string `json:"engine"`
}
