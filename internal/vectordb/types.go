package vectordb

import "time"

// Config controls Qdrant client behavior
type Config struct {
	Enabled bool
	// URL is the Qdrant base URL, e.g. http://localhost:6333
	URL string
	// Collection holds the statute chunks
	Collection string
	// VectorSize is the embedding dimension the collection is created with
	VectorSize int
	// Search params
	TopK      int
	Threshold float64
	Timeout   time.Duration
}

// SearchResult is one scored statute chunk. Metadata carries every payload
// field except the text itself (article_id, article_title, clause_id, ...).
type SearchResult struct {
	Score    float64                `json:"score"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// UpsertItem represents a single point to insert into Qdrant
type UpsertItem struct {
	ID      interface{}            `json:"id,omitempty"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// UpsertResponse captures basic Qdrant upsert response
type UpsertResponse struct {
	Status string  `json:"status"`
	Time   float64 `json:"time"`
}
