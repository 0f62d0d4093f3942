package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/embeddings"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/vectordb"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/websearch"
)

// InternalSearcher retrieves scored statute chunks for a query.
type InternalSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]SearchHit, error)
}

// WebSearcher retrieves web evidence for a query. The result cap belongs
// to the implementation, not the caller.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// Retriever fronts both search collaborators. Collaborator failures degrade
// to empty result sets; a search never fails the request.
type Retriever struct {
	internal InternalSearcher
	web      WebSearcher
	logger   *zap.Logger
}

// NewRetriever wires the two searchers. web may be nil when no web
// collaborator is configured.
func NewRetriever(internal InternalSearcher, web WebSearcher, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{internal: internal, web: web, logger: logger}
}

// WebAvailable reports whether a web collaborator is wired at all.
func (r *Retriever) WebAvailable() bool { return r.web != nil }

// SearchInternal queries the statute index.
func (r *Retriever) SearchInternal(ctx context.Context, query string, topK int) []SearchHit {
	if r.internal == nil {
		return nil
	}
	hits, err := r.internal.Search(ctx, query, topK)
	if err != nil {
		r.logger.Warn("internal search degraded to empty results",
			zap.Error(err), zap.String("query", query))
		return nil
	}
	return hits
}

// SearchWeb queries the web collaborator.
func (r *Retriever) SearchWeb(ctx context.Context, query string) []SearchHit {
	if r.web == nil {
		return nil
	}
	hits, err := r.web.Search(ctx, query)
	if err != nil {
		r.logger.Warn("web search degraded to empty results",
			zap.Error(err), zap.String("query", query))
		return nil
	}
	return hits
}

// QdrantSearcher embeds the query and searches the statute collection. It
// is the production InternalSearcher.
type QdrantSearcher struct {
	// Threshold drops hits scoring below it at retrieval time.
	Threshold float64
}

func (q QdrantSearcher) Search(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	svc := embeddings.Get()
	db := vectordb.Get()
	if svc == nil || db == nil {
		return nil, fmt.Errorf("search clients not initialized")
	}
	vec, err := svc.GenerateEmbedding(ctx, query, "")
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := db.Search(ctx, vec, topK, q.Threshold)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, SearchHit{
			Text:     res.Text,
			Source:   SourceInternal,
			Score:    res.Score,
			Metadata: res.Metadata,
		})
	}
	return hits, nil
}

// SearxngSearcher runs the legal-focused web search. It is the production
// WebSearcher.
type SearxngSearcher struct {
	// MaxResults caps each web search; it comes from configuration.
	MaxResults int
}

func (s SearxngSearcher) Search(ctx context.Context, query string) ([]SearchHit, error) {
	c := websearch.Get()
	if c == nil || !c.Enabled() {
		return nil, nil
	}
	results := c.SearchVietnameseLaw(ctx, query, s.MaxResults)
	hits := make([]SearchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, SearchHit{
			Text:   res.Content,
			Source: SourceWeb,
			Score:  res.Score,
			Metadata: map[string]interface{}{
				"type":   res.Type,
				"title":  res.Title,
				"url":    res.URL,
				"source": res.Source,
				"engine": res.Engine,
			},
		})
	}
	return hits, nil
}
