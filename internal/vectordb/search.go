package vectordb

import (
	"context"
)

// Search runs a semantic search over the statute collection and maps the
// raw points into SearchResults. The text payload field becomes the result
// text; every other payload field is kept as metadata.
func (c *Client) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]SearchResult, error) {
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	if threshold < 0 {
		threshold = c.cfg.Threshold
	}

	pts, err := c.search(ctx, c.cfg.Collection, embedding, topK, threshold, nil)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(pts))
	for _, p := range pts {
		r := SearchResult{Score: p.Score, Metadata: make(map[string]interface{})}
		for k, v := range p.Payload {
			if k == "text" {
				if s, ok := v.(string); ok {
					r.Text = s
				}
				continue
			}
			r.Metadata[k] = v
		}
		out = append(out, r)
	}
	return out, nil
}

// SearchByArticle narrows the search to a single article, e.g. "Dieu_24".
// Citation-style questions benefit from scoping results to the named article.
func (c *Client) SearchByArticle(ctx context.Context, embedding []float32, articleID string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = c.cfg.TopK
	}

	filter := map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": "article_id", "match": map[string]interface{}{"value": articleID}},
		},
	}

	pts, err := c.search(ctx, c.cfg.Collection, embedding, topK, 0, filter)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(pts))
	for _, p := range pts {
		r := SearchResult{Score: p.Score, Metadata: make(map[string]interface{})}
		for k, v := range p.Payload {
			if k == "text" {
				if s, ok := v.(string); ok {
					r.Text = s
				}
				continue
			}
			r.Metadata[k] = v
		}
		out = append(out, r)
	}
	return out, nil
}
