package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/prompts"
)

// RefineFunc produces a rewritten query from a refinement prompt. In
// production this is llm.Client.Refine.
type RefineFunc func(ctx context.Context, prompt string) (string, error)

// Refiner rewrites the working query when prior searches came back thin.
type Refiner struct {
	registry *prompts.Registry
	refine   RefineFunc
	logger   *zap.Logger
}

func NewRefiner(registry *prompts.Registry, refine RefineFunc, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{registry: registry, refine: refine, logger: logger}
}

// Refine returns a candidate replacement for the working query. The caller
// decides whether to adopt it; a candidate equal to a prior query counts as
// a stall there, not here.
func (r *Refiner) Refine(ctx context.Context, st *State) (string, error) {
	found := "Chưa có"
	if ids := st.ArticlesFound(); len(ids) > 0 {
		found = strings.Join(ids, ", ")
	}
	prompt := r.registry.RefinePrompt(prompts.RefineParams{
		Question:      st.Question,
		CurrentQuery:  st.WorkingQuery,
		Iteration:     st.Iteration,
		ArticlesFound: found,
	})
	reply, err := r.refine(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("refine query: %w", err)
	}
	q := strings.TrimSpace(reply)
	q = strings.Trim(q, `"`)
	q = strings.Trim(q, "'")
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("refinement returned an empty query")
	}
	r.logger.Debug("query refined",
		zap.String("from", st.WorkingQuery), zap.String("to", q))
	return q, nil
}
