package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/prompts"
)

// DecisionFunc classifies the loop state into the next action token. The
// production function is the inference client's Decide call; tests plug in
// deterministic rules.
type DecisionFunc func(ctx context.Context, prompt string) (string, error)

// DeciderConfig carries the policy knobs.
type DeciderConfig struct {
	// RelevanceThreshold marks an internal result set as good enough.
	RelevanceThreshold float64
	// WebFallbackAfter is the iteration from which specific-figure
	// questions escalate to web search.
	WebFallbackAfter int
	// SpecificDataKeywords flag questions asking for concrete figures
	// (amounts, percentages, day counts). Matched lowercased.
	SpecificDataKeywords []string
}

// Decider picks the next action for the loop. Hard guards run in code:
// the iteration bound, the first search, the search after a refinement,
// stalled refinements, and web escalation when the statute index came up
// short. Only the refine-or-answer middle ground goes to the
// classification function.
type Decider struct {
	registry *prompts.Registry
	classify DecisionFunc
	cfg      DeciderConfig
	logger   *zap.Logger
}

// NewDecider builds a decider around the given classification function.
func NewDecider(registry *prompts.Registry, classify DecisionFunc, cfg DeciderConfig, logger *zap.Logger) *Decider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{registry: registry, classify: classify, cfg: cfg, logger: logger}
}

// Decide returns the next action and the rule that produced it. It is a
// function of the state alone apart from the pluggable classification call.
func (d *Decider) Decide(ctx context.Context, st *State) (Action, string) {
	if st.Iteration >= st.MaxIterations {
		return ActionAnswer, "iteration_bound"
	}
	if st.stalled {
		return ActionAnswer, "refinement_stalled"
	}
	if last, ok := st.LastAction(); ok && last == ActionRefine {
		// A refined query gets its internal search before anything else.
		return ActionSearchInternal, "post_refine"
	}
	if len(st.History) == 0 {
		// The statute index is authoritative; it always gets the first look.
		return ActionSearchInternal, "first_search"
	}

	if st.EnableWebSearch && st.Attempts(ActionSearchWeb) == 0 {
		if rec, ok := st.LastSearch(); ok && rec.Action == ActionSearchInternal {
			if rec.HitsAdded == 0 || bestScore(st.LastSearchHits()) < d.cfg.RelevanceThreshold {
				return ActionSearchWeb, "web_escalation"
			}
		}
		if st.Iteration >= d.cfg.WebFallbackAfter && d.asksSpecificData(st.Question) {
			return ActionSearchWeb, "keyword_heuristic"
		}
	}

	reply, err := d.classify(ctx, d.buildPrompt(st))
	if err != nil {
		d.logger.Warn("decision call failed", zap.Error(err), zap.Int("iteration", st.Iteration))
		if len(st.Hits) > 0 {
			return ActionAnswer, "llm_fallback"
		}
		return ActionSearchInternal, "llm_fallback"
	}
	return d.parseAction(reply, st.EnableWebSearch)
}

func (d *Decider) buildPrompt(st *State) string {
	internal := st.InternalHits()
	web := st.WebHits()
	return d.registry.DecisionPrompt(prompts.DecisionParams{
		Question:           st.Question,
		Query:              st.WorkingQuery,
		NumInternalResults: len(internal),
		NumWebResults:      len(web),
		Iteration:          st.Iteration,
		ResultsPreview:     resultsPreview(internal, web),
		EnableWebSearch:    st.EnableWebSearch,
	})
}

// parseAction maps a free-form reply onto an action. A reply mentioning
// refine wins over web, web over search; anything else answers. Web tokens
// fall through to internal search when web search is off.
func (d *Decider) parseAction(reply string, enableWeb bool) (Action, string) {
	decision := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.Contains(decision, "refine"):
		return ActionRefine, "llm"
	case strings.Contains(decision, "web") && enableWeb:
		return ActionSearchWeb, "llm"
	case strings.Contains(decision, "search"):
		return ActionSearchInternal, "llm"
	case strings.Contains(decision, "answer"):
		return ActionAnswer, "llm"
	}
	metrics.MalformedDecisions.Inc()
	d.logger.Debug("unparseable decision reply, defaulting to answer",
		zap.String("reply", truncateRunes(reply, 120)))
	return ActionAnswer, "malformed"
}

func (d *Decider) asksSpecificData(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range d.cfg.SpecificDataKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// resultsPreview gives the model a numbered glance at what has been found:
// up to five internal hits and three web hits, each clipped to 100 runes.
// Web numbering continues after the full internal count.
func resultsPreview(internal, web []SearchHit) string {
	if len(internal) == 0 && len(web) == 0 {
		return "Chưa có kết quả nào."
	}
	var b strings.Builder
	for i, h := range internal {
		if i == 5 {
			break
		}
		label := metaString(h.Metadata, "article_id")
		if label == "" {
			label = metaString(h.Metadata, "article")
		}
		if label == "" {
			label = "N/A"
		}
		fmt.Fprintf(&b, "%d. [Nội bộ] %s: %s...\n", i+1, label, truncateRunes(h.Text, 100))
	}
	next := len(internal) + 1
	for i, h := range web {
		if i == 3 {
			break
		}
		title := metaString(h.Metadata, "title")
		if title == "" {
			title = "N/A"
		}
		fmt.Fprintf(&b, "%d. [Web] %s: %s...\n", next+i, title, truncateRunes(h.Text, 100))
	}
	return strings.TrimRight(b.String(), "\n")
}

func bestScore(hits []SearchHit) float64 {
	best := 0.0
	for _, h := range hits {
		if h.Score > best {
			best = h.Score
		}
	}
	return best
}
