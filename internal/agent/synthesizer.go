package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/prompts"
)

// GenerateFunc produces the final answer text from a system prompt and a
// user prompt. In production this is llm.Client.Synthesize.
type GenerateFunc func(ctx context.Context, system, prompt string) (string, error)

// Synthesizer turns accumulated evidence into the final answer. It never
// fails: synthesis errors and empty evidence both yield the fixed fallback.
type Synthesizer struct {
	registry *prompts.Registry
	generate GenerateFunc
	logger   *zap.Logger
}

func NewSynthesizer(registry *prompts.Registry, generate GenerateFunc, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{registry: registry, generate: generate, logger: logger}
}

// Synthesize builds the answer payload for the finished loop.
func (s *Synthesizer) Synthesize(ctx context.Context, st *State) *AnswerPayload {
	internal := st.InternalHits()
	web := st.WebHits()
	payload := &AnswerPayload{
		Answer:        FallbackAnswer,
		SearchResults: internal,
		WebResults:    web,
		Iterations:    st.Iteration,
		QueryUsed:     st.WorkingQuery,
	}
	if len(internal) == 0 && len(web) == 0 {
		metrics.SynthesisTotal.WithLabelValues("empty").Inc()
		return payload
	}

	start := time.Now()
	answer, err := s.generate(ctx,
		s.registry.SystemPrompt(),
		s.registry.UserPrompt(answerContext(internal, web), st.Question))
	metrics.SynthesisLatency.Observe(time.Since(start).Seconds())

	answer = strings.TrimSpace(answer)
	if err != nil || answer == "" {
		metrics.SynthesisTotal.WithLabelValues("fallback").Inc()
		s.logger.Warn("answer synthesis fell back to the fixed answer", zap.Error(err))
		return payload
	}
	metrics.SynthesisTotal.WithLabelValues("ok").Inc()
	payload.Answer = answer
	return payload
}

// answerContext renders the evidence blocks the model answers from.
// Numbering runs continuously across internal then web hits.
func answerContext(internal, web []SearchHit) string {
	blocks := make([]string, 0, len(internal)+len(web))
	for i, h := range internal {
		var b strings.Builder
		fmt.Fprintf(&b, "[Điều luật %d]\n", i+1)
		if id := metaString(h.Metadata, "article_id"); id != "" {
			fmt.Fprintf(&b, "Điều: %s\n", id)
		}
		if title := metaString(h.Metadata, "article_title"); title != "" {
			fmt.Fprintf(&b, "Tiêu đề: %s\n", title)
		}
		if clause := metaString(h.Metadata, "clause_id"); clause != "" {
			fmt.Fprintf(&b, "Khoản: %s\n", clause)
		}
		fmt.Fprintf(&b, "Nội dung: %s\n", h.Text)
		blocks = append(blocks, b.String())
	}
	for i, h := range web {
		var b strings.Builder
		fmt.Fprintf(&b, "[Điều luật %d]\n", len(internal)+i+1)
		fmt.Fprintf(&b, "Nội dung: %s\n", webContextText(h))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// webContextText labels a web hit for the context window. Synthesized
// answers from the web searcher are marked apart from raw page content.
func webContextText(h SearchHit) string {
	if metaString(h.Metadata, "type") == "answer" {
		return "[Tóm tắt từ Web Search]\n" + h.Text
	}
	title := metaString(h.Metadata, "title")
	if title == "" {
		title = "N/A"
	}
	return fmt.Sprintf("[Nguồn web: %s]\n%s", title, h.Text)
}
