// Package agent implements the bounded decision loop that answers legal
// questions. Each pass an action is decided (search the statute index,
// search the web, refine the query, or answer), executed, and recorded;
// the loop always terminates within the iteration bound and synthesis
// always produces an answer, falling back to a fixed reply when no
// evidence was found.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/llm"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/prompts"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/streaming"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/tracing"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/websearch"
)

const (
	defaultMaxIterations = 3
	defaultTopK          = 3
)

// Params carries one query request through the loop.
type Params struct {
	RequestID       string
	Question        string
	MaxIterations   int
	TopK            int
	EnableWebSearch bool
}

// Options wires an Orchestrator from its collaborators. Events may be nil;
// the loop then runs without progress streaming.
type Options struct {
	Decider     *Decider
	Retriever   *Retriever
	Refiner     *Refiner
	Synthesizer *Synthesizer
	Events      *streaming.Manager
	Logger      *zap.Logger
}

// Orchestrator drives the decision loop for query requests.
type Orchestrator struct {
	decider     *Decider
	retriever   *Retriever
	refiner     *Refiner
	synthesizer *Synthesizer
	events      *streaming.Manager
	logger      *zap.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		decider:     opts.Decider,
		retriever:   opts.Retriever,
		refiner:     opts.Refiner,
		synthesizer: opts.Synthesizer,
		events:      opts.Events,
		logger:      logger,
	}
}

// NewFromClients assembles the production orchestrator from the global
// clients. Initialize the clients before calling this.
func NewFromClients(cfg *config.EngineConfig, registry *prompts.Registry, events *streaming.Manager, logger *zap.Logger) *Orchestrator {
	client := llm.Get()

	var web WebSearcher
	if ws := websearch.Get(); ws != nil && ws.Enabled() {
		web = SearxngSearcher{MaxResults: cfg.WebSearch.MaxResults}
	}

	return NewOrchestrator(Options{
		Decider: NewDecider(registry, client.Decide, DeciderConfig{
			RelevanceThreshold:   cfg.Agent.RelevanceThreshold,
			WebFallbackAfter:     cfg.Agent.WebFallbackAfter,
			SpecificDataKeywords: cfg.Agent.SpecificDataKeywords,
		}, logger),
		Retriever:   NewRetriever(QdrantSearcher{Threshold: cfg.Agent.RelevanceThreshold}, web, logger),
		Refiner:     NewRefiner(registry, client.Refine, logger),
		Synthesizer: NewSynthesizer(registry, client.Synthesize, logger),
		Events:      events,
		Logger:      logger,
	})
}

// RunQuery answers one question. It returns an error only for an empty
// question or a canceled context; everything else degrades into the
// payload itself.
func (o *Orchestrator) RunQuery(ctx context.Context, p Params) (*AnswerPayload, error) {
	if strings.TrimSpace(p.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	if p.MaxIterations < 1 {
		p.MaxIterations = defaultMaxIterations
	}
	if p.TopK < 1 {
		p.TopK = defaultTopK
	}
	metrics.QueriesStarted.Inc()
	start := time.Now()

	enableWeb := p.EnableWebSearch && o.retriever.WebAvailable()
	st := NewState(p.Question, p.MaxIterations, p.TopK, enableWeb)

	o.publish(p.RequestID, streaming.Event{
		Type:    streaming.EventQueryReceived,
		Message: p.Question,
		Data: map[string]interface{}{
			"max_iterations":    p.MaxIterations,
			"top_k":             p.TopK,
			"enable_web_search": enableWeb,
		},
	})
	o.logger.Info("query accepted",
		zap.String("request_id", p.RequestID),
		zap.Int("max_iterations", p.MaxIterations),
		zap.Int("top_k", p.TopK),
		zap.Bool("enable_web_search", enableWeb))

	for {
		action, err := o.step(ctx, st, p)
		if err != nil {
			o.fail(p.RequestID, start, st, err)
			return nil, err
		}
		if action == ActionAnswer {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrRequestCanceled, err)
		o.fail(p.RequestID, start, st, wrapped)
		return nil, wrapped
	}

	o.publish(p.RequestID, streaming.Event{
		Type: streaming.EventAnswerStarted,
		Data: map[string]interface{}{
			"internal_results": len(st.InternalHits()),
			"web_results":      len(st.WebHits()),
		},
	})
	payload := o.synthesizer.Synthesize(ctx, st)
	if err := ctx.Err(); err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrRequestCanceled, err)
		o.fail(p.RequestID, start, st, wrapped)
		return nil, wrapped
	}

	o.publish(p.RequestID, streaming.Event{
		Type: streaming.EventAnswerCompleted,
		Data: map[string]interface{}{"iterations": payload.Iterations},
	})
	metrics.RecordQueryMetrics("ok", time.Since(start).Seconds(), st.Iteration)
	o.logger.Info("query completed",
		zap.String("request_id", p.RequestID),
		zap.Int("iterations", payload.Iterations),
		zap.Int("internal_results", len(payload.SearchResults)),
		zap.Int("web_results", len(payload.WebResults)),
		zap.Duration("took", time.Since(start)))
	return payload, nil
}

// step runs one decide-then-act pass. It returns the decided action so the
// caller can stop on ANSWER.
func (o *Orchestrator) step(ctx context.Context, st *State, p Params) (Action, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestCanceled, err)
	}
	ctx, span := tracing.StartIterationSpan(ctx, p.RequestID, st.Iteration+1)
	defer span.End()

	action, source := o.decider.Decide(ctx, st)
	metrics.RecordDecision(string(action), source)
	o.publish(p.RequestID, streaming.Event{
		Type:    streaming.EventDecisionMade,
		Message: string(action),
		Data: map[string]interface{}{
			"source":    source,
			"iteration": st.Iteration,
		},
	})
	o.logger.Debug("action decided",
		zap.String("request_id", p.RequestID),
		zap.String("action", string(action)),
		zap.String("source", source),
		zap.Int("iteration", st.Iteration))

	if action == ActionAnswer {
		return action, nil
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRequestCanceled, err)
	}

	switch action {
	case ActionSearchInternal, ActionSearchWeb:
		o.runSearch(ctx, st, p, action)
	case ActionRefine:
		o.runRefine(ctx, st, p)
	}
	return action, nil
}

func (o *Orchestrator) runSearch(ctx context.Context, st *State, p Params, action Action) {
	kind := SourceInternal
	if action == ActionSearchWeb {
		kind = SourceWeb
	}
	o.publish(p.RequestID, streaming.Event{
		Type:    streaming.EventSearchStarted,
		Message: st.WorkingQuery,
		Data: map[string]interface{}{
			"kind":      string(kind),
			"iteration": st.Iteration + 1,
		},
	})

	var hits []SearchHit
	if kind == SourceInternal {
		hits = o.retriever.SearchInternal(ctx, st.WorkingQuery, st.TopK)
	} else {
		hits = o.retriever.SearchWeb(ctx, st.WorkingQuery)
	}
	added := st.AppendHits(hits)
	st.RecordIteration(action, added)

	o.publish(p.RequestID, streaming.Event{
		Type: streaming.EventSearchCompleted,
		Data: map[string]interface{}{
			"kind":      string(kind),
			"returned":  len(hits),
			"added":     added,
			"total":     len(st.Hits),
			"iteration": st.Iteration,
		},
	})
	o.logger.Debug("search completed",
		zap.String("request_id", p.RequestID),
		zap.String("kind", string(kind)),
		zap.Int("returned", len(hits)),
		zap.Int("added", added),
		zap.Int("iteration", st.Iteration))
}

func (o *Orchestrator) runRefine(ctx context.Context, st *State, p Params) {
	previous := st.WorkingQuery
	start := time.Now()
	candidate, err := o.refiner.Refine(ctx, st)

	status := "ok"
	if err != nil {
		status = "error"
		st.stalled = true
		o.logger.Warn("query refinement failed, forcing answer",
			zap.String("request_id", p.RequestID), zap.Error(err))
	} else if !st.AdoptQuery(candidate) {
		status = "stalled"
		st.stalled = true
		o.logger.Warn("refinement repeated a prior query, forcing answer",
			zap.String("request_id", p.RequestID), zap.String("candidate", candidate))
	}
	metrics.RefinementsTotal.WithLabelValues(status).Inc()
	metrics.RefinementLatency.Observe(time.Since(start).Seconds())

	st.RecordIteration(ActionRefine, 0)
	o.publish(p.RequestID, streaming.Event{
		Type:    streaming.EventQueryRefined,
		Message: st.WorkingQuery,
		Data: map[string]interface{}{
			"previous":  previous,
			"stalled":   st.stalled,
			"iteration": st.Iteration,
		},
	})
}

func (o *Orchestrator) fail(requestID string, start time.Time, st *State, err error) {
	o.publish(requestID, streaming.Event{
		Type:    streaming.EventQueryFailed,
		Message: err.Error(),
		Data:    map[string]interface{}{"iterations": st.Iteration},
	})
	metrics.RecordQueryMetrics("canceled", time.Since(start).Seconds(), st.Iteration)
	o.logger.Warn("query abandoned",
		zap.String("request_id", requestID),
		zap.Int("iterations", st.Iteration),
		zap.Error(err))
}

func (o *Orchestrator) publish(requestID string, evt streaming.Event) {
	if o.events == nil || requestID == "" {
		return
	}
	o.events.Publish(requestID, evt)
}
