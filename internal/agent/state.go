package agent

import "sort"

// State is the working memory of one in-flight query. Exactly one request
// owns it and no step of that request runs concurrently with another, so
// none of its methods lock.
type State struct {
	Question        string
	WorkingQuery    string
	MaxIterations   int
	TopK            int
	EnableWebSearch bool

	Iteration int
	Hits      []SearchHit
	History   []IterationRecord

	priorQueries map[string]struct{}
	seen         map[SourceKind]map[string]struct{}
	stalled      bool
}

// NewState prepares the state for a question. The working query starts as
// the question itself, and the question counts as a used query for stall
// detection.
func NewState(question string, maxIterations, topK int, enableWebSearch bool) *State {
	return &State{
		Question:        question,
		WorkingQuery:    question,
		MaxIterations:   maxIterations,
		TopK:            topK,
		EnableWebSearch: enableWebSearch,
		priorQueries:    map[string]struct{}{question: {}},
		seen: map[SourceKind]map[string]struct{}{
			SourceInternal: {},
			SourceWeb:      {},
		},
	}
}

// AppendHits adds new evidence, dropping hits with empty text and hits
// whose text duplicates an already accumulated hit of the same source
// kind. Returns the number actually appended. Hits are never removed.
func (s *State) AppendHits(hits []SearchHit) int {
	added := 0
	for _, h := range hits {
		if h.Text == "" {
			continue
		}
		seen := s.seen[h.Source]
		if seen == nil {
			seen = make(map[string]struct{})
			s.seen[h.Source] = seen
		}
		if _, dup := seen[h.Text]; dup {
			continue
		}
		seen[h.Text] = struct{}{}
		s.Hits = append(s.Hits, h)
		added++
	}
	return added
}

// InternalHits returns the accumulated statute hits in arrival order.
func (s *State) InternalHits() []SearchHit { return s.hitsOf(SourceInternal) }

// WebHits returns the accumulated web hits in arrival order.
func (s *State) WebHits() []SearchHit { return s.hitsOf(SourceWeb) }

func (s *State) hitsOf(kind SourceKind) []SearchHit {
	out := make([]SearchHit, 0, len(s.Hits))
	for _, h := range s.Hits {
		if h.Source == kind {
			out = append(out, h)
		}
	}
	return out
}

// RecordIteration closes one search or refine pass: it bumps the iteration
// counter and appends the matching history record.
func (s *State) RecordIteration(action Action, hitsAdded int) {
	s.Iteration++
	s.History = append(s.History, IterationRecord{
		Index:        s.Iteration,
		Action:       action,
		WorkingQuery: s.WorkingQuery,
		HitsAdded:    hitsAdded,
	})
}

// LastAction returns the most recently recorded action.
func (s *State) LastAction() (Action, bool) {
	if len(s.History) == 0 {
		return "", false
	}
	return s.History[len(s.History)-1].Action, true
}

// LastSearch returns the most recent search record, skipping refinements.
func (s *State) LastSearch() (IterationRecord, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		switch s.History[i].Action {
		case ActionSearchInternal, ActionSearchWeb:
			return s.History[i], true
		}
	}
	return IterationRecord{}, false
}

// LastSearchHits returns the hits contributed by the most recent search.
// Searches are the only appenders, so those hits form the tail of Hits.
func (s *State) LastSearchHits() []SearchHit {
	rec, ok := s.LastSearch()
	if !ok || rec.HitsAdded == 0 {
		return nil
	}
	return s.Hits[len(s.Hits)-rec.HitsAdded:]
}

// Attempts counts how many times an action has run this request.
func (s *State) Attempts(action Action) int {
	n := 0
	for _, rec := range s.History {
		if rec.Action == action {
			n++
		}
	}
	return n
}

// AdoptQuery switches the working query to q. It refuses empty strings and
// queries already used this request, returning false so the caller can
// steer the loop toward answering instead of cycling.
func (s *State) AdoptQuery(q string) bool {
	if q == "" {
		return false
	}
	if _, dup := s.priorQueries[q]; dup {
		return false
	}
	s.priorQueries[q] = struct{}{}
	s.WorkingQuery = q
	return true
}

// ArticlesFound lists the distinct article IDs seen across internal hits,
// sorted for a stable prompt rendering.
func (s *State) ArticlesFound() []string {
	set := make(map[string]struct{})
	for _, h := range s.Hits {
		if h.Source != SourceInternal {
			continue
		}
		if id := metaString(h.Metadata, "article_id"); id != "" {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
