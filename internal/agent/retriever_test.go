package agent

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

type failingWeb struct{}

func (failingWeb) Search(ctx context.Context, query string) ([]SearchHit, error) {
	return nil, errors.New("searxng unavailable")
}

func TestSearchInternalDegradesOnError(t *testing.T) {
	r := NewRetriever(failingInternal{}, nil, zaptest.NewLogger(t))

	hits := r.SearchInternal(context.Background(), "thử việc", 3)
	if hits != nil {
		t.Fatalf("expected nil hits from failing searcher, got %v", hits)
	}
}

func TestSearchWebDegradesOnError(t *testing.T) {
	r := NewRetriever(nil, failingWeb{}, zaptest.NewLogger(t))

	hits := r.SearchWeb(context.Background(), "mức lương tối thiểu")
	if hits != nil {
		t.Fatalf("expected nil hits from failing searcher, got %v", hits)
	}
}

func TestSearchWithoutCollaborators(t *testing.T) {
	r := NewRetriever(nil, nil, zaptest.NewLogger(t))

	if hits := r.SearchInternal(context.Background(), "q", 3); hits != nil {
		t.Fatalf("expected nil without internal searcher, got %v", hits)
	}
	if hits := r.SearchWeb(context.Background(), "q"); hits != nil {
		t.Fatalf("expected nil without web searcher, got %v", hits)
	}
}

func TestWebAvailable(t *testing.T) {
	if NewRetriever(failingInternal{}, nil, nil).WebAvailable() {
		t.Fatal("web reported available without a searcher")
	}
	if !NewRetriever(failingInternal{}, failingWeb{}, nil).WebAvailable() {
		t.Fatal("web reported unavailable with a searcher wired")
	}
}

func TestSearchInternalPassesQueryAndTopK(t *testing.T) {
	inner := &constantInternal{hits: []SearchHit{{Text: "Điều 25", Source: SourceInternal, Score: 0.8}}}
	r := NewRetriever(inner, nil, zaptest.NewLogger(t))

	hits := r.SearchInternal(context.Background(), "thời gian thử việc", 7)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if inner.lastTopK != 7 {
		t.Fatalf("top_k not forwarded: got %d", inner.lastTopK)
	}
}
