package agent

import (
	"reflect"
	"testing"
)

func TestAppendHitsDedupsPerSource(t *testing.T) {
	st := NewState("thử việc bao lâu?", 3, 3, true)

	added := st.AppendHits([]SearchHit{
		{Text: "Điều 25. Thời gian thử việc", Source: SourceInternal, Score: 0.9},
		{Text: "", Source: SourceInternal, Score: 0.8},
		{Text: "Điều 25. Thời gian thử việc", Source: SourceInternal, Score: 0.7},
	})
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}

	// The same text from the web is a distinct piece of evidence.
	added = st.AppendHits([]SearchHit{
		{Text: "Điều 25. Thời gian thử việc", Source: SourceWeb, Score: 0.5},
	})
	if added != 1 {
		t.Fatalf("expected web duplicate text to be kept, got %d added", added)
	}

	// A later search repeating an internal hit adds nothing.
	added = st.AppendHits([]SearchHit{
		{Text: "Điều 25. Thời gian thử việc", Source: SourceInternal, Score: 0.95},
	})
	if added != 0 {
		t.Fatalf("expected repeat internal hit dropped, got %d added", added)
	}

	if got := len(st.InternalHits()); got != 1 {
		t.Fatalf("expected 1 internal hit, got %d", got)
	}
	if got := len(st.WebHits()); got != 1 {
		t.Fatalf("expected 1 web hit, got %d", got)
	}
}

func TestHitsOfNeverNil(t *testing.T) {
	st := NewState("q", 3, 3, false)
	if st.InternalHits() == nil || st.WebHits() == nil {
		t.Fatal("hit slices must be non-nil even when empty")
	}
}

func TestAdoptQuery(t *testing.T) {
	st := NewState("mức lương tối thiểu", 3, 3, false)

	if st.AdoptQuery("") {
		t.Fatal("empty query adopted")
	}
	if st.AdoptQuery("mức lương tối thiểu") {
		t.Fatal("the original question counts as a used query")
	}
	if !st.AdoptQuery("lương tối thiểu vùng 2024") {
		t.Fatal("fresh query rejected")
	}
	if st.WorkingQuery != "lương tối thiểu vùng 2024" {
		t.Fatalf("working query not updated: %q", st.WorkingQuery)
	}
	if st.AdoptQuery("lương tối thiểu vùng 2024") {
		t.Fatal("adopted query accepted twice")
	}
}

func TestRecordIterationIndexesFromOne(t *testing.T) {
	st := NewState("q", 3, 3, false)

	st.RecordIteration(ActionSearchInternal, 2)
	st.AdoptQuery("q refined")
	st.RecordIteration(ActionRefine, 0)

	if st.Iteration != 2 {
		t.Fatalf("expected iteration 2, got %d", st.Iteration)
	}
	want := []IterationRecord{
		{Index: 1, Action: ActionSearchInternal, WorkingQuery: "q", HitsAdded: 2},
		{Index: 2, Action: ActionRefine, WorkingQuery: "q refined", HitsAdded: 0},
	}
	if !reflect.DeepEqual(st.History, want) {
		t.Fatalf("unexpected history: %+v", st.History)
	}
}

func TestLastSearchSkipsRefines(t *testing.T) {
	st := NewState("q", 5, 3, true)

	if _, ok := st.LastSearch(); ok {
		t.Fatal("empty history reported a search")
	}

	st.AppendHits([]SearchHit{{Text: "a", Source: SourceInternal, Score: 0.4}})
	st.RecordIteration(ActionSearchInternal, 1)
	st.AdoptQuery("q2")
	st.RecordIteration(ActionRefine, 0)

	rec, ok := st.LastSearch()
	if !ok || rec.Action != ActionSearchInternal || rec.Index != 1 {
		t.Fatalf("unexpected last search: %+v ok=%v", rec, ok)
	}
}

func TestLastSearchHitsReturnsTail(t *testing.T) {
	st := NewState("q", 5, 3, true)

	st.AppendHits([]SearchHit{{Text: "a", Source: SourceInternal, Score: 0.4}})
	st.RecordIteration(ActionSearchInternal, 1)
	added := st.AppendHits([]SearchHit{
		{Text: "b", Source: SourceWeb, Score: 0.6},
		{Text: "c", Source: SourceWeb, Score: 0.7},
	})
	st.RecordIteration(ActionSearchWeb, added)

	hits := st.LastSearchHits()
	if len(hits) != 2 || hits[0].Text != "b" || hits[1].Text != "c" {
		t.Fatalf("unexpected last search hits: %+v", hits)
	}

	// A search that added nothing has no hits to show.
	st.RecordIteration(ActionSearchInternal, 0)
	if got := st.LastSearchHits(); got != nil {
		t.Fatalf("expected nil for empty search, got %+v", got)
	}
}

func TestAttempts(t *testing.T) {
	st := NewState("q", 5, 3, true)
	st.RecordIteration(ActionSearchInternal, 0)
	st.RecordIteration(ActionSearchWeb, 0)
	st.RecordIteration(ActionSearchInternal, 0)

	if got := st.Attempts(ActionSearchInternal); got != 2 {
		t.Fatalf("expected 2 internal attempts, got %d", got)
	}
	if got := st.Attempts(ActionSearchWeb); got != 1 {
		t.Fatalf("expected 1 web attempt, got %d", got)
	}
	if got := st.Attempts(ActionRefine); got != 0 {
		t.Fatalf("expected 0 refine attempts, got %d", got)
	}
}

func TestArticlesFoundSortedDistinct(t *testing.T) {
	st := NewState("q", 3, 3, true)
	st.AppendHits([]SearchHit{
		{Text: "k2", Source: SourceInternal, Score: 0.8, Metadata: map[string]interface{}{"article_id": "Dieu_26"}},
		{Text: "k1", Source: SourceInternal, Score: 0.9, Metadata: map[string]interface{}{"article_id": "Dieu_24"}},
		{Text: "k3", Source: SourceInternal, Score: 0.7, Metadata: map[string]interface{}{"article_id": "Dieu_24"}},
		{Text: "no id", Source: SourceInternal, Score: 0.6},
		{Text: "web hit", Source: SourceWeb, Score: 0.5, Metadata: map[string]interface{}{"article_id": "Dieu_99"}},
	})

	got := st.ArticlesFound()
	want := []string{"Dieu_24", "Dieu_26"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
