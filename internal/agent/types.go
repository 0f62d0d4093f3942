package agent

import "errors"

// Action is one decision-loop outcome.
type Action string

const (
	ActionSearchInternal Action = "SEARCH_INTERNAL"
	ActionSearchWeb      Action = "SEARCH_WEB"
	ActionRefine         Action = "REFINE"
	ActionAnswer         Action = "ANSWER"
)

// SourceKind tags where a hit came from.
type SourceKind string

const (
	SourceInternal SourceKind = "internal"
	SourceWeb      SourceKind = "web"
)

// SearchHit is one retrieved piece of evidence with its provenance. For
// internal hits the metadata carries the statute coordinates (article_id,
// article_title, clause_id, chapter, section); for web hits it carries
// type, title, url, source and engine.
type SearchHit struct {
	Text     string                 `json:"text"`
	Source   SourceKind             `json:"source_kind"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IterationRecord documents one completed pass of the loop.
type IterationRecord struct {
	Index        int    `json:"iteration_index"`
	Action       Action `json:"action_taken"`
	WorkingQuery string `json:"working_query"`
	HitsAdded    int    `json:"hits_added"`
}

// AnswerPayload is the terminal result of one query run. The result lists
// preserve arrival order and are never nil.
type AnswerPayload struct {
	Answer        string      `json:"answer"`
	SearchResults []SearchHit `json:"search_results"`
	WebResults    []SearchHit `json:"web_results"`
	Iterations    int         `json:"iterations"`
	QueryUsed     string      `json:"query_used"`
}

// FallbackAnswer is returned when no evidence was found or the final
// generation failed.
const FallbackAnswer = "Xin lỗi, tôi không tìm thấy thông tin liên quan đến câu hỏi của bạn."

var (
	// ErrRequestCanceled reports that the governing context ended before
	// the loop finished. No partial payload accompanies it.
	ErrRequestCanceled = errors.New("request canceled")

	// ErrEmptyQuestion rejects blank input before the loop starts.
	ErrEmptyQuestion = errors.New("question must not be empty")
)

// metaString reads a string-valued metadata field, tolerating absent keys
// and non-string values.
func metaString(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// truncateRunes caps s at n runes. Previews clip Vietnamese text, so the
// cut must land on a rune boundary.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
