package llm

import "time"

// Config holds the Ollama connection and per-purpose sampling settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	DecisionTemperature float64
	DecisionMaxTokens   int
	RefineTemperature   float64
	RefineMaxTokens     int
	AnswerTemperature   float64
	AnswerMaxTokens     int
}

// Purpose labels for metrics and spans. One per call site in the agent loop.
const (
	PurposeDecision   = "decision"
	PurposeRefinement = "refinement"
	PurposeSynthesis  = "synthesis"
)

// generateRequest is the Ollama /api/generate payload
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// generateResponse is the non-streaming Ollama /api/generate response
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// tagsResponse is the Ollama /api/tags response listing local models
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// GenerateParams carries one completion request.
type GenerateParams struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
}
