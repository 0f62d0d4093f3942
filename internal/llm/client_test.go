package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestGenerateSendsOllamaPayload(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"response": "  Thời gian thử việc tối đa 180 ngày.  \n",
			"done":     true,
		})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, Model: "qwen2.5:7b"}, zaptest.NewLogger(t))

	answer, err := c.Synthesize(context.Background(), "hệ thống", "câu hỏi")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if answer != "Thời gian thử việc tối đa 180 ngày." {
		t.Fatalf("expected trimmed response, got %q", answer)
	}

	if got.Model != "qwen2.5:7b" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Stream {
		t.Errorf("expected stream=false")
	}
	if got.System != "hệ thống" {
		t.Errorf("system = %q", got.System)
	}
	if got.Options.Temperature != 0.1 {
		t.Errorf("synthesis temperature = %v", got.Options.Temperature)
	}
	if got.Options.NumPredict != 2000 {
		t.Errorf("synthesis num_predict = %d", got.Options.NumPredict)
	}
}

func TestDecideUsesDecisionSampling(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "answer", "done": true})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, zaptest.NewLogger(t))

	action, err := c.Decide(context.Background(), "quyết định")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if action != "answer" {
		t.Fatalf("action = %q", action)
	}
	if got.Options.Temperature != 0.3 {
		t.Errorf("decision temperature = %v", got.Options.Temperature)
	}
	if got.Options.NumPredict != 16 {
		t.Errorf("decision num_predict = %d", got.Options.NumPredict)
	}
	if got.System != "" {
		t.Errorf("decision should not carry a system prompt, got %q", got.System)
	}
}

func TestGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, zaptest.NewLogger(t))

	if _, err := c.Generate(context.Background(), PurposeDecision, GenerateParams{Prompt: "x"}); err == nil {
		t.Fatalf("expected error on 500")
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"response": "   \n", "done": true})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, zaptest.NewLogger(t))

	if _, err := c.Generate(context.Background(), PurposeSynthesis, GenerateParams{Prompt: "x"}); err == nil {
		t.Fatalf("expected error on blank response")
	}
}

func TestProbeListsModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"models": []map[string]string{{"name": "qwen2.5:7b"}, {"name": "llama3.2"}},
		})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, zaptest.NewLogger(t))

	models, err := c.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(models) != 2 || models[0] != "qwen2.5:7b" {
		t.Fatalf("models = %v", models)
	}
}

func TestProbeUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))

	if _, err := c.Probe(context.Background()); err == nil {
		t.Fatalf("expected error for unreachable server")
	}
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	if _, err := c.Generate(context.Background(), PurposeDecision, GenerateParams{}); err == nil {
		t.Fatalf("expected error when client is nil")
	}
	if _, err := c.Probe(context.Background()); err == nil {
		t.Fatalf("expected error when client is nil")
	}
}
