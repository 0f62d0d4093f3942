package prompts

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
)

func TestRegistryDefaults(t *testing.T) {
	reg := NewRegistry(nil)

	all := reg.All()
	if len(all) != 5 {
		t.Fatalf("expected 5 default templates, got %d", len(all))
	}

	system, ok := reg.Get(KeySystemPrompt)
	if !ok {
		t.Fatalf("expected system prompt to be present")
	}
	if !strings.Contains(system, "Bộ luật Lao động Việt Nam") {
		t.Fatalf("system prompt missing statute anchor: %q", system)
	}

	if _, ok := reg.Get("nonexistent"); ok {
		t.Fatalf("expected unknown template to be absent")
	}
}

func TestDecisionPromptRendering(t *testing.T) {
	reg := NewRegistry(nil)

	withWeb := reg.DecisionPrompt(DecisionParams{
		Question:           "Mức lương tối thiểu vùng 1 là bao nhiêu?",
		Query:              "lương tối thiểu",
		NumInternalResults: 2,
		NumWebResults:      0,
		Iteration:          1,
		ResultsPreview:     "1. [Nội bộ] Dieu_91: Mức lương tối thiểu...",
		EnableWebSearch:    true,
	})

	if !strings.Contains(withWeb, "Mức lương tối thiểu vùng 1 là bao nhiêu?") {
		t.Fatalf("question not rendered")
	}
	if !strings.Contains(withWeb, "Số kết quả nội bộ: 2") {
		t.Fatalf("internal result count not rendered")
	}
	if !strings.Contains(withWeb, `"web_search"`) {
		t.Fatalf("web search guidance missing when enabled")
	}
	if !strings.Contains(withWeb, "answer, refine, search, hoặc web_search.") {
		t.Fatalf("web search suffix missing: %q", withWeb)
	}
	if strings.Contains(withWeb, "{") {
		t.Fatalf("unreplaced placeholder remains: %q", withWeb)
	}

	withoutWeb := reg.DecisionPrompt(DecisionParams{
		Question:        "Thời gian thử việc tối đa bao nhiêu ngày?",
		Query:           "thời gian thử việc",
		Iteration:       1,
		ResultsPreview:  "Chưa có kết quả nào.",
		EnableWebSearch: false,
	})

	if strings.Contains(withoutWeb, "web_search") {
		t.Fatalf("web search guidance leaked into disabled prompt")
	}
	if !strings.Contains(withoutWeb, "answer, refine, search.") {
		t.Fatalf("closing instruction malformed: %q", withoutWeb)
	}
}

func TestRefinePromptRendering(t *testing.T) {
	reg := NewRegistry(nil)

	got := reg.RefinePrompt(RefineParams{
		Question:      "Lương 10 triệu thử việc 2 tháng có đúng luật không?",
		CurrentQuery:  "lương 10 triệu thử việc",
		Iteration:     2,
		ArticlesFound: "Dieu_24, Dieu_26",
	})

	if !strings.Contains(got, "Query hiện tại: lương 10 triệu thử việc") {
		t.Fatalf("current query not rendered")
	}
	if !strings.Contains(got, "Đã tìm kiếm: 2 lần") {
		t.Fatalf("iteration not rendered")
	}
	if !strings.Contains(got, "Dieu_24, Dieu_26") {
		t.Fatalf("articles not rendered")
	}
}

func TestUserPromptRendering(t *testing.T) {
	reg := NewRegistry(nil)

	got := reg.UserPrompt("[Điều luật 1]\nĐiều: Dieu_24", "Thử việc bao lâu?")
	if !strings.Contains(got, "[Điều luật 1]") {
		t.Fatalf("context not rendered")
	}
	if !strings.Contains(got, "Câu hỏi: Thử việc bao lâu?") {
		t.Fatalf("question not rendered")
	}
}

func TestSetRejectsUnknownTemplate(t *testing.T) {
	reg := NewRegistry(nil)

	if err := reg.Set("decison_prompt", "typo"); err == nil {
		t.Fatalf("expected error for unknown template name")
	}
	if err := reg.Set(KeySystemPrompt, "custom"); err != nil {
		t.Fatalf("Set known template: %v", err)
	}
	got, _ := reg.Get(KeySystemPrompt)
	if got != "custom" {
		t.Fatalf("expected override to stick, got %q", got)
	}
}

func TestApplyOverridesRevertsRemovedKeys(t *testing.T) {
	reg := NewRegistry(nil)

	err := reg.ApplyOverrides(map[string]interface{}{
		KeySystemPrompt: "custom system",
	})
	if err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}
	if got, _ := reg.Get(KeySystemPrompt); got != "custom system" {
		t.Fatalf("override not applied, got %q", got)
	}

	// An override file without the key reverts it to the default
	if err := reg.ApplyOverrides(map[string]interface{}{}); err != nil {
		t.Fatalf("ApplyOverrides empty: %v", err)
	}
	if got, _ := reg.Get(KeySystemPrompt); got == "custom system" {
		t.Fatalf("expected default restored")
	}
}

func TestValidatePromptsMap(t *testing.T) {
	if err := ValidatePromptsMap(map[string]interface{}{KeyUserPrompt: "ok"}); err != nil {
		t.Fatalf("valid map rejected: %v", err)
	}
	if err := ValidatePromptsMap(map[string]interface{}{"bogus": "x"}); err == nil {
		t.Fatalf("unknown template accepted")
	}
	if err := ValidatePromptsMap(map[string]interface{}{KeyUserPrompt: 42}); err == nil {
		t.Fatalf("non-string template accepted")
	}
}

func TestRegisterWithHotReload(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm, err := config.NewConfigManager(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewConfigManager: %v", err)
	}
	defer cm.Stop()

	reg := NewRegistry(logger)
	reg.RegisterWith(cm)

	if err := cm.SetConfig(ConfigFileName, map[string]interface{}{
		KeySystemPrompt: "reloaded system",
	}); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, _ := reg.Get(KeySystemPrompt); got == "reloaded system" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reload never applied")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A file with unknown keys is rejected before reaching the registry
	if err := cm.SetConfig(ConfigFileName, map[string]interface{}{"bogus": "x"}); err == nil {
		t.Fatalf("expected validator to reject unknown template")
	}
}
