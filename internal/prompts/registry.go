package prompts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
)

// ConfigFileName is the override file watched for hot reload.
const ConfigFileName = "prompts.yaml"

// Registry holds the active prompt templates. All reads go through the
// registry so a hot reload takes effect on the next request.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]string
	logger    *zap.Logger
}

// NewRegistry constructs a registry seeded with the built-in templates.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		templates: defaultTemplates(),
		logger:    logger,
	}
}

// Get returns the template registered under name.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[name]
	return tpl, ok
}

// Set replaces a single template. Unknown names are rejected so a typo in
// prompts.yaml cannot silently add a template nothing reads.
func (r *Registry) Set(name, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.templates[name]; !ok {
		return fmt.Errorf("unknown template %q, known templates: %s", name, strings.Join(knownTemplateNames(), ", "))
	}
	r.templates[name] = content
	return nil
}

// All returns a copy of the current templates.
func (r *Registry) All() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.templates))
	for k, v := range r.templates {
		out[k] = v
	}
	return out
}

// ResetDefaults restores all built-in templates.
func (r *Registry) ResetDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates = defaultTemplates()
}

// ApplyOverrides resets to defaults and lays the given overrides on top.
// Removing a key from prompts.yaml therefore reverts that template.
func (r *Registry) ApplyOverrides(overrides map[string]interface{}) error {
	fresh := defaultTemplates()
	for name, v := range overrides {
		content, ok := v.(string)
		if !ok {
			return fmt.Errorf("template %q must be a string, got %T", name, v)
		}
		if _, known := fresh[name]; !known {
			return fmt.Errorf("unknown template %q, known templates: %s", name, strings.Join(knownTemplateNames(), ", "))
		}
		fresh[name] = content
	}

	r.mu.Lock()
	r.templates = fresh
	r.mu.Unlock()
	return nil
}

// ValidatePromptsMap rejects a prompts.yaml that names unknown templates or
// carries non-string values. Registered as the hot-reload validator so a bad
// file never reaches the running registry.
func ValidatePromptsMap(m map[string]interface{}) error {
	known := defaultTemplates()
	for name, v := range m {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unknown template %q, known templates: %s", name, strings.Join(knownTemplateNames(), ", "))
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("template %q must be a string, got %T", name, v)
		}
	}
	return nil
}

// RegisterWith wires the registry into the config manager for hot reload.
func (r *Registry) RegisterWith(cm *config.ConfigManager) {
	cm.RegisterValidator(ConfigFileName, ValidatePromptsMap)
	cm.RegisterHandler(ConfigFileName, func(event config.ChangeEvent) error {
		if event.Action == "delete" {
			r.ResetDefaults()
			r.logger.Info("Prompt overrides removed, defaults restored")
			return nil
		}
		if err := r.ApplyOverrides(event.Config); err != nil {
			return err
		}
		r.logger.Info("Prompt templates reloaded",
			zap.String("action", event.Action),
			zap.Int("overrides", len(event.Config)),
		)
		return nil
	})

	// Pick up a file the manager loaded before we registered
	if cfg, ok := cm.GetConfig(ConfigFileName); ok {
		if err := r.ApplyOverrides(cfg); err != nil {
			r.logger.Warn("Ignoring invalid prompt overrides", zap.Error(err))
		}
	}
}

func knownTemplateNames() []string {
	known := defaultTemplates()
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecisionParams feeds the next-action prompt.
type DecisionParams struct {
	Question           string
	Query              string
	NumInternalResults int
	NumWebResults      int
	Iteration          int
	ResultsPreview     string
	EnableWebSearch    bool
}

// DecisionPrompt renders the next-action prompt. When web search is enabled
// the web_search option block and suffix are spliced into the template.
func (r *Registry) DecisionPrompt(p DecisionParams) string {
	tpl, _ := r.Get(KeyDecisionPrompt)

	option := ""
	suffix := ""
	if p.EnableWebSearch {
		option, _ = r.Get(KeyWebSearchGuidance)
		suffix = webSearchSuffix
	}

	return strings.NewReplacer(
		"{question}", p.Question,
		"{query}", p.Query,
		"{num_internal_results}", strconv.Itoa(p.NumInternalResults),
		"{num_web_results}", strconv.Itoa(p.NumWebResults),
		"{iteration}", strconv.Itoa(p.Iteration),
		"{results_preview}", p.ResultsPreview,
		"{web_search_option}", option,
		"{web_search_suffix}", suffix,
	).Replace(tpl)
}

// RefineParams feeds the query-refinement prompt.
type RefineParams struct {
	Question      string
	CurrentQuery  string
	Iteration     int
	ArticlesFound string
}

// RefinePrompt renders the query-refinement prompt.
func (r *Registry) RefinePrompt(p RefineParams) string {
	tpl, _ := r.Get(KeyRefinePrompt)

	return strings.NewReplacer(
		"{question}", p.Question,
		"{current_query}", p.CurrentQuery,
		"{iteration}", strconv.Itoa(p.Iteration),
		"{articles_found}", p.ArticlesFound,
	).Replace(tpl)
}

// SystemPrompt returns the synthesis system prompt.
func (r *Registry) SystemPrompt() string {
	tpl, _ := r.Get(KeySystemPrompt)
	return tpl
}

// UserPrompt renders the synthesis user prompt around the retrieved context.
func (r *Registry) UserPrompt(context, question string) string {
	tpl, _ := r.Get(KeyUserPrompt)

	return strings.NewReplacer(
		"{context}", context,
		"{question}", question,
	).Replace(tpl)
}
