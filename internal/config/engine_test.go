package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()

	t.Run("AgentDefaults", func(t *testing.T) {
		assert.Equal(t, 3, cfg.Agent.MaxIterations)
		assert.Equal(t, 10, cfg.Agent.MaxIterationsLimit)
		assert.Equal(t, 3, cfg.Agent.TopK)
		assert.Equal(t, 20, cfg.Agent.TopKLimit)
		assert.True(t, cfg.Agent.EnableWebSearch)
		assert.Equal(t, 0.5, cfg.Agent.RelevanceThreshold)
		assert.Contains(t, cfg.Agent.SpecificDataKeywords, "bao nhiêu")
		assert.Contains(t, cfg.Agent.SpecificDataKeywords, "mới nhất")
	})

	t.Run("CollaboratorDefaults", func(t *testing.T) {
		assert.Equal(t, "http://localhost:6333", cfg.VectorDB.URL)
		assert.Equal(t, "legal_documents", cfg.VectorDB.Collection)
		assert.Equal(t, 768, cfg.VectorDB.VectorSize)
		assert.Equal(t, "qwen2.5:7b", cfg.LLM.Model)
		assert.Equal(t, 0.1, cfg.LLM.AnswerTemperature)
		assert.Equal(t, 2000, cfg.LLM.AnswerMaxTokens)
		assert.Equal(t, "http://localhost:8888", cfg.WebSearch.BaseURL)
		assert.Equal(t, "vi", cfg.WebSearch.Language)
	})

	t.Run("ValidatesClean", func(t *testing.T) {
		require.NoError(t, cfg.Validate())
	})
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	content := `
service:
  port: 9090
agent:
  max_iterations: 5
  top_k: 4
  relevance_threshold: 0.7
llm:
  model: llama3.2
  timeout: 60s
websearch:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load(zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Run("FileValuesApplied", func(t *testing.T) {
		assert.Equal(t, 9090, cfg.Service.Port)
		assert.Equal(t, 5, cfg.Agent.MaxIterations)
		assert.Equal(t, 4, cfg.Agent.TopK)
		assert.Equal(t, 0.7, cfg.Agent.RelevanceThreshold)
		assert.Equal(t, "llama3.2", cfg.LLM.Model)
		assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
		assert.False(t, cfg.WebSearch.Enabled)
	})

	t.Run("MissingKeysKeepDefaults", func(t *testing.T) {
		assert.Equal(t, 8081, cfg.Service.HealthPort)
		assert.Equal(t, "legal_documents", cfg.VectorDB.Collection)
		assert.Equal(t, 0.1, cfg.LLM.AnswerTemperature)
		assert.NotEmpty(t, cfg.Agent.SpecificDataKeywords)
	})
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	cfg, err := Load(zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, "http://localhost:6333", cfg.VectorDB.URL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("COLLECTION_NAME", "labor_code")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_MODEL", "llama3.2")
	t.Setenv("SEARXNG_URL", "http://searxng:8080")
	t.Setenv("MAX_ITERATIONS", "7")
	t.Setenv("TOP_K", "5")
	t.Setenv("RELEVANCE_THRESHOLD", "0.65")
	t.Setenv("ENABLE_WEB_SEARCH", "false")

	cfg, err := Load(zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "http://qdrant:6333", cfg.VectorDB.URL)
	assert.Equal(t, "labor_code", cfg.VectorDB.Collection)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, "http://searxng:8080", cfg.WebSearch.BaseURL)
	assert.Equal(t, 7, cfg.Agent.MaxIterations)
	assert.Equal(t, 5, cfg.Agent.TopK)
	assert.Equal(t, 0.65, cfg.Agent.RelevanceThreshold)
	assert.False(t, cfg.WebSearch.Enabled)
}

func TestEngineConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr string
	}{
		{
			name:    "BadPort",
			mutate:  func(c *EngineConfig) { c.Service.Port = 0 },
			wantErr: "service port",
		},
		{
			name:    "ZeroIterations",
			mutate:  func(c *EngineConfig) { c.Agent.MaxIterations = 0 },
			wantErr: "max_iterations",
		},
		{
			name:    "IterationsAboveLimit",
			mutate:  func(c *EngineConfig) { c.Agent.MaxIterations = 11 },
			wantErr: "max_iterations",
		},
		{
			name:    "TopKAboveLimit",
			mutate:  func(c *EngineConfig) { c.Agent.TopK = 21 },
			wantErr: "top_k",
		},
		{
			name:    "ThresholdOutOfRange",
			mutate:  func(c *EngineConfig) { c.Agent.RelevanceThreshold = 1.5 },
			wantErr: "relevance_threshold",
		},
		{
			name:    "EmptyCollection",
			mutate:  func(c *EngineConfig) { c.VectorDB.Collection = "" },
			wantErr: "collection",
		},
		{
			name:    "UnknownLogLevel",
			mutate:  func(c *EngineConfig) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateEngineMap(t *testing.T) {
	t.Run("AcceptsIntAndFloat", func(t *testing.T) {
		// yaml.v3 produces int for whole numbers, json float64
		assert.NoError(t, ValidateEngineMap(map[string]interface{}{
			"agent": map[string]interface{}{"max_iterations": 5, "relevance_threshold": 0.7},
		}))
		assert.NoError(t, ValidateEngineMap(map[string]interface{}{
			"agent": map[string]interface{}{"max_iterations": float64(5)},
		}))
	})

	t.Run("RejectsBadThreshold", func(t *testing.T) {
		err := ValidateEngineMap(map[string]interface{}{
			"agent": map[string]interface{}{"relevance_threshold": 1.5},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relevance_threshold")
	})

	t.Run("RejectsZeroIterations", func(t *testing.T) {
		err := ValidateEngineMap(map[string]interface{}{
			"agent": map[string]interface{}{"max_iterations": 0},
		})
		require.Error(t, err)
	})

	t.Run("IgnoresUnrelatedSections", func(t *testing.T) {
		assert.NoError(t, ValidateEngineMap(map[string]interface{}{
			"service": map[string]interface{}{"port": -1},
		}))
	})
}

func TestEngineManagerHotReload(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cm, err := NewConfigManager(t.TempDir(), logger)
	require.NoError(t, err)
	defer cm.Stop()

	em := NewEngineManager(cm, DefaultEngineConfig(), logger)
	require.NoError(t, em.Initialize())

	t.Run("AppliesAgentTunables", func(t *testing.T) {
		err := em.handleConfigChange(ChangeEvent{
			File:   "engine.yaml",
			Action: "modify",
			Config: map[string]interface{}{
				"agent": map[string]interface{}{
					"max_iterations":      5,
					"relevance_threshold": 0.65,
					"enable_web_search":   false,
				},
			},
			Timestamp: time.Now(),
		})
		require.NoError(t, err)

		got := em.GetConfig()
		assert.Equal(t, 5, got.Agent.MaxIterations)
		assert.Equal(t, 0.65, got.Agent.RelevanceThreshold)
		assert.False(t, got.Agent.EnableWebSearch)
	})

	t.Run("DeleteKeepsCurrent", func(t *testing.T) {
		before := em.GetConfig()
		err := em.handleConfigChange(ChangeEvent{
			File:      "engine.yaml",
			Action:    "delete",
			Timestamp: time.Now(),
		})
		require.NoError(t, err)
		assert.Equal(t, before.Agent.MaxIterations, em.GetConfig().Agent.MaxIterations)
	})

	t.Run("SetConfigDispatchesAsync", func(t *testing.T) {
		err := cm.SetConfig("engine.yaml", map[string]interface{}{
			"agent": map[string]interface{}{"top_k": float64(6)},
		})
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return em.GetConfig().Agent.TopK == 6
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("ValidatorRejectsBadReload", func(t *testing.T) {
		err := cm.SetConfig("engine.yaml", map[string]interface{}{
			"agent": map[string]interface{}{"relevance_threshold": 2.0},
		})
		require.Error(t, err)
	})
}
