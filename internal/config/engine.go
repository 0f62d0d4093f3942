package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EngineConfig is the full engine configuration, loaded from engine.yaml.
type EngineConfig struct {
	Service    ServiceConfig    `mapstructure:"service" yaml:"service"`
	Agent      AgentConfig      `mapstructure:"agent" yaml:"agent"`
	VectorDB   VectorDBConfig   `mapstructure:"vectordb" yaml:"vectordb"`
	Embeddings EmbeddingsConfig `mapstructure:"embeddings" yaml:"embeddings"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	WebSearch  WebSearchConfig  `mapstructure:"websearch" yaml:"websearch"`
	Streaming  StreamingConfig  `mapstructure:"streaming" yaml:"streaming"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Health     HealthConfig     `mapstructure:"health" yaml:"health"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
}

// ServiceConfig contains basic service configuration
type ServiceConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	HealthPort      int           `mapstructure:"health_port" yaml:"health_port"`
	MetricsPort     int           `mapstructure:"metrics_port" yaml:"metrics_port"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" yaml:"graceful_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`
}

// AgentConfig contains the decision-loop defaults and tunables. The
// per-request API values override MaxIterations, TopK and EnableWebSearch
// within the configured limits.
type AgentConfig struct {
	MaxIterations        int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxIterationsLimit   int           `mapstructure:"max_iterations_limit" yaml:"max_iterations_limit"`
	TopK                 int           `mapstructure:"top_k" yaml:"top_k"`
	TopKLimit            int           `mapstructure:"top_k_limit" yaml:"top_k_limit"`
	EnableWebSearch      bool          `mapstructure:"enable_web_search" yaml:"enable_web_search"`
	RelevanceThreshold   float64       `mapstructure:"relevance_threshold" yaml:"relevance_threshold"`
	WebFallbackAfter     int           `mapstructure:"web_fallback_after" yaml:"web_fallback_after"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	SpecificDataKeywords []string      `mapstructure:"specific_data_keywords" yaml:"specific_data_keywords"`
}

// VectorDBConfig contains Qdrant settings for the legal corpus
type VectorDBConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	Collection string        `mapstructure:"collection" yaml:"collection"`
	VectorSize int           `mapstructure:"vector_size" yaml:"vector_size"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EmbeddingsConfig contains embedding service settings
type EmbeddingsConfig struct {
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url"`
	Model         string        `mapstructure:"model" yaml:"model"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxLRU        int           `mapstructure:"max_lru" yaml:"max_lru"`
	UseRedisCache bool          `mapstructure:"use_redis_cache" yaml:"use_redis_cache"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
}

// LLMConfig contains inference settings. Temperatures follow the original
// tuning: decisions and refinement at 0.3, grounded answers at 0.1.
type LLMConfig struct {
	BaseURL             string        `mapstructure:"base_url" yaml:"base_url"`
	Model               string        `mapstructure:"model" yaml:"model"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	DecisionTemperature float64       `mapstructure:"decision_temperature" yaml:"decision_temperature"`
	DecisionMaxTokens   int           `mapstructure:"decision_max_tokens" yaml:"decision_max_tokens"`
	RefineTemperature   float64       `mapstructure:"refine_temperature" yaml:"refine_temperature"`
	RefineMaxTokens     int           `mapstructure:"refine_max_tokens" yaml:"refine_max_tokens"`
	AnswerTemperature   float64       `mapstructure:"answer_temperature" yaml:"answer_temperature"`
	AnswerMaxTokens     int           `mapstructure:"answer_max_tokens" yaml:"answer_max_tokens"`
}

// WebSearchConfig contains SearXNG settings
type WebSearchConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxResults     int           `mapstructure:"max_results" yaml:"max_results"`
	Language       string        `mapstructure:"language" yaml:"language"`
	Categories     string        `mapstructure:"categories" yaml:"categories"`
	Engines        []string      `mapstructure:"engines" yaml:"engines"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// StreamingConfig contains streaming settings (ring buffer)
type StreamingConfig struct {
	RingCapacity int `mapstructure:"ring_capacity" yaml:"ring_capacity"`
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
	Encoding    string `mapstructure:"encoding" yaml:"encoding"` // "json" or "console"
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// APIConfig contains HTTP API middleware settings
type APIConfig struct {
	CORSEnabled        bool   `mapstructure:"cors_enabled" yaml:"cors_enabled"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RedisAddr          string `mapstructure:"redis_addr" yaml:"redis_addr"`
	IdempotencyEnabled bool   `mapstructure:"idempotency_enabled" yaml:"idempotency_enabled"`
}

// DefaultEngineConfig returns the default configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Service: ServiceConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			HealthPort:      8081,
			MetricsPort:     2112,
			GracefulTimeout: 30 * time.Second,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    180 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
		},
		Agent: AgentConfig{
			MaxIterations:      3,
			MaxIterationsLimit: 10,
			TopK:               3,
			TopKLimit:          20,
			EnableWebSearch:    true,
			RelevanceThreshold: 0.5,
			WebFallbackAfter:   2,
			RequestTimeout:     5 * time.Minute,
			SpecificDataKeywords: []string{
				"bao nhiêu", "mức", "tỷ lệ", "%", "phần trăm",
				"số tiền", "tiền", "lương", "ngày", "tháng", "năm",
				"hiện nay", "mới nhất", "2024", "2025",
				"cụ thể", "chính xác", "đúng",
			},
		},
		VectorDB: VectorDBConfig{
			URL:        "http://localhost:6333",
			Collection: "legal_documents",
			VectorSize: 768,
			Timeout:    5 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:       "http://localhost:8090",
			Model:         "bkai-foundation-models/vietnamese-bi-encoder",
			Timeout:       10 * time.Second,
			CacheTTL:      24 * time.Hour,
			MaxLRU:        2048,
			UseRedisCache: false,
			RedisAddr:     "localhost:6379",
		},
		LLM: LLMConfig{
			BaseURL:             "http://127.0.0.1:11434",
			Model:               "qwen2.5:7b",
			Timeout:             120 * time.Second,
			DecisionTemperature: 0.3,
			DecisionMaxTokens:   16,
			RefineTemperature:   0.3,
			RefineMaxTokens:     64,
			AnswerTemperature:   0.1,
			AnswerMaxTokens:     2000,
		},
		WebSearch: WebSearchConfig{
			Enabled:        true,
			BaseURL:        "http://localhost:8888",
			Timeout:        30 * time.Second,
			MaxResults:     3,
			Language:       "vi",
			Categories:     "general",
			Engines:        nil,
			RateLimitRPS:   1,
			RateLimitBurst: 2,
		},
		Streaming: StreamingConfig{
			RingCapacity: 256,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "legal-rag-engine",
			OTLPEndpoint: "localhost:4317",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
			Encoding:    "json",
		},
		Health: HealthConfig{
			Enabled:       true,
			CheckInterval: 30 * time.Second,
			Timeout:       5 * time.Second,
		},
		API: APIConfig{
			CORSEnabled:        true,
			RateLimitPerMinute: 60,
			RedisAddr:          "localhost:6379",
			IdempotencyEnabled: true,
		},
	}
}

// Load reads engine.yaml from CONFIG_PATH (or config/engine.yaml), applies
// environment overrides and validates the result. A missing file is not an
// error: defaults plus environment are enough to run.
func Load(logger *zap.Logger) (*EngineConfig, error) {
	cfg := DefaultEngineConfig()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/engine.yaml"
	}

	if _, err := os.Stat(cfgPath); err == nil {
		v := viper.New()
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
		if logger != nil {
			logger.Info("Configuration file loaded", zap.String("path", cfgPath))
		}
	} else if logger != nil {
		logger.Info("Configuration file not found, using defaults", zap.String("path", cfgPath))
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variables on top of the loaded file.
// Names follow the original deployment (QDRANT_URL, OLLAMA_URL, SEARXNG_URL...).
func applyEnvOverrides(cfg *EngineConfig) {
	cfg.Service.Host = getEnvOrDefault("HOST", cfg.Service.Host)
	cfg.Service.Port = getEnvOrDefaultInt("PORT", cfg.Service.Port)
	cfg.Service.HealthPort = getEnvOrDefaultInt("HEALTH_PORT", cfg.Service.HealthPort)
	cfg.Service.MetricsPort = getEnvOrDefaultInt("METRICS_PORT", cfg.Service.MetricsPort)

	cfg.VectorDB.URL = getEnvOrDefault("QDRANT_URL", cfg.VectorDB.URL)
	cfg.VectorDB.Collection = getEnvOrDefault("COLLECTION_NAME", cfg.VectorDB.Collection)
	cfg.VectorDB.VectorSize = getEnvOrDefaultInt("VECTOR_SIZE", cfg.VectorDB.VectorSize)

	cfg.Embeddings.BaseURL = getEnvOrDefault("EMBEDDER_URL", cfg.Embeddings.BaseURL)
	cfg.Embeddings.Model = getEnvOrDefault("EMBEDDING_MODEL", cfg.Embeddings.Model)
	cfg.Embeddings.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.Embeddings.RedisAddr)
	if v := os.Getenv("EMBEDDINGS_USE_REDIS"); v != "" {
		cfg.Embeddings.UseRedisCache = v == "true" || v == "1"
	}

	cfg.LLM.BaseURL = getEnvOrDefault("OLLAMA_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = getEnvOrDefault("OLLAMA_MODEL", cfg.LLM.Model)

	cfg.WebSearch.BaseURL = getEnvOrDefault("SEARXNG_URL", cfg.WebSearch.BaseURL)
	if v := os.Getenv("ENABLE_WEB_SEARCH"); v != "" {
		cfg.WebSearch.Enabled = v == "true" || v == "1"
	}

	cfg.Agent.MaxIterations = getEnvOrDefaultInt("MAX_ITERATIONS", cfg.Agent.MaxIterations)
	cfg.Agent.TopK = getEnvOrDefaultInt("TOP_K", cfg.Agent.TopK)
	if v := os.Getenv("RELEVANCE_THRESHOLD"); v != "" {
		var x float64
		_, _ = fmt.Sscanf(v, "%f", &x)
		if x > 0 {
			cfg.Agent.RelevanceThreshold = x
		}
	}

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)

	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		cfg.Tracing.Enabled = v == "true" || v == "1"
	}
	cfg.Tracing.OTLPEndpoint = getEnvOrDefault("OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)

	cfg.API.RateLimitPerMinute = getEnvOrDefaultInt("RATE_LIMIT_PER_MINUTE", cfg.API.RateLimitPerMinute)
	cfg.API.RedisAddr = getEnvOrDefault("API_REDIS_ADDR", cfg.API.RedisAddr)
}

// Validate checks the configuration for inconsistencies
func (c *EngineConfig) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service port must be between 1 and 65535, got %d", c.Service.Port)
	}
	if c.Service.HealthPort < 1 || c.Service.HealthPort > 65535 {
		return fmt.Errorf("health port must be between 1 and 65535, got %d", c.Service.HealthPort)
	}
	if c.Agent.MaxIterationsLimit < 1 {
		return fmt.Errorf("max_iterations_limit must be at least 1, got %d", c.Agent.MaxIterationsLimit)
	}
	if c.Agent.MaxIterations < 1 || c.Agent.MaxIterations > c.Agent.MaxIterationsLimit {
		return fmt.Errorf("max_iterations must be between 1 and %d, got %d",
			c.Agent.MaxIterationsLimit, c.Agent.MaxIterations)
	}
	if c.Agent.TopKLimit < 1 {
		return fmt.Errorf("top_k_limit must be at least 1, got %d", c.Agent.TopKLimit)
	}
	if c.Agent.TopK < 1 || c.Agent.TopK > c.Agent.TopKLimit {
		return fmt.Errorf("top_k must be between 1 and %d, got %d", c.Agent.TopKLimit, c.Agent.TopK)
	}
	if c.Agent.RelevanceThreshold < 0 || c.Agent.RelevanceThreshold > 1 {
		return fmt.Errorf("relevance_threshold must be between 0 and 1, got %v", c.Agent.RelevanceThreshold)
	}
	if c.VectorDB.URL == "" {
		return fmt.Errorf("vectordb url cannot be empty")
	}
	if c.VectorDB.Collection == "" {
		return fmt.Errorf("vectordb collection cannot be empty")
	}
	if c.VectorDB.VectorSize < 1 {
		return fmt.Errorf("vector_size must be positive, got %d", c.VectorDB.VectorSize)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// getEnvOrDefault returns the environment value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns the environment value parsed as int or a default
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

// asFloat coerces the numeric types yaml and json unmarshal into maps.
// yaml.v3 produces int for whole numbers, json always float64.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ValidateEngineMap validates a raw engine.yaml map before a hot reload is
// accepted. Only the hot-tunable agent section is checked strictly; a bad
// value here must not take down the running engine.
func ValidateEngineMap(config map[string]interface{}) error {
	agent, ok := config["agent"].(map[string]interface{})
	if !ok {
		return nil
	}
	if v, ok := asFloat(agent["relevance_threshold"]); ok {
		if v < 0 || v > 1 {
			return fmt.Errorf("relevance_threshold must be between 0 and 1, got %v", v)
		}
	}
	if v, ok := asFloat(agent["max_iterations"]); ok && v < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %v", v)
	}
	if v, ok := asFloat(agent["top_k"]); ok && v < 1 {
		return fmt.Errorf("top_k must be at least 1, got %v", v)
	}
	return nil
}

// EngineManager provides typed, hot-reloadable access to the agent tunables.
// It layers on top of the generic ConfigManager the same way the raw file
// watcher feeds the prompt registry.
type EngineManager struct {
	configManager *ConfigManager
	logger        *zap.Logger

	mu      sync.RWMutex
	current *EngineConfig
}

// NewEngineManager creates a typed manager seeded with the startup config
func NewEngineManager(configManager *ConfigManager, seed *EngineConfig, logger *zap.Logger) *EngineManager {
	if seed == nil {
		seed = DefaultEngineConfig()
	}
	return &EngineManager{
		configManager: configManager,
		logger:        logger,
		current:       seed,
	}
}

// GetConfig returns a copy of the current configuration
func (em *EngineManager) GetConfig() *EngineConfig {
	em.mu.RLock()
	defer em.mu.RUnlock()
	config := *em.current
	return &config
}

// Initialize registers the engine.yaml validator and change handler
func (em *EngineManager) Initialize() error {
	em.configManager.RegisterValidator("engine.yaml", ValidateEngineMap)
	em.configManager.RegisterHandler("engine.yaml", em.handleConfigChange)
	return nil
}

// handleConfigChange applies the hot-tunable agent and websearch sections.
// Service ports, collaborator URLs and the like require a restart.
func (em *EngineManager) handleConfigChange(event ChangeEvent) error {
	if event.Action == "delete" {
		em.logger.Info("engine.yaml removed, keeping current configuration")
		return nil
	}

	em.mu.Lock()
	defer em.mu.Unlock()

	updated := *em.current

	if agent, ok := event.Config["agent"].(map[string]interface{}); ok {
		if v, ok := asFloat(agent["max_iterations"]); ok && v >= 1 {
			updated.Agent.MaxIterations = int(v)
		}
		if v, ok := asFloat(agent["top_k"]); ok && v >= 1 {
			updated.Agent.TopK = int(v)
		}
		if v, ok := agent["enable_web_search"].(bool); ok {
			updated.Agent.EnableWebSearch = v
		}
		if v, ok := asFloat(agent["relevance_threshold"]); ok && v >= 0 && v <= 1 {
			updated.Agent.RelevanceThreshold = v
		}
		if v, ok := asFloat(agent["web_fallback_after"]); ok && v >= 0 {
			updated.Agent.WebFallbackAfter = int(v)
		}
	}

	if ws, ok := event.Config["websearch"].(map[string]interface{}); ok {
		if v, ok := ws["enabled"].(bool); ok {
			updated.WebSearch.Enabled = v
		}
		if v, ok := asFloat(ws["max_results"]); ok && v >= 1 {
			updated.WebSearch.MaxResults = int(v)
		}
	}

	em.current = &updated
	em.logger.Info("Engine configuration reloaded",
		zap.String("file", event.File),
		zap.String("action", event.Action),
		zap.Int("max_iterations", updated.Agent.MaxIterations),
		zap.Float64("relevance_threshold", updated.Agent.RelevanceThreshold),
		zap.Bool("web_search_enabled", updated.WebSearch.Enabled),
	)
	return nil
}
