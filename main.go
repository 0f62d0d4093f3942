package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/agent"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/circuitbreaker"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/embeddings"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/health"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/httpapi"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/llm"
	_ "github.com/NguyenVoTheTuyen/legal-rag/internal/metrics" // Import for side effects
	"github.com/NguyenVoTheTuyen/legal-rag/internal/prompts"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/streaming"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/tracing"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/vectordb"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/websearch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Root context for background services
	ctx := context.Background()

	bootLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Start circuit breaker metrics collection
	circuitbreaker.StartMetricsCollection()

	engineCfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := buildLogger(engineCfg.Logging)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	// ------------------------------------------------------------------
	// Bring up the health manager and its HTTP endpoints early so probes
	// get answers while the clients below are still connecting.
	// ------------------------------------------------------------------
	hm := health.NewManager(engineCfg.Health.CheckInterval, engineCfg.Health.Timeout, logger)
	var healthServer *http.Server
	if engineCfg.Health.Enabled {
		healthServer = health.StartHealthServer(hm, engineCfg.Service.HealthPort, logger)
		if err := hm.Start(ctx); err != nil {
			logger.Warn("Health background checks failed to start", zap.Error(err))
		}
	}

	// Prompt templates, shared by the decider, refiner and synthesizer
	registry := prompts.NewRegistry(logger)

	// Start configuration manager (hot-reload) - ASYNC so a slow config
	// directory never blocks serving
	var engineMgr *config.EngineManager
	cfgReady := make(chan struct{})
	go func() {
		configDir := configDirFromEnv()
		configMgr, err := config.NewConfigManager(configDir, logger)
		if err != nil {
			logger.Warn("Config manager init failed", zap.Error(err))
			return
		}

		startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := configMgr.Start(startCtx); err != nil {
			logger.Warn("Config manager start failed", zap.Error(err))
			return
		}

		mgr := config.NewEngineManager(configMgr, engineCfg, logger)
		if err := mgr.Initialize(); err != nil {
			logger.Warn("Engine config hot-reload init failed", zap.Error(err))
			return
		}
		registry.RegisterWith(configMgr)
		engineMgr = mgr
		close(cfgReady)
		logger.Info("Configuration hot-reload active", zap.String("dir", configDir))
	}()

	// ------------------------------------------------------------------
	// Collaborator clients. Each registers its health checker right after
	// initialization so /health reflects what is actually wired.
	// ------------------------------------------------------------------

	// Embeddings service with optional Redis-backed cache
	ecfg := embeddings.Config{
		BaseURL:      engineCfg.Embeddings.BaseURL,
		DefaultModel: engineCfg.Embeddings.Model,
		Timeout:      engineCfg.Embeddings.Timeout,
		EnableRedis:  engineCfg.Embeddings.UseRedisCache,
		RedisAddr:    engineCfg.Embeddings.RedisAddr,
		CacheTTL:     engineCfg.Embeddings.CacheTTL,
		MaxLRU:       engineCfg.Embeddings.MaxLRU,
	}
	var cache embeddings.EmbeddingCache
	if ecfg.EnableRedis {
		if c, err := embeddings.NewRedisCache(ecfg.RedisAddr); err == nil {
			cache = c
			_ = hm.RegisterChecker(health.NewRedisHealthChecker(c.Wrapper()))
		} else {
			logger.Warn("Embeddings Redis cache init failed, falling back to local LRU", zap.Error(err))
		}
	}
	embeddings.Initialize(ecfg, cache, logger)
	_ = hm.RegisterChecker(health.NewHTTPHealthChecker("embedder", engineCfg.Embeddings.BaseURL+"/health", true))

	// Qdrant holds the statute chunks; a missing collection is fatal for
	// readiness but not for startup, the checker reports it instead.
	vcfg := vectordb.Config{
		Enabled:    true,
		URL:        engineCfg.VectorDB.URL,
		Collection: engineCfg.VectorDB.Collection,
		VectorSize: engineCfg.VectorDB.VectorSize,
		TopK:       engineCfg.Agent.TopK,
		Threshold:  engineCfg.Agent.RelevanceThreshold,
		Timeout:    engineCfg.VectorDB.Timeout,
	}
	if err := vectordb.ValidateAndInitialize(vcfg, logger); err != nil {
		logger.Warn("Vector store validation failed", zap.Error(err))
	}
	_ = hm.RegisterChecker(health.NewQdrantHealthChecker())

	// Ollama for decisions, refinement and answer synthesis
	llm.Initialize(llm.Config{
		BaseURL:             engineCfg.LLM.BaseURL,
		Model:               engineCfg.LLM.Model,
		Timeout:             engineCfg.LLM.Timeout,
		DecisionTemperature: engineCfg.LLM.DecisionTemperature,
		DecisionMaxTokens:   engineCfg.LLM.DecisionMaxTokens,
		RefineTemperature:   engineCfg.LLM.RefineTemperature,
		RefineMaxTokens:     engineCfg.LLM.RefineMaxTokens,
		AnswerTemperature:   engineCfg.LLM.AnswerTemperature,
		AnswerMaxTokens:     engineCfg.LLM.AnswerMaxTokens,
	}, logger)
	_ = hm.RegisterChecker(health.NewOllamaHealthChecker())

	// SearXNG web escalation, off unless configured. The per-request
	// enable_web_search flag gates usage, not the client itself.
	websearch.Initialize(websearch.Config{
		Enabled:    engineCfg.WebSearch.Enabled,
		BaseURL:    engineCfg.WebSearch.BaseURL,
		Timeout:    engineCfg.WebSearch.Timeout,
		MaxResults: engineCfg.WebSearch.MaxResults,
		Language:   engineCfg.WebSearch.Language,
		Categories: engineCfg.WebSearch.Categories,
		Engines:    engineCfg.WebSearch.Engines,
		RPS:        engineCfg.WebSearch.RateLimitRPS,
		Burst:      engineCfg.WebSearch.RateLimitBurst,
	}, logger)
	_ = hm.RegisterChecker(health.NewSearxngHealthChecker())

	if err := tracing.Initialize(tracing.Config{
		Enabled:      engineCfg.Tracing.Enabled,
		ServiceName:  engineCfg.Tracing.ServiceName,
		OTLPEndpoint: engineCfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Failed to initialize tracing", zap.Error(err))
	}

	if engineCfg.Streaming.RingCapacity > 0 {
		streaming.Configure(engineCfg.Streaming.RingCapacity)
	}

	// Start Prometheus metrics endpoint on configured port
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", engineCfg.Service.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("Metrics server listening", zap.String("address", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start metrics server", zap.Error(err))
		}
	}()

	// ------------------------------------------------------------------
	// The decision loop and the API in front of it.
	// ------------------------------------------------------------------
	orchestrator := agent.NewFromClients(engineCfg, registry, streaming.Get(), logger)

	var redisClient *redis.Client
	if engineCfg.API.RedisAddr != "" && (engineCfg.API.RateLimitPerMinute > 0 || engineCfg.API.IdempotencyEnabled) {
		redisClient = redis.NewClient(&redis.Options{Addr: engineCfg.API.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("API Redis unreachable, disabling rate limiting and idempotency", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		}
		cancel()
	}

	api := httpapi.NewServer(orchestrator, streaming.Get(), engineCfg, redisClient, logger)
	api.SetConfigProvider(func() *config.EngineConfig {
		select {
		case <-cfgReady:
			return engineMgr.GetConfig()
		default:
			return engineCfg
		}
	})

	apiServer := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", engineCfg.Service.Host, engineCfg.Service.Port),
		Handler:        api.Handler(),
		ReadTimeout:    engineCfg.Service.ReadTimeout,
		WriteTimeout:   engineCfg.Service.WriteTimeout,
		MaxHeaderBytes: engineCfg.Service.MaxHeaderBytes,
	}
	go func() {
		logger.Info("Legal RAG engine listening",
			zap.String("address", apiServer.Addr),
			zap.String("model", engineCfg.LLM.Model),
			zap.String("collection", engineCfg.VectorDB.Collection))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down legal RAG engine")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), engineCfg.Service.GracefulTimeout)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}
	_ = metricsServer.Shutdown(shutdownCtx)
	if healthServer != nil {
		_ = healthServer.Shutdown(shutdownCtx)
	}
	_ = hm.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// buildLogger constructs the service logger from configuration. Development
// mode switches to the human-readable console encoder.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Encoding != "" {
		zcfg.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// configDirFromEnv derives the hot-reload watch directory from CONFIG_PATH,
// keeping it next to engine.yaml so prompts.yaml edits are picked up too.
func configDirFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return filepath.Dir(p)
	}
	return "config"
}
