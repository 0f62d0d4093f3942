package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/config"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/embeddings"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/ingest"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/vectordb"
)

var (
	indexRecreate bool
	indexVerbose  bool
)

// indexCmd embeds chunks and loads them into Qdrant.
var indexCmd = &cobra.Command{
	Use:   "index <chunks.json>",
	Short: "Embed chunks and load them into Qdrant",
	Long: `Embeds every chunk through the embedding service and upserts the vectors
into the statute collection. Endpoints come from engine.yaml and the usual
environment overrides. --recreate drops the collection first; without it
the collection is created only when missing and existing points are
overwritten by ID.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := buildLogger(indexVerbose)
		defer logger.Sync()

		cfg, err := config.Load(logger)
		if err != nil {
			fail(err)
		}
		initClients(cfg, logger)

		chunks, err := ingest.ReadChunks(args[0])
		if err != nil {
			fail(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats, err := ingest.NewIndexer(logger).IndexChunks(ctx, chunks, indexRecreate)
		if err != nil {
			if stats != nil && stats.Indexed > 0 {
				fmt.Fprintf(os.Stderr, "Indexed %d/%d chunks before failing\n", stats.Indexed, stats.Chunks)
			}
			fail(err)
		}
		fmt.Printf("Indexed %d/%d chunks in %s\n", stats.Indexed, stats.Chunks, stats.Duration.Round(time.Millisecond))
	},
}

// statusCmd prints the state of the statute collection.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the statute collection",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logger := zap.NewNop()
		cfg, err := config.Load(logger)
		if err != nil {
			fail(err)
		}
		vectordb.Initialize(vectordbConfig(cfg), logger)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		info, err := vectordb.Get().Info(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Collection: %s\n", info.Name)
		fmt.Printf("Status:     %s\n", info.Status)
		fmt.Printf("Points:     %d\n", info.PointsCount)
		fmt.Printf("Vectors:    %d (%s)\n", info.VectorSize, info.Distance)
	},
}

func initClients(cfg *config.EngineConfig, logger *zap.Logger) {
	var cache embeddings.EmbeddingCache
	if cfg.Embeddings.UseRedisCache {
		rc, err := embeddings.NewRedisCache(cfg.Embeddings.RedisAddr)
		if err != nil {
			logger.Warn("Redis cache unavailable, embedding without it", zap.Error(err))
		} else {
			cache = rc
		}
	}
	embeddings.Initialize(embeddings.Config{
		BaseURL:      cfg.Embeddings.BaseURL,
		DefaultModel: cfg.Embeddings.Model,
		Timeout:      cfg.Embeddings.Timeout,
		CacheTTL:     cfg.Embeddings.CacheTTL,
		MaxLRU:       cfg.Embeddings.MaxLRU,
	}, cache, logger)

	vectordb.Initialize(vectordbConfig(cfg), logger)
}

func vectordbConfig(cfg *config.EngineConfig) vectordb.Config {
	return vectordb.Config{
		Enabled:    true,
		URL:        cfg.VectorDB.URL,
		Collection: cfg.VectorDB.Collection,
		VectorSize: cfg.VectorDB.VectorSize,
		TopK:       cfg.Agent.TopK,
		Threshold:  cfg.Agent.RelevanceThreshold,
		Timeout:    cfg.VectorDB.Timeout,
	}
}

func buildLogger(verbose bool) *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.DisableStacktrace = true
	if !verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func init() {
	indexCmd.Flags().BoolVar(&indexRecreate, "recreate", false, "Drop and recreate the collection before indexing")
	indexCmd.Flags().BoolVarP(&indexVerbose, "verbose", "v", false, "Debug logging")
}
