package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NguyenVoTheTuyen/legal-rag/internal/embeddings"
	ometrics "github.com/NguyenVoTheTuyen/legal-rag/internal/metrics"
	"github.com/NguyenVoTheTuyen/legal-rag/internal/vectordb"
)

const (
	defaultEmbedBatch  = 32
	defaultUpsertBatch = 100
)

// Indexer embeds chunks and writes them into the vector collection.
type Indexer struct {
	embedBatch  int
	upsertBatch int
	logger      *zap.Logger
}

// IndexStats summarizes one indexing run.
type IndexStats struct {
	Chunks   int           `json:"chunks"`
	Indexed  int           `json:"indexed"`
	Duration time.Duration `json:"duration"`
}

// NewIndexer builds an indexer with the pipeline's batch sizes.
func NewIndexer(logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedBatch:  defaultEmbedBatch,
		upsertBatch: defaultUpsertBatch,
		logger:      logger,
	}
}

// IndexChunks embeds all chunks in batches and upserts them with sequential
// point IDs. recreate drops and recreates the collection first; otherwise
// the collection is created only if missing.
func (ix *Indexer) IndexChunks(ctx context.Context, chunks []Chunk, recreate bool) (*IndexStats, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("ingest: no chunks to index")
	}

	vdb := vectordb.Get()
	if vdb == nil {
		return nil, fmt.Errorf("ingest: vectordb client not initialized")
	}
	embedder := embeddings.Get()
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embeddings service not initialized")
	}

	if recreate {
		if err := vdb.RecreateCollection(ctx); err != nil {
			return nil, fmt.Errorf("ingest: recreate collection: %w", err)
		}
	} else {
		if err := vdb.EnsureCollection(ctx); err != nil {
			return nil, fmt.Errorf("ingest: ensure collection: %w", err)
		}
	}

	collection := vdb.Collection()
	start := time.Now()
	stats := &IndexStats{Chunks: len(chunks)}

	pending := make([]vectordb.UpsertItem, 0, ix.upsertBatch)
	nextID := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if _, err := vdb.Upsert(ctx, pending); err != nil {
			ometrics.DocumentsIngested.WithLabelValues(collection, "error").Add(float64(len(pending)))
			return fmt.Errorf("ingest: upsert points: %w", err)
		}
		ometrics.DocumentsIngested.WithLabelValues(collection, "ok").Add(float64(len(pending)))
		stats.Indexed += len(pending)
		ix.logger.Info("Indexed batch",
			zap.Int("indexed", stats.Indexed),
			zap.Int("total", stats.Chunks))
		pending = pending[:0]
		return nil
	}

	for offset := 0; offset < len(chunks); offset += ix.embedBatch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := offset + ix.embedBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[offset:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := embedder.GenerateBatchEmbeddings(ctx, texts, "")
		if err != nil {
			return stats, fmt.Errorf("ingest: embed batch at %d: %w", offset, err)
		}
		if len(vectors) != len(batch) {
			return stats, fmt.Errorf("ingest: embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, c := range batch {
			payload, err := c.Payload()
			if err != nil {
				return stats, err
			}
			pending = append(pending, vectordb.UpsertItem{
				ID:      nextID,
				Vector:  vectors[i],
				Payload: payload,
			})
			nextID++

			if len(pending) >= ix.upsertBatch {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	ix.logger.Info("Indexing complete",
		zap.Int("chunks", stats.Chunks),
		zap.Int("indexed", stats.Indexed),
		zap.String("collection", collection),
		zap.Duration("duration", stats.Duration))
	return stats, nil
}

// Payload flattens the chunk into the point payload searched at query time:
// the text plus every metadata field at the top level.
func (c Chunk) Payload() (map[string]interface{}, error) {
	buf, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, fmt.Errorf("ingest: marshal chunk metadata: %w", err)
	}
	payload := make(map[string]interface{})
	if err := json.Unmarshal(buf, &payload); err != nil {
		return nil, fmt.Errorf("ingest: flatten chunk metadata: %w", err)
	}
	payload["text"] = c.Text
	return payload, nil
}
