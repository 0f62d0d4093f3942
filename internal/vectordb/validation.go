package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DimensionMismatchError is returned when embedding dimensions don't match collection dimensions
type DimensionMismatchError struct {
	Collection        string
	ExpectedDimension int
	ReceivedDimension int
	SuggestedAction   string
}

func (e DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch for collection %s: expected %d, got %d. %s",
		e.Collection, e.ExpectedDimension, e.ReceivedDimension, e.SuggestedAction)
}

// ValidateEmbeddingDimensions checks that the collection was created with
// the dimension the embedding model produces. A mismatch here means every
// search would silently return garbage similarity scores.
func (c *Client) ValidateEmbeddingDimensions(ctx context.Context) error {
	if c == nil || !c.cfg.Enabled {
		return nil
	}

	info, err := c.Info(ctx)
	if err != nil {
		c.log.Warn("Failed to get collection info during validation",
			zap.String("collection", c.cfg.Collection),
			zap.Error(err))
		return nil
	}

	if c.cfg.VectorSize > 0 && info.VectorSize != c.cfg.VectorSize {
		return DimensionMismatchError{
			Collection:        c.cfg.Collection,
			ExpectedDimension: c.cfg.VectorSize,
			ReceivedDimension: info.VectorSize,
			SuggestedAction:   "Check embedding model configuration or recreate collection with correct dimensions",
		}
	}

	c.log.Info("Collection dimension validated",
		zap.String("collection", c.cfg.Collection),
		zap.Int("dimension", info.VectorSize))

	return nil
}

// CollectionInfo holds basic information about a Qdrant collection
type CollectionInfo struct {
	Name        string
	Status      string
	VectorSize  int
	Distance    string
	PointsCount int64
}

// Info retrieves collection information. The ingest CLI surfaces this as
// its status output.
func (c *Client) Info(ctx context.Context) (*CollectionInfo, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: info called while disabled")
	}

	url := fmt.Sprintf("%s/collections/%s", c.base, c.cfg.Collection)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get collection info: status %d", resp.StatusCode)
	}

	var result struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &CollectionInfo{
		Name:        c.cfg.Collection,
		Status:      result.Result.Status,
		VectorSize:  result.Result.Config.Params.Vectors.Size,
		Distance:    result.Result.Config.Params.Vectors.Distance,
		PointsCount: result.Result.PointsCount,
	}, nil
}

// ValidateAndInitialize initializes the client and validates dimensions
func ValidateAndInitialize(cfg Config, logger *zap.Logger) error {
	Initialize(cfg, logger)

	client := Get()
	if client == nil {
		return fmt.Errorf("failed to initialize vectordb client")
	}

	if cfg.Enabled && cfg.VectorSize > 0 {
		if err := client.ValidateEmbeddingDimensions(context.Background()); err != nil {
			return fmt.Errorf("embedding dimension validation failed: %w", err)
		}
	}

	return nil
}
