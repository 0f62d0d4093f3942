package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IdempotencyMiddleware replays the cached response for a repeated
// Idempotency-Key so retried POSTs do not run the loop twice.
type IdempotencyMiddleware struct {
	redis  *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

func NewIdempotencyMiddleware(redisClient *redis.Client, logger *zap.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		redis:  redisClient,
		logger: logger,
		ttl:    24 * time.Hour,
	}
}

// idempotencyResult is the cached response envelope.
type idempotencyResult struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
	Timestamp  time.Time           `json:"timestamp"`
}

// responseRecorder captures the response for caching while writing it out.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Middleware returns the HTTP middleware function.
func (im *IdempotencyMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		idempotencyKey := r.Header.Get("Idempotency-Key")
		if idempotencyKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		cacheKey := im.cacheKey(r, idempotencyKey)

		if cached, err := im.getCached(ctx, cacheKey); err == nil && cached != nil {
			im.logger.Debug("Returning cached idempotent response",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("path", r.URL.Path),
			)
			for key, values := range cached.Headers {
				for _, value := range values {
					w.Header().Add(key, value)
				}
			}
			w.Header().Set("X-Idempotency-Cached", "true")
			w.Header().Set("X-Idempotency-Key", idempotencyKey)
			w.WriteHeader(cached.StatusCode)
			_, _ = w.Write(cached.Body)
			return
		}

		recorder := newResponseRecorder(w)
		next.ServeHTTP(recorder, r)

		// Only successful answers are worth replaying.
		if recorder.statusCode >= 200 && recorder.statusCode < 300 {
			result := &idempotencyResult{
				StatusCode: recorder.statusCode,
				Headers:    recorder.Header(),
				Body:       recorder.body.Bytes(),
				Timestamp:  time.Now(),
			}
			if err := im.cache(ctx, cacheKey, result); err != nil {
				im.logger.Error("Failed to cache idempotent response",
					zap.Error(err),
					zap.String("idempotency_key", idempotencyKey),
				)
			}
		}
	})
}

// cacheKey hashes key, path and body together so the same key with a
// different question is a different request.
func (im *IdempotencyMiddleware) cacheKey(r *http.Request, idempotencyKey string) string {
	h := sha256.New()
	h.Write([]byte(idempotencyKey))
	h.Write([]byte(r.URL.Path))
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		h.Write(body)
	}
	hash := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("idempotency:%s", hash[:16])
}

func (im *IdempotencyMiddleware) getCached(ctx context.Context, key string) (*idempotencyResult, error) {
	data, err := im.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var result idempotencyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (im *IdempotencyMiddleware) cache(ctx context.Context, key string, result *idempotencyResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return im.redis.Set(ctx, key, data, im.ttl).Err()
}
