package circuitbreaker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"
)

func TestRedisWrapper_NormalOperations(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	logger := zaptest.NewLogger(t)
	wrapper := NewRedisWrapper(client, logger)
	ctx := context.Background()

	// Test Ping
	result := wrapper.Ping(ctx)
	if result.Err() != nil {
		t.Errorf("Ping failed: %v", result.Err())
	}

	// Test Set
	setResult := wrapper.Set(ctx, "emb:abc123", "payload", time.Minute)
	if setResult.Err() != nil {
		t.Errorf("Set failed: %v", setResult.Err())
	}

	// Test Get
	getResult := wrapper.Get(ctx, "emb:abc123")
	if getResult.Err() != nil {
		t.Errorf("Get failed: %v", getResult.Err())
	}
	if getResult.Val() != "payload" {
		t.Errorf("Expected 'payload', got '%s'", getResult.Val())
	}

	// Test Get non-existent key (should return redis.Nil, not trip breaker)
	nilResult := wrapper.Get(ctx, "emb:missing")
	if nilResult.Err() != redis.Nil {
		t.Errorf("Expected redis.Nil for non-existent key, got %v", nilResult.Err())
	}

	if wrapper.IsCircuitBreakerOpen() {
		t.Error("Circuit breaker should remain closed for redis.Nil")
	}

	// Test Del
	delResult := wrapper.Del(ctx, "emb:abc123")
	if delResult.Err() != nil {
		t.Errorf("Del failed: %v", delResult.Err())
	}
	if delResult.Val() != 1 {
		t.Errorf("Expected 1 deleted key, got %d", delResult.Val())
	}
}

func TestRedisWrapper_CircuitBreakerTriggering(t *testing.T) {
	// Client pointing to a non-existent server
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:9999",
	})
	defer client.Close()

	logger := zaptest.NewLogger(t)
	wrapper := NewRedisWrapper(client, logger)
	ctx := context.Background()

	// Repeated failures should trip the breaker
	for i := 0; i < 4; i++ {
		result := wrapper.Ping(ctx)
		if result.Err() == nil {
			t.Error("Expected ping to fail against non-existent server")
		}
	}

	if !wrapper.IsCircuitBreakerOpen() {
		t.Error("Expected circuit breaker to be open after repeated failures")
	}

	// Subsequent calls should fail fast
	result := wrapper.Get(ctx, "any:key")
	if result.Err() != ErrCircuitBreakerOpen {
		t.Errorf("Expected circuit breaker open error, got %v", result.Err())
	}
}

func TestRedisWrapper_RedisNilHandling(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	logger := zaptest.NewLogger(t)
	wrapper := NewRedisWrapper(client, logger)
	ctx := context.Background()

	// Cache misses over and over must not count as failures
	for i := 0; i < 10; i++ {
		result := wrapper.Get(ctx, "emb:missing")
		if result.Err() != redis.Nil {
			t.Errorf("Expected redis.Nil, got %v", result.Err())
		}
	}

	if wrapper.IsCircuitBreakerOpen() {
		t.Error("Circuit breaker should remain closed for redis.Nil results")
	}
}
