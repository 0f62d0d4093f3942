package circuitbreaker

import (
	"os"
	"strconv"
	"time"
)

// CircuitBreakerConfig represents configuration for a circuit breaker
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// GetVectorDBConfig returns the vector store circuit breaker configuration
// from environment variables
func GetVectorDBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      getEnvUint32("CB_QDRANT_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_QDRANT_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_QDRANT_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_QDRANT_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_QDRANT_SUCCESS_THRESHOLD", 2),
	}
}

// GetLLMConfig returns the LLM client circuit breaker configuration from
// environment variables. Generation calls are slow, so the open timeout is
// longer than for the search backends.
func GetLLMConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      getEnvUint32("CB_LLM_MAX_REQUESTS", 3),
		Interval:         getEnvDuration("CB_LLM_INTERVAL", 60*time.Second),
		Timeout:          getEnvDuration("CB_LLM_TIMEOUT", 30*time.Second),
		FailureThreshold: getEnvUint32("CB_LLM_FAILURE_THRESHOLD", 5),
		SuccessThreshold: getEnvUint32("CB_LLM_SUCCESS_THRESHOLD", 2),
	}
}

// GetWebSearchConfig returns the web search circuit breaker configuration
// from environment variables
func GetWebSearchConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      getEnvUint32("CB_SEARXNG_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_SEARXNG_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_SEARXNG_TIMEOUT", 20*time.Second),
		FailureThreshold: getEnvUint32("CB_SEARXNG_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_SEARXNG_SUCCESS_THRESHOLD", 2),
	}
}

// GetEmbedderConfig returns the embedding service circuit breaker
// configuration from environment variables
func GetEmbedderConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      getEnvUint32("CB_EMBEDDER_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_EMBEDDER_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_EMBEDDER_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_EMBEDDER_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_EMBEDDER_SUCCESS_THRESHOLD", 2),
	}
}

// GetRedisConfig returns Redis circuit breaker configuration from environment variables
func GetRedisConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      getEnvUint32("CB_REDIS_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_REDIS_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_REDIS_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_REDIS_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_REDIS_SUCCESS_THRESHOLD", 2),
	}
}

// GetHTTPConfig returns the generic HTTP circuit breaker configuration from
// environment variables. Used when a collaborator has no dedicated profile.
func GetHTTPConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      getEnvUint32("CB_HTTP_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_HTTP_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_HTTP_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_HTTP_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_HTTP_SUCCESS_THRESHOLD", 2),
	}
}

// ToConfig converts CircuitBreakerConfig to circuit breaker Config
func (cbc CircuitBreakerConfig) ToConfig() Config {
	return Config{
		MaxRequests:      cbc.MaxRequests,
		Interval:         cbc.Interval,
		Timeout:          cbc.Timeout,
		FailureThreshold: cbc.FailureThreshold,
		SuccessThreshold: cbc.SuccessThreshold,
		OnStateChange:    nil, // Will be set by wrapper
	}
}

// Helper functions for environment variable parsing

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}
