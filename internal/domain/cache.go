package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetScore retrieves a cached score summary.
	GetScore(ctx context.Context, tenantID string, appID string) (*ScoreCache, error)

	// SetScore caches a score summary for decisioning and monitoring.
	SetScore(ctx context.Context, tenantID string, appID string, data *ScoreCache, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for velocity checks (e.g., application count in time window).
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ScoreCache holds the cached score summary passed between pipeline stages.
type ScoreCache struct {
	ApplicationID string  `json:"applicationId"`
	BusinessName  string  `json:"businessName"`
	OverallScore  int     `json:"overallScore"`
	RawScore      float64 `json:"rawScore"`
	RiskLevel     string  `json:"riskLevel"`
	Confidence    float64 `json:"confidence"`
	ScoredAt      string  `json:"scoredAt"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
