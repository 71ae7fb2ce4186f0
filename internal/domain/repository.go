// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Application operations
	SaveApplication(ctx context.Context, tenantID string, app *CreditApplication) error
	GetApplication(ctx context.Context, tenantID string, appID string) (*CreditApplication, error)
	ListApplications(ctx context.Context, tenantID string, limit int) ([]*CreditApplication, error)
	ListApplicationsByBusiness(ctx context.Context, tenantID string, businessName string, since time.Time) ([]*CreditApplication, error)

	// Score results
	SaveScore(ctx context.Context, tenantID string, score *ScoreResult) error
	GetScore(ctx context.Context, tenantID string, appID string) (*ScoreResult, error)

	// Decisions
	SaveDecision(ctx context.Context, tenantID string, decision *Decision) error
	GetDecision(ctx context.Context, tenantID string, appID string) (*Decision, error)

	// Fraud assessments
	SaveFraudAssessment(ctx context.Context, tenantID string, assessment *FraudAssessment) error
	GetFraudAssessment(ctx context.Context, tenantID string, appID string) (*FraudAssessment, error)

	// Fraud rule configuration operations
	SaveFraudRule(ctx context.Context, tenantID string, rule *FraudRuleConfig) error
	GetFraudRule(ctx context.Context, tenantID string, ruleID string) (*FraudRuleConfig, error)
	ListFraudRules(ctx context.Context, tenantID string) ([]*FraudRuleConfig, error)
	DeleteFraudRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
