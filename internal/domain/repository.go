// Package domain defines the core interfaces and types for Heron.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, tenantID string, claim *Claim) error
	GetClaim(ctx context.Context, tenantID string, claimID string) (*Claim, error)
	CountClaimsByEntity(ctx context.Context, tenantID string, entityID string, since time.Time) (int64, error)

	// Adjudication results
	SaveAdjudication(ctx context.Context, tenantID string, adj *Adjudication) error
	GetAdjudication(ctx context.Context, tenantID string, adjID string) (*Adjudication, error)
	ListAdjudicationsByClaim(ctx context.Context, tenantID string, claimID string) ([]*Adjudication, error)

	// Flag rule configuration operations
	SaveFlagRule(ctx context.Context, tenantID string, rule *FlagRuleConfig) error
	GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*FlagRuleConfig, error)
	ListFlagRules(ctx context.Context, tenantID string) ([]*FlagRuleConfig, error)

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
