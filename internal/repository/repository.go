// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveClaim stores a claim with tenant isolation.
func (r *SQLRepository) SaveClaim(ctx context.Context, tenantID string, claim *domain.Claim) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	documents, _ := json.Marshal(claim.Documents)
	metadata, _ := json.Marshal(claim.Metadata)

	query := `
		INSERT INTO claims (
			id, tenant_id, beneficiary_id, hospital_id,
			clinical_text, bill_text, documents,
			timestamp, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		claim.ID, tenantID,
		claim.BeneficiaryID, claim.HospitalID,
		claim.ClinicalText, claim.BillText, string(documents),
		claim.Timestamp, claim.CreatedAt, string(metadata),
	)
	return err
}

// GetClaim retrieves a claim by ID with tenant isolation.
func (r *SQLRepository) GetClaim(ctx context.Context, tenantID string, claimID string) (*domain.Claim, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, beneficiary_id, hospital_id,
			   clinical_text, bill_text, documents,
			   timestamp, created_at, metadata
		FROM claims
		WHERE tenant_id = ? AND id = ?
	`

	var claim domain.Claim
	var documents, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, claimID).Scan(
		&claim.ID, &claim.TenantID,
		&claim.BeneficiaryID, &claim.HospitalID,
		&claim.ClinicalText, &claim.BillText, &documents,
		&claim.Timestamp, &claim.CreatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(documents), &claim.Documents)
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &claim.Metadata)
	}

	return &claim, nil
}

// CountClaimsByEntity counts claims where the entity appears as
// beneficiary or hospital, with tenant isolation.
func (r *SQLRepository) CountClaimsByEntity(ctx context.Context, tenantID string, entityID string, since time.Time) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM claims
		WHERE tenant_id = ?
		  AND (beneficiary_id = ? OR hospital_id = ?)
		  AND timestamp >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, entityID, entityID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}

	return count, nil
}

// SaveAdjudication stores an adjudication record with tenant isolation.
func (r *SQLRepository) SaveAdjudication(ctx context.Context, tenantID string, adj *domain.Adjudication) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	facts, _ := json.Marshal(adj.Facts)
	verdict, _ := json.Marshal(adj.Verdict)
	flagResults, _ := json.Marshal(adj.FlagResults)
	metadata, _ := json.Marshal(adj.Metadata)

	query := `
		INSERT INTO adjudications (
			id, tenant_id, claim_id, status, facts, verdict,
			flag_results, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		adj.ID, tenantID, adj.ClaimID, adj.Verdict.Status,
		string(facts), string(verdict),
		string(flagResults), adj.Timestamp, string(metadata),
	)
	return err
}

// GetAdjudication retrieves an adjudication by ID with tenant isolation.
func (r *SQLRepository) GetAdjudication(ctx context.Context, tenantID string, adjID string) (*domain.Adjudication, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, facts, verdict,
			   flag_results, timestamp, metadata
		FROM adjudications
		WHERE tenant_id = ? AND id = ?
	`

	var adj domain.Adjudication
	var facts, verdict, flagResults, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, adjID).Scan(
		&adj.ID, &adj.TenantID, &adj.ClaimID, &facts, &verdict,
		&flagResults, &adj.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(facts), &adj.Facts)
	json.Unmarshal([]byte(verdict), &adj.Verdict)
	json.Unmarshal([]byte(flagResults), &adj.FlagResults)
	json.Unmarshal([]byte(metadata), &adj.Metadata)

	return &adj, nil
}

// ListAdjudicationsByClaim retrieves all adjudication runs for a claim,
// newest first, with tenant isolation.
func (r *SQLRepository) ListAdjudicationsByClaim(ctx context.Context, tenantID string, claimID string) ([]*domain.Adjudication, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, claim_id, facts, verdict,
			   flag_results, timestamp, metadata
		FROM adjudications
		WHERE tenant_id = ? AND claim_id = ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjudications []*domain.Adjudication
	for rows.Next() {
		var adj domain.Adjudication
		var facts, verdict, flagResults, metadata string

		if err := rows.Scan(
			&adj.ID, &adj.TenantID, &adj.ClaimID, &facts, &verdict,
			&flagResults, &adj.Timestamp, &metadata,
		); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(facts), &adj.Facts)
		json.Unmarshal([]byte(verdict), &adj.Verdict)
		json.Unmarshal([]byte(flagResults), &adj.FlagResults)
		json.Unmarshal([]byte(metadata), &adj.Metadata)

		adjudications = append(adjudications, &adj)
	}

	return adjudications, rows.Err()
}

// SaveFlagRule stores a flag rule configuration with tenant isolation.
func (r *SQLRepository) SaveFlagRule(ctx context.Context, tenantID string, rule *domain.FlagRuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, tenant_id, name, description, version, expression, bands, recommendation, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			recommendation = excluded.recommendation,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), rule.Recommendation, enabled,
		now, now,
	)
	return err
}

// GetFlagRule retrieves a flag rule configuration with tenant isolation.
func (r *SQLRepository) GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*domain.FlagRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, recommendation, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var cfg domain.FlagRuleConfig
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
		&cfg.Version, &cfg.Expression, &bands, &cfg.Recommendation, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Enabled = enabled == 1
	json.Unmarshal([]byte(bands), &cfg.Bands)

	return &cfg, nil
}

// ListFlagRules retrieves all active flag rule configurations for a tenant.
func (r *SQLRepository) ListFlagRules(ctx context.Context, tenantID string) ([]*domain.FlagRuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, recommendation, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.FlagRuleConfig
	for rows.Next() {
		var cfg domain.FlagRuleConfig
		var bands string
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.TenantID, &cfg.Name, &cfg.Description,
			&cfg.Version, &cfg.Expression, &bands, &cfg.Recommendation, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Enabled = enabled == 1
		json.Unmarshal([]byte(bands), &cfg.Bands)
		configs = append(configs, &cfg)
	}

	return configs, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
