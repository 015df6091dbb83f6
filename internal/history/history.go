// Package history provides beneficiary claim submission counting.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

// DefaultWindow is how far back submission counting looks when callers
// do not specify a window. Resubmission fraud patterns in pre-audit data
// cluster well inside 90 days.
const DefaultWindow = 90 * 24 * time.Hour

// Service counts prior claim submissions for beneficiaries and hospitals.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	db     *sql.DB // Direct DB access for custom queries
	window time.Duration
}

// NewService creates a new history service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		window: DefaultWindow,
	}
}

// GetClaimCount returns the number of claims submitted for an entity
// (beneficiary or hospital) within the service window. This is the
// HistoryGetter function signature expected by the flag rule engine.
func (s *Service) GetClaimCount(ctx context.Context, tenantID, entityID string) (int64, error) {
	if tenantID == "" || entityID == "" {
		return 0, fmt.Errorf("tenantID and entityID are required")
	}

	since := time.Now().Add(-s.window)

	if s.db != nil {
		return s.countFromDB(ctx, tenantID, entityID, since)
	}

	if s.repo != nil {
		count, err := s.repo.CountClaimsByEntity(ctx, tenantID, entityID, since)
		if err != nil {
			return 0, fmt.Errorf("failed to count claims: %w", err)
		}
		return count, nil
	}

	return 0, fmt.Errorf("no data source available")
}

// countFromDB queries the database directly for the claim count.
func (s *Service) countFromDB(ctx context.Context, tenantID, entityID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM claims
		WHERE tenant_id = ?
		AND (beneficiary_id = ? OR hospital_id = ?)
		AND timestamp >= ?
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, tenantID, entityID, entityID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}

	return count, nil
}

// RecordSubmission bumps the rolling submission counter for an entity and
// returns the new value. Backed by the cache so hot-path submission
// checks avoid a database round trip.
func (s *Service) RecordSubmission(ctx context.Context, tenantID, entityID string) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, tenantID, "submissions:"+entityID, s.window)
}

// GetHistoryGetter returns a HistoryGetter function for the flag rule engine.
func (s *Service) GetHistoryGetter() func(ctx context.Context, tenantID, entityID string) (int64, error) {
	return s.GetClaimCount
}
