package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/opensource-health/heron/internal/domain"
)

func TestSQLiteRepository(t *testing.T) {
	// Create temp database file
	tmpFile, err := os.CreateTemp("", "heron-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetClaim", func(t *testing.T) {
		claim := &domain.Claim{
			ID:            "claim-001",
			BeneficiaryID: "ben-001",
			HospitalID:    "hosp-001",
			ClinicalText:  "Patient presents with 30% TBSA burns.",
			BillText:      "Package BM001B. Total: 12000",
			Documents: domain.DocumentChecklist{
				"Clinical Notes": true,
				"Hospital Bill":  true,
			},
			Timestamp: time.Now().UTC(),
			CreatedAt: time.Now().UTC(),
			Metadata:  map[string]any{"source": "api"},
		}

		if err := repo.SaveClaim(ctx, tenantID, claim); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		retrieved, err := repo.GetClaim(ctx, tenantID, claim.ID)
		if err != nil {
			t.Fatalf("GetClaim failed: %v", err)
		}

		if retrieved.ID != claim.ID {
			t.Errorf("expected ID %s, got %s", claim.ID, retrieved.ID)
		}
		if retrieved.BeneficiaryID != claim.BeneficiaryID {
			t.Errorf("expected BeneficiaryID %s, got %s", claim.BeneficiaryID, retrieved.BeneficiaryID)
		}
		if retrieved.TenantID != tenantID {
			t.Errorf("expected TenantID %s, got %s", tenantID, retrieved.TenantID)
		}
		if !retrieved.Documents["Clinical Notes"] {
			t.Error("expected documents checklist to round-trip")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		otherTenant := "tenant-002"

		_, err := repo.GetClaim(ctx, otherTenant, "claim-001")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound for different tenant, got: %v", err)
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		claim := &domain.Claim{ID: "claim-test"}

		err := repo.SaveClaim(ctx, "", claim)
		if err == nil {
			t.Error("expected error for empty tenantID")
		}

		_, err = repo.GetClaim(ctx, "", "claim-001")
		if err == nil {
			t.Error("expected error for empty tenantID")
		}
	})

	t.Run("CountClaimsByEntity", func(t *testing.T) {
		claim2 := &domain.Claim{
			ID:            "claim-002",
			BeneficiaryID: "ben-001", // Same beneficiary as claim-001
			HospitalID:    "hosp-002",
			Documents:     domain.DocumentChecklist{},
			Timestamp:     time.Now().UTC(),
			CreatedAt:     time.Now().UTC(),
		}

		if err := repo.SaveClaim(ctx, tenantID, claim2); err != nil {
			t.Fatalf("SaveClaim failed: %v", err)
		}

		since := time.Now().Add(-1 * time.Hour)

		count, err := repo.CountClaimsByEntity(ctx, tenantID, "ben-001", since)
		if err != nil {
			t.Fatalf("CountClaimsByEntity failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 claims for beneficiary, got %d", count)
		}

		count, err = repo.CountClaimsByEntity(ctx, tenantID, "hosp-002", since)
		if err != nil {
			t.Fatalf("CountClaimsByEntity failed: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 claim for hospital, got %d", count)
		}

		count, err = repo.CountClaimsByEntity(ctx, tenantID, "unknown", since)
		if err != nil {
			t.Fatalf("CountClaimsByEntity failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 claims for unknown entity, got %d", count)
		}
	})

	t.Run("SaveAndGetAdjudication", func(t *testing.T) {
		severity := 30.0
		billed := 12000.0

		adj := &domain.Adjudication{
			ID:      "adj-001",
			ClaimID: "claim-001",
			Facts: domain.ExtractedFacts{
				SeverityPercent:   &severity,
				StatedPackageCode: "BM001B",
				BilledAmount:      &billed,
			},
			Verdict: domain.AuditVerdict{
				Status:              domain.StatusClean,
				SelectedPackageCode: "BM001B",
				BilledAmount:        12000,
				ApprovedAmount:      12000,
			},
			Timestamp: time.Now().UTC(),
			Metadata:  domain.AdjudicationMetadata{TraceID: "trace-001"},
		}

		if err := repo.SaveAdjudication(ctx, tenantID, adj); err != nil {
			t.Fatalf("SaveAdjudication failed: %v", err)
		}

		retrieved, err := repo.GetAdjudication(ctx, tenantID, adj.ID)
		if err != nil {
			t.Fatalf("GetAdjudication failed: %v", err)
		}

		if retrieved.ID != adj.ID {
			t.Errorf("expected ID %s, got %s", adj.ID, retrieved.ID)
		}
		if retrieved.Verdict.Status != domain.StatusClean {
			t.Errorf("expected Status %s, got %s", domain.StatusClean, retrieved.Verdict.Status)
		}
		if !retrieved.Facts.HasSeverity() || *retrieved.Facts.SeverityPercent != 30 {
			t.Error("expected facts to round-trip")
		}
	})

	t.Run("ListAdjudicationsByClaim", func(t *testing.T) {
		adj2 := &domain.Adjudication{
			ID:        "adj-002",
			ClaimID:   "claim-001",
			Verdict:   domain.AuditVerdict{Status: domain.StatusReviewRequired},
			Timestamp: time.Now().UTC().Add(time.Second),
			Metadata:  domain.AdjudicationMetadata{TraceID: "trace-002"},
		}
		if err := repo.SaveAdjudication(ctx, tenantID, adj2); err != nil {
			t.Fatalf("SaveAdjudication failed: %v", err)
		}

		adjudications, err := repo.ListAdjudicationsByClaim(ctx, tenantID, "claim-001")
		if err != nil {
			t.Fatalf("ListAdjudicationsByClaim failed: %v", err)
		}
		if len(adjudications) != 2 {
			t.Fatalf("expected 2 adjudications, got %d", len(adjudications))
		}
		if adjudications[0].ID != "adj-002" {
			t.Errorf("expected newest first, got %s", adjudications[0].ID)
		}
	})

	t.Run("SaveAndGetFlagRule", func(t *testing.T) {
		one := 1.0
		rule := &domain.FlagRuleConfig{
			ID:         "rule-001",
			Name:       "High Bill",
			Version:    "1.0.0",
			Expression: "billed_amount > 50000.0",
			Bands: []domain.FlagBand{
				{LowerLimit: &one, Outcome: domain.FlagOutcomeReview, Reason: "high bill"},
			},
			Recommendation: "Route to senior auditor.",
			Enabled:        true,
		}

		if err := repo.SaveFlagRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveFlagRule failed: %v", err)
		}

		retrieved, err := repo.GetFlagRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetFlagRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression {
			t.Errorf("expected expression %q, got %q", rule.Expression, retrieved.Expression)
		}
		if len(retrieved.Bands) != 1 || retrieved.Bands[0].Outcome != domain.FlagOutcomeReview {
			t.Errorf("expected bands to round-trip, got %v", retrieved.Bands)
		}

		rules, err := repo.ListFlagRules(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListFlagRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Errorf("expected 1 rule, got %d", len(rules))
		}
	})

	t.Run("UpsertFlagRule", func(t *testing.T) {
		rule := &domain.FlagRuleConfig{
			ID:         "rule-001",
			Name:       "High Bill (revised)",
			Version:    "1.0.0",
			Expression: "billed_amount > 75000.0",
			Enabled:    true,
		}
		if err := repo.SaveFlagRule(ctx, tenantID, rule); err != nil {
			t.Fatalf("SaveFlagRule upsert failed: %v", err)
		}

		retrieved, err := repo.GetFlagRule(ctx, tenantID, rule.ID)
		if err != nil {
			t.Fatalf("GetFlagRule failed: %v", err)
		}
		if retrieved.Expression != rule.Expression {
			t.Errorf("expected updated expression, got %q", retrieved.Expression)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetClaim(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetAdjudication(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}

		_, err = repo.GetFlagRule(ctx, tenantID, "nonexistent")
		if err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	cfg := domain.RepositoryConfig{
		Driver: "mysql",
	}

	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	repo := &SQLRepository{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := repo.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
