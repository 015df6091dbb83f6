package flagrules

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/opensource-health/heron/internal/domain"
)

func f64(v float64) *float64 { return &v }

func reviewBands() []domain.FlagBand {
	return []domain.FlagBand{
		{LowerLimit: f64(0), UpperLimit: f64(1), Outcome: domain.FlagOutcomePass, Reason: "within tolerance"},
		{LowerLimit: f64(1), UpperLimit: nil, Outcome: domain.FlagOutcomeReview, Reason: "flagged for manual audit"},
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.FlagRuleConfig{
		ID:         "high-bill-001",
		Name:       "High Bill",
		Expression: "billed_amount > 50000.0",
		Bands:      []domain.FlagBand{},
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.FlagRuleConfig{
		ID:         "invalid-rule",
		Name:       "Invalid Rule",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.FlagRuleConfig{
		ID:         "validate-only",
		Expression: "flagged_amount > 0.0",
		Enabled:    true,
	}

	if err := engine.ValidateRule(rule); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("ValidateRule must not load, got %d rules", engine.RulesCount())
	}
}

func TestEvaluateBandedRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.FlagRuleConfig{
		ID:         "severe-burn-high-bill",
		Name:       "Severe Burn High Bill",
		Expression: "severity >= 60.0 && billed_amount > 80000.0 ? 1.0 : 0.0",
		Bands:      reviewBands(),
		Enabled:    true,
	}

	engine.LoadRule(rule)

	ctx := context.Background()

	input := &EvaluateInput{
		TenantID: "tenant-001",
		ClaimID:  "claim-001",
		Facts: domain.ExtractedFacts{
			SeverityPercent: f64(30),
			BilledAmount:    f64(12000),
		},
	}

	results, err := engine.EvaluateAll(ctx, input)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Outcome != domain.FlagOutcomePass {
		t.Errorf("expected pass, got %s", results[0].Outcome)
	}

	input.Facts.SeverityPercent = f64(70)
	input.Facts.BilledAmount = f64(95000)
	results, _ = engine.EvaluateAll(ctx, input)

	if results[0].Score != 1.0 {
		t.Errorf("expected score 1.0, got %.2f", results[0].Score)
	}
	if results[0].Outcome != domain.FlagOutcomeReview {
		t.Errorf("expected review, got %s", results[0].Outcome)
	}
	if !results[0].Triggered() {
		t.Error("review outcome must report triggered")
	}
}

func TestEvaluateVerdictVariables(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.FlagRuleConfig{
		ID:         "partial-with-missing-severity",
		Expression: "status == 'PARTIAL_APPROVAL' && !has_severity",
		Bands:      reviewBands(),
		Enabled:    true,
	}
	engine.LoadRule(rule)

	input := &EvaluateInput{
		TenantID: "tenant-001",
		ClaimID:  "claim-001",
		Facts:    domain.ExtractedFacts{BilledAmount: f64(20000)},
		Verdict: domain.AuditVerdict{
			Status:         domain.StatusPartialApproval,
			ApprovedAmount: 15000,
			FlaggedAmount:  5000,
		},
	}

	results, err := engine.EvaluateAll(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if results[0].Outcome != domain.FlagOutcomeReview {
		t.Errorf("expected review, got %s (%s)", results[0].Outcome, results[0].Reason)
	}
}

func TestEvaluateWithHistory(t *testing.T) {
	var calls atomic.Int64
	getter := func(ctx context.Context, tenantID, beneficiaryID string) (int64, error) {
		calls.Add(1)
		if beneficiaryID == "ben-repeat" {
			return 5, nil
		}
		return 0, nil
	}

	engine, _ := NewEngine(getter, 5)
	defer engine.Close()

	rule := &domain.FlagRuleConfig{
		ID:         "resubmission-pattern",
		Expression: "claim_count >= 3",
		Bands:      reviewBands(),
		Enabled:    true,
	}
	engine.LoadRule(rule)

	ctx := context.Background()

	input := &EvaluateInput{
		TenantID:      "tenant-001",
		ClaimID:       "claim-001",
		BeneficiaryID: "ben-first",
	}
	results, _ := engine.EvaluateAll(ctx, input)
	if results[0].Triggered() {
		t.Error("first-time beneficiary must not trigger resubmission rule")
	}

	input.BeneficiaryID = "ben-repeat"
	results, _ = engine.EvaluateAll(ctx, input)
	if !results[0].Triggered() {
		t.Error("repeat beneficiary should trigger resubmission rule")
	}

	if calls.Load() != 2 {
		t.Errorf("expected 2 history lookups, got %d", calls.Load())
	}
}

func TestEvaluationErrorDoesNotTrigger(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	// Compiles (dyn map access) but fails at runtime on the missing key.
	rule := &domain.FlagRuleConfig{
		ID:         "runtime-error",
		Expression: "claim['nonexistent'] == 'x' ? 1.0 : 0.0",
		Bands:      reviewBands(),
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), &EvaluateInput{
		TenantID: "tenant-001",
		ClaimID:  "claim-001",
	})
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if results[0].Outcome != domain.FlagOutcomeError {
		t.Errorf("expected error outcome, got %s", results[0].Outcome)
	}
	if results[0].Triggered() {
		t.Error("evaluation errors must not escalate verdicts")
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	for i := 0; i < 3; i++ {
		engine.LoadRule(&domain.FlagRuleConfig{
			ID:         fmt.Sprintf("rule-%d", i),
			Expression: "flagged_amount > 0.0",
			Enabled:    true,
		})
	}
	if engine.RulesCount() != 3 {
		t.Fatalf("expected 3 rules, got %d", engine.RulesCount())
	}

	err := engine.ReloadRules([]*domain.FlagRuleConfig{
		{ID: "fresh", Expression: "missing_docs > 0", Enabled: true},
		{ID: "disabled", Expression: "true", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
}

func TestApplyEscalatesOnly(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	engine.LoadRule(&domain.FlagRuleConfig{
		ID:             "escalator",
		Expression:     "true",
		Bands:          reviewBands(),
		Recommendation: "Route claim to senior auditor.",
		Enabled:        true,
	})

	base := domain.AuditVerdict{
		Status:         domain.StatusClean,
		ApprovedAmount: 12000,
		Reason:         "Billed amount (12000) is within policy limit (15000).",
	}

	t.Run("TriggeredEscalates", func(t *testing.T) {
		results := []domain.FlagResult{
			{RuleID: "escalator", Outcome: domain.FlagOutcomeReview, Reason: "flagged for manual audit"},
		}
		v := engine.Apply(base, results)
		if v.Status != domain.StatusReviewRequired {
			t.Errorf("expected escalation to REVIEW_REQUIRED, got %s", v.Status)
		}
		if v.ApprovedAmount != 12000 {
			t.Errorf("amounts must not change, got %.0f", v.ApprovedAmount)
		}
		if len(v.Recommendations) != 1 || v.Recommendations[0] != "Route claim to senior auditor." {
			t.Errorf("expected rule recommendation, got %v", v.Recommendations)
		}
	})

	t.Run("PassLeavesVerdict", func(t *testing.T) {
		results := []domain.FlagResult{
			{RuleID: "escalator", Outcome: domain.FlagOutcomePass},
		}
		v := engine.Apply(base, results)
		if v.Status != domain.StatusClean {
			t.Errorf("pass outcome must not change status, got %s", v.Status)
		}
	})

	t.Run("ErrorLeavesVerdict", func(t *testing.T) {
		results := []domain.FlagResult{
			{RuleID: "escalator", Outcome: domain.FlagOutcomeError, Reason: "evaluation error: boom"},
		}
		v := engine.Apply(base, results)
		if v.Status != domain.StatusClean {
			t.Errorf("error outcome must not change status, got %s", v.Status)
		}
	})
}
