// Package flagrules provides the CEL-Go based supplemental audit engine.
//
// Flag rules run after core adjudication and can only escalate a verdict
// to REVIEW_REQUIRED; the core precedence never loosens. With no rules
// loaded the engine is a no-op.
package flagrules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-health/heron/internal/domain"
)

// Engine is the CEL-based flag rule evaluation engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	historyGetter HistoryGetter
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.FlagRuleConfig
	Program cel.Program
}

// HistoryGetter returns the number of prior claim submissions for a
// beneficiary within a tenant. Used by resubmission-pattern rules.
type HistoryGetter func(ctx context.Context, tenantID, beneficiaryID string) (int64, error)

// NewEngine creates a new flag rule evaluation engine.
func NewEngine(historyGetter HistoryGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the extracted facts and the core verdict
	env, err := cel.NewEnv(
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("severity", cel.DoubleType),
		cel.Variable("has_severity", cel.BoolType),
		cel.Variable("billed_amount", cel.DoubleType),
		cel.Variable("has_billed", cel.BoolType),
		cel.Variable("stated_code", cel.StringType),
		cel.Variable("selected_code", cel.StringType),
		cel.Variable("approved_amount", cel.DoubleType),
		cel.Variable("flagged_amount", cel.DoubleType),
		cel.Variable("missing_docs", cel.IntType),
		cel.Variable("status", cel.StringType),
		cel.Variable("claim_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		historyGetter: historyGetter,
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.FlagRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.FlagRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules.
func (e *Engine) LoadRules(configs []*domain.FlagRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// EvaluateInput holds the adjudicated claim data for flag rule evaluation.
type EvaluateInput struct {
	TenantID      string
	ClaimID       string
	BeneficiaryID string
	HospitalID    string
	Facts         domain.ExtractedFacts
	Verdict       domain.AuditVerdict
}

// EvaluateAll evaluates all loaded rules in parallel.
func (e *Engine) EvaluateAll(ctx context.Context, input *EvaluateInput) ([]domain.FlagResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	// Prior submission count, when a history source is wired
	var claimCount int64
	if e.historyGetter != nil && input.BeneficiaryID != "" {
		count, err := e.historyGetter(ctx, input.TenantID, input.BeneficiaryID)
		if err == nil {
			claimCount = count
		}
	}

	var severity, billed float64
	if input.Facts.HasSeverity() {
		severity = *input.Facts.SeverityPercent
	}
	if input.Facts.HasBilledAmount() {
		billed = *input.Facts.BilledAmount
	}

	activation := map[string]any{
		"claim": map[string]any{
			"id":             input.ClaimID,
			"beneficiary_id": input.BeneficiaryID,
			"hospital_id":    input.HospitalID,
		},
		"severity":        severity,
		"has_severity":    input.Facts.HasSeverity(),
		"billed_amount":   billed,
		"has_billed":      input.Facts.HasBilledAmount(),
		"stated_code":     input.Facts.StatedPackageCode,
		"selected_code":   input.Verdict.SelectedPackageCode,
		"approved_amount": input.Verdict.ApprovedAmount,
		"flagged_amount":  input.Verdict.FlaggedAmount,
		"missing_docs":    int64(len(input.Verdict.MissingDocuments)),
		"status":          input.Verdict.Status,
		"claim_count":     claimCount,
	}

	// Parallel evaluation using worker pool pattern
	results := make([]domain.FlagResult, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluateRule(r, activation, input)
		}(i, rule)
	}

	wg.Wait()

	return results, nil
}

// evaluateRule evaluates a single rule and returns the result.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, input *EvaluateInput) domain.FlagResult {
	start := time.Now()

	result := domain.FlagResult{
		RuleID:   rule.Config.ID,
		TenantID: input.TenantID,
		ClaimID:  input.ClaimID,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.FlagOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	score := toScore(out)
	result.Score = score

	result.Outcome, result.Reason = matchBand(score, rule.Config.Bands)
	result.ProcessMs = time.Since(start).Milliseconds()

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order: lower inclusive, upper exclusive, except
// when upper is nil (meaning infinity).
func matchBand(score float64, bands []domain.FlagBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		hasUpper := band.UpperLimit != nil
		upper := float64(1e9)

		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if hasUpper {
			upper = *band.UpperLimit
		}

		if score >= lower {
			if !hasUpper || score < upper {
				return band.Outcome, band.Reason
			}
		}
	}

	// Default to pass if no band matches
	return domain.FlagOutcomePass, "no matching band"
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// ReloadRules clears all existing rules and loads new ones.
// This enables hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.FlagRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.FlagRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.FlagRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.FlagRuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
