package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/extract"
	"github.com/opensource-health/heron/internal/flagrules"
)

// EngineVersion is stamped into every adjudication's metadata.
const EngineVersion = "heron-1.0"

// Processor runs the full adjudication pipeline for one claim:
// fact extraction, core adjudication, then supplemental flag rules.
// Both the synchronous API path and the async worker use it.
type Processor struct {
	engine *Engine
	flags  *flagrules.Engine
}

// NewProcessor creates a pipeline processor. The flag rule engine may be
// nil; the pipeline then stops at the core verdict.
func NewProcessor(engine *Engine, flags *flagrules.Engine) *Processor {
	return &Processor{
		engine: engine,
		flags:  flags,
	}
}

// ProcessInput contains all data needed for one adjudication run.
type ProcessInput struct {
	TenantID      string
	ClaimID       string
	TraceID       string
	BeneficiaryID string
	HospitalID    string

	// Raw document text; ignored when Facts is set
	ClinicalText string
	BillText     string

	// Pre-extracted facts, bypassing text extraction
	Facts *domain.ExtractedFacts

	Documents domain.DocumentChecklist
	StartTime time.Time
}

// Process runs the pipeline and produces the persisted adjudication
// record. Extraction and flag rule failures degrade rather than abort:
// the claim always gets a verdict.
func (p *Processor) Process(ctx context.Context, input *ProcessInput) *domain.Adjudication {
	extractStart := time.Now()

	var facts domain.ExtractedFacts
	if input.Facts != nil {
		facts = *input.Facts
	} else {
		facts = extract.Extract(input.ClinicalText, input.BillText)
	}
	extractMs := time.Since(extractStart).Milliseconds()

	adjudicateStart := time.Now()
	verdict := p.engine.Adjudicate(facts, input.Documents)

	var flagResults []domain.FlagResult
	flagRulesEvaluated := 0
	if p.flags != nil && p.flags.RulesCount() > 0 {
		results, err := p.flags.EvaluateAll(ctx, &flagrules.EvaluateInput{
			TenantID:      input.TenantID,
			ClaimID:       input.ClaimID,
			BeneficiaryID: input.BeneficiaryID,
			HospitalID:    input.HospitalID,
			Facts:         facts,
			Verdict:       verdict,
		})
		if err == nil {
			flagResults = results
			flagRulesEvaluated = len(results)
			verdict = p.flags.Apply(verdict, results)
		}
	}
	adjudicateMs := time.Since(adjudicateStart).Milliseconds()

	totalMs := adjudicateMs + extractMs
	if !input.StartTime.IsZero() {
		totalMs = time.Since(input.StartTime).Milliseconds()
	}

	return &domain.Adjudication{
		ID:          uuid.New().String(),
		TenantID:    input.TenantID,
		ClaimID:     input.ClaimID,
		Facts:       facts,
		Verdict:     verdict,
		FlagResults: flagResults,
		Timestamp:   time.Now().UTC(),
		Metadata: domain.AdjudicationMetadata{
			TraceID:            input.TraceID,
			ExtractMs:          extractMs,
			AdjudicateMs:       adjudicateMs,
			TotalMs:            totalMs,
			FlagRulesEvaluated: flagRulesEvaluated,
			EngineVersion:      EngineVersion,
		},
	}
}

// NeedsReview returns true if the adjudication requires manual review.
func NeedsReview(adj *domain.Adjudication) bool {
	return adj.Verdict.Status == domain.StatusReviewRequired
}
