// Package engine implements the claim adjudication core: document
// completeness, severity-to-package reconciliation, financial validation
// and the verdict state machine.
package engine

import (
	"fmt"
	"strings"

	"github.com/opensource-health/heron/internal/domain"
	"github.com/opensource-health/heron/internal/policy"
)

// MismatchMarker prefixes the reason fragment recorded when the stated
// package code disagrees with the severity-calculated one. The final
// status detects this condition via an explicit flag, never by scanning
// reason text; the marker exists for human readers and callers that grep
// verdicts.
const MismatchMarker = "MISMATCH"

// Engine adjudicates claims against an immutable policy table snapshot.
// It is stateless per call and safe for arbitrary concurrent use.
type Engine struct {
	policies *policy.Table
}

// New creates an adjudication engine over the given policy table.
func New(policies *policy.Table) *Engine {
	return &Engine{policies: policies}
}

// Adjudicate computes the verdict for one claim from its extracted facts
// and document checklist.
//
// It never fails: every absent or unusable fact degrades to a reason
// fragment and a corrective recommendation, and pushes the status toward
// REVIEW_REQUIRED under the fixed precedence:
//
//  1. any missing mandatory document
//  2. stated/calculated package mismatch, or severity/billed-amount
//     extraction failure
//  3. overbilling (partial approval)
//  4. clean
func (e *Engine) Adjudicate(facts domain.ExtractedFacts, docs domain.DocumentChecklist) domain.AuditVerdict {
	var (
		reasons         []string
		recommendations []string

		hasMismatch     bool
		severityMissing bool
		billedMissing   bool
	)

	// 1. Document completeness. Missing documents are recorded but do not
	// short-circuit: extraction and validation still run on whatever facts
	// exist, for maximal diagnostic value.
	missingDocs := MissingDocuments(docs)
	if len(missingDocs) > 0 {
		reasons = append(reasons, fmt.Sprintf(
			"Missing mandatory documents: %s.", strings.Join(missingDocs, ", ")))
		recommendations = append(recommendations, "Upload all missing documents to proceed.")
	}

	// 2. Clinical validation: resolve severity to a package and compare
	// against the code stated on the bill.
	var (
		calculated   domain.PackageRule
		calculatedOK bool
	)
	stated := facts.StatedPackageCode

	if facts.HasSeverity() {
		severity := *facts.SeverityPercent
		calculated, calculatedOK = e.policies.Resolve(severity)

		switch {
		case calculatedOK && stated != "":
			if stated == calculated.Code {
				reasons = append(reasons, fmt.Sprintf(
					"Package code %s matches clinical severity (%s%% TBSA).",
					stated, fmtAmount(severity)))
			} else {
				hasMismatch = true
				reasons = append(reasons, fmt.Sprintf(
					"%s: bill uses %s, but clinical notes indicate %s (%s%% TBSA).",
					MismatchMarker, stated, calculated.Code, fmtAmount(severity)))
				recommendations = append(recommendations, fmt.Sprintf(
					"Correct package code to %s to match severity.", calculated.Code))
			}
		case calculatedOK:
			reasons = append(reasons, fmt.Sprintf(
				"No package code found in bill. Recommended: %s (%s%% TBSA).",
				calculated.Code, fmtAmount(severity)))
			recommendations = append(recommendations, fmt.Sprintf(
				"Add package code %s to the final bill.", calculated.Code))
		default:
			reasons = append(reasons, fmt.Sprintf(
				"Could not map %s%% TBSA to a known package.", fmtAmount(severity)))
		}
	} else {
		severityMissing = true
		reasons = append(reasons,
			"Could not extract TBSA % from clinical notes. Cannot validate severity.")
		recommendations = append(recommendations,
			"Ensure clinical notes explicitly state the burn percentage (e.g. '30% TBSA').")
	}

	// 3. The active rule for financial limits is the stated package when it
	// resolves in the policy table, even if it disagrees with the calculated
	// one: hospitals are held to the limit of the code they claimed.
	var active *domain.PackageRule
	if stated != "" {
		if rule, ok := e.policies.Lookup(stated); ok {
			active = &rule
		}
	}
	if active == nil && calculatedOK {
		active = &calculated
	}

	// 4. Financial validation.
	fin := ValidateFinance(active, facts.BilledAmount)
	reasons = append(reasons, fin.Note)
	if fin.Overbilled {
		recommendations = append(recommendations, fmt.Sprintf(
			"Reduce bill amount to %s or provide justification for excess.",
			fmtAmount(active.MaxAmount)))
	}
	if !facts.HasBilledAmount() {
		billedMissing = true
		recommendations = append(recommendations,
			"Ensure the hospital bill clearly identifies the total amount.")
	}

	// 5. Final status, fixed precedence, highest first.
	status := domain.StatusClean
	switch {
	case len(missingDocs) > 0:
		status = domain.StatusReviewRequired
	case hasMismatch || severityMissing || billedMissing:
		status = domain.StatusReviewRequired
	case fin.FlaggedAmount > 0:
		status = domain.StatusPartialApproval
	}

	// 6. Selected package code: stated wins, then calculated, then none.
	selected := domain.PackageCodeNone
	switch {
	case stated != "":
		selected = stated
	case calculatedOK:
		selected = calculated.Code
	}

	var billed float64
	if facts.HasBilledAmount() {
		billed = *facts.BilledAmount
	}

	return domain.AuditVerdict{
		Status:              status,
		SelectedPackageCode: selected,
		BilledAmount:        billed,
		ApprovedAmount:      fin.ApprovedAmount,
		FlaggedAmount:       fin.FlaggedAmount,
		MissingDocuments:    missingDocs,
		Reason:              strings.Join(reasons, " "),
		Recommendations:     recommendations,
	}
}
