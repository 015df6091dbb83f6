package domain

import (
	"time"
)

// Verdict status constants. Callers branch on these literal strings;
// renaming them is a breaking change.
const (
	StatusClean           = "CLEAN"
	StatusPartialApproval = "PARTIAL_APPROVAL"
	StatusReviewRequired  = "REVIEW_REQUIRED"
)

// PackageCodeNone is reported when neither a stated nor a calculated
// package code exists for the claim.
const PackageCodeNone = "N/A"

// AuditVerdict is the complete outcome of one claim adjudication.
// It is assembled once and never mutated afterwards.
type AuditVerdict struct {
	Status              string   `json:"status"`
	SelectedPackageCode string   `json:"selectedPackageCode"`
	BilledAmount        float64  `json:"billedAmount"`
	ApprovedAmount      float64  `json:"approvedAmount"`
	FlaggedAmount       float64  `json:"flaggedAmount"`
	MissingDocuments    []string `json:"missingDocuments"`
	Reason              string   `json:"reason"`
	Recommendations     []string `json:"recommendations"`
}

// Adjudication is the persisted record of one adjudication run:
// the verdict plus the facts that produced it and processing metadata.
type Adjudication struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	ClaimID  string `json:"claimId"`

	Facts   ExtractedFacts `json:"facts"`
	Verdict AuditVerdict   `json:"verdict"`

	// Supplemental flag rule results (if any rules are configured)
	FlagResults []FlagResult `json:"flagResults,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Processing metadata
	Metadata AdjudicationMetadata `json:"metadata"`
}

// AdjudicationMetadata contains processing information.
type AdjudicationMetadata struct {
	TraceID            string `json:"traceId"`
	ExtractMs          int64  `json:"extractMs"`
	AdjudicateMs       int64  `json:"adjudicateMs"`
	TotalMs            int64  `json:"totalMs"`
	FlagRulesEvaluated int    `json:"flagRulesEvaluated"`
	EngineVersion      string `json:"engineVersion"`
}

// AdjudicationResponse is the API response for a claim adjudication.
type AdjudicationResponse struct {
	AdjudicationID string               `json:"adjudicationId"`
	ClaimID        string               `json:"claimId"`
	TenantID       string               `json:"tenantId"`
	Verdict        AuditVerdict         `json:"verdict"`
	Metadata       AdjudicationMetadata `json:"metadata"`
}

// ToResponse converts an Adjudication to an API response.
func (a *Adjudication) ToResponse() *AdjudicationResponse {
	return &AdjudicationResponse{
		AdjudicationID: a.ID,
		ClaimID:        a.ClaimID,
		TenantID:       a.TenantID,
		Verdict:        a.Verdict,
		Metadata:       a.Metadata,
	}
}
