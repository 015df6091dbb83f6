package domain

import (
	"time"
)

// Claim represents an incoming pre-authorization claim to be adjudicated.
type Claim struct {
	// Core identifiers
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Parties involved
	BeneficiaryID string `json:"beneficiaryId"`
	HospitalID    string `json:"hospitalId"`

	// Raw document text supplied by the upload layer.
	// Empty when the caller submits pre-extracted facts instead.
	ClinicalText string `json:"clinicalText,omitempty"`
	BillText     string `json:"billText,omitempty"`

	// Upload status per document name
	Documents DocumentChecklist `json:"documents"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Optional metadata
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentChecklist maps document names to upload presence flags.
// Keys outside RequiredDocuments are ignored for completeness checks.
type DocumentChecklist map[string]bool

// RequiredDocuments is the canonical, ordered set of mandatory documents.
// Completeness reporting preserves this order.
var RequiredDocuments = []string{
	"Clinical Notes",
	"Discharge Summary",
	"Treatment Photographs",
	"Hospital Bill",
}

// ClaimRequest is the API request payload for claim adjudication.
type ClaimRequest struct {
	Beneficiary   Party                  `json:"beneficiary" validate:"required"`
	Hospital      Party                  `json:"hospital" validate:"required"`
	ClinicalNotes string                 `json:"clinicalNotes,omitempty"`
	HospitalBill  string                 `json:"hospitalBill,omitempty"`
	Facts         *ExtractedFacts        `json:"facts,omitempty"`
	Documents     map[string]bool        `json:"documents"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Party represents a claim participant (beneficiary or hospital).
type Party struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name,omitempty"`
}

// ToClaim converts a request to a Claim domain object.
func (r *ClaimRequest) ToClaim() *Claim {
	now := time.Now().UTC()
	return &Claim{
		BeneficiaryID: r.Beneficiary.ID,
		HospitalID:    r.Hospital.ID,
		ClinicalText:  r.ClinicalNotes,
		BillText:      r.HospitalBill,
		Documents:     DocumentChecklist(r.Documents),
		Timestamp:     now,
		CreatedAt:     now,
		Metadata:      r.Metadata,
	}
}
