package domain

// ExtractedFacts holds the structured facts pulled out of claim documents
// by the extraction layer. A nil numeric field or empty code means the fact
// was not extracted; the engine never distinguishes why it is missing.
type ExtractedFacts struct {
	// SeverityPercent is the burned total body surface area (TBSA) in percent.
	SeverityPercent *float64 `json:"severityPercent,omitempty"`

	// StatedPackageCode is the package code claimed on the hospital bill.
	StatedPackageCode string `json:"statedPackageCode,omitempty"`

	// BilledAmount is the total amount claimed on the hospital bill.
	BilledAmount *float64 `json:"billedAmount,omitempty"`
}

// HasSeverity reports whether a severity percentage was extracted.
func (f *ExtractedFacts) HasSeverity() bool {
	return f != nil && f.SeverityPercent != nil
}

// HasBilledAmount reports whether a billed amount was extracted.
func (f *ExtractedFacts) HasBilledAmount() bool {
	return f != nil && f.BilledAmount != nil
}
