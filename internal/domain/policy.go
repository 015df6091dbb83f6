package domain

// PackageRule defines one coverage package: a clinical severity band and
// the maximum reimbursable amount for that band.
//
// Severity bands are half-open on the low end and closed on the high end:
// a severity s belongs to the rule where MinSeverity < s <= MaxSeverity.
// The lowest band additionally owns s == 0, so it covers [0, MaxSeverity].
type PackageRule struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	MinSeverity float64 `json:"minSeverity"`
	MaxSeverity float64 `json:"maxSeverity"`
	MaxAmount   float64 `json:"maxAmount"`
	Description string  `json:"description,omitempty"`
}

// PolicyConfig holds configuration for the policy table source.
type PolicyConfig struct {
	// Path to the declarative JSON policy source
	Path string `json:"path"`
}
