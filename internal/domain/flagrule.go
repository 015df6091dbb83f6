package domain

// FlagRuleConfig defines a supplemental audit rule evaluated on top of the
// core adjudication verdict. Flag rules can only escalate a verdict to
// REVIEW_REQUIRED; they never downgrade one.
type FlagRuleConfig struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression to evaluate over the extracted facts and core verdict
	Expression string `json:"expression"`

	// Outcome bands for score-to-outcome mapping
	Bands []FlagBand `json:"bands"`

	// Recommendation appended to the verdict when the rule triggers
	Recommendation string `json:"recommendation,omitempty"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// FlagBand maps a score range to an outcome.
type FlagBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // e.g. ".pass", ".review"
	Reason     string   `json:"reason"`
}

// FlagResult is the output of a flag rule evaluation.
type FlagResult struct {
	RuleID    string  `json:"ruleId"`
	TenantID  string  `json:"tenantId"`
	ClaimID   string  `json:"claimId"`
	Outcome   string  `json:"outcome"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	ProcessMs int64   `json:"processMs"`
}

// Predefined flag rule outcomes
const (
	FlagOutcomePass   = ".pass"
	FlagOutcomeReview = ".review"
	FlagOutcomeError  = ".err"
)

// Triggered reports whether the result escalates the verdict.
// Evaluation errors deliberately do not trigger review on their own:
// a broken rule must not change claim outcomes.
func (r FlagResult) Triggered() bool {
	return r.Outcome == FlagOutcomeReview
}
