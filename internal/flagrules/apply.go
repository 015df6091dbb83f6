package flagrules

import (
	"github.com/opensource-health/heron/internal/domain"
)

// Apply folds flag rule results into a core verdict. Triggered rules
// escalate the status to REVIEW_REQUIRED and append their reason and the
// rule's configured recommendation. Amounts and the selected package are
// never modified, and non-triggered results leave the verdict untouched.
func (e *Engine) Apply(verdict domain.AuditVerdict, results []domain.FlagResult) domain.AuditVerdict {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, res := range results {
		if !res.Triggered() {
			continue
		}

		verdict.Status = domain.StatusReviewRequired
		if res.Reason != "" {
			if verdict.Reason != "" {
				verdict.Reason += " "
			}
			verdict.Reason += res.Reason
		}

		if rule, ok := e.compiledRules[res.RuleID]; ok && rule.Config.Recommendation != "" {
			verdict.Recommendations = append(verdict.Recommendations, rule.Config.Recommendation)
		}
	}

	return verdict
}
