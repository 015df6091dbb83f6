package engine

import (
	"fmt"
	"strconv"

	"github.com/opensource-health/heron/internal/domain"
)

// OverbillingMarker prefixes the reason fragment recorded when the billed
// amount exceeds the active package limit.
const OverbillingMarker = "OVERBILLING"

// FinanceResult is the outcome of financial validation.
type FinanceResult struct {
	ApprovedAmount float64
	FlaggedAmount  float64
	Note           string
	Overbilled     bool
}

// ValidateFinance compares a billed amount against the active package's
// reimbursement ceiling. The boundary is inclusive: billing exactly the
// limit is compliant. Approved + flagged always equals the billed amount
// whenever both the amount and an active rule exist.
//
// A nil active rule or nil billed amount degrades to zero amounts with an
// explanatory note; the billed amount is preserved for display by the
// caller but is not adjudicated.
func ValidateFinance(active *domain.PackageRule, billed *float64) FinanceResult {
	switch {
	case billed == nil:
		return FinanceResult{Note: "Could not extract total billed amount."}

	case active == nil:
		return FinanceResult{Note: "Cannot validate billed amount: no active package."}

	case *billed <= active.MaxAmount:
		return FinanceResult{
			ApprovedAmount: *billed,
			Note: fmt.Sprintf("Billed amount (%s) is within policy limit (%s).",
				fmtAmount(*billed), fmtAmount(active.MaxAmount)),
		}

	default:
		flagged := *billed - active.MaxAmount
		return FinanceResult{
			ApprovedAmount: active.MaxAmount,
			FlaggedAmount:  flagged,
			Overbilled:     true,
			Note: fmt.Sprintf("%s: exceeds package limit of %s by %s.",
				OverbillingMarker, fmtAmount(active.MaxAmount), fmtAmount(flagged)),
		}
	}
}

// fmtAmount renders a numeric value without trailing zeros.
func fmtAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
