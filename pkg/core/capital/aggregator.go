package capital

import (
	"capital_waterfall/pkg/core/failure"
)

// AggregateDebtEntry is the project-level debt position for one year.
type AggregateDebtEntry struct {
	Year              int     `json:"year"`
	BeginningBalance  float64 `json:"beginning_balance"`
	Interest          float64 `json:"interest"`
	Principal         float64 `json:"principal"`
	EndingBalance     float64 `json:"ending_balance"`
	DebtService       float64 `json:"debt_service"`        // interest + principal, all tranches
	SeniorDebtService float64 `json:"senior_debt_service"` // interest + principal, senior only
	ExitFees          float64 `json:"exit_fees"`
	OriginationFees   float64 `json:"origination_fees"`
}

// AggregateSchedules sums per-tranche schedules into a project schedule.
// A refinanced tranche stops contributing on its own once its schedule
// zeroes out; nothing here special-cases refinancing.
func AggregateSchedules(schedules []TrancheSchedule, horizon int) ([]AggregateDebtEntry, error) {
	out := make([]AggregateDebtEntry, horizon)
	for y := range out {
		out[y].Year = y
	}

	for _, s := range schedules {
		if len(s.Entries) != horizon {
			return nil, failure.NewContractViolation("debt_aggregation", failure.ErrCodeHorizonMismatch,
				"tranche schedule length does not match horizon",
				map[string]interface{}{"tranche": s.TrancheID, "expected": horizon, "actual": len(s.Entries)})
		}
		for y, e := range s.Entries {
			if e.Year != y {
				return nil, failure.NewContractViolation("debt_aggregation", failure.ErrCodeYearIndexGap,
					"tranche schedule year index out of order",
					map[string]interface{}{"tranche": s.TrancheID, "expected": y, "actual": e.Year})
			}
			a := &out[y]
			a.BeginningBalance += e.BeginningBalance
			a.Interest += e.Interest
			a.Principal += e.Principal
			a.EndingBalance += e.EndingBalance
			a.DebtService += e.DebtService()
			a.ExitFees += e.ExitFee
			a.OriginationFees += e.OriginationFee
			if s.Seniority == SenioritySenior {
				a.SeniorDebtService += e.DebtService()
			}
		}
	}
	return out, nil
}

// =============================================================================
// COVERAGE RATIOS
// =============================================================================

// ProjectDSCR returns NOI / aggregate debt service, or nil when there is no
// debt service.
func ProjectDSCR(noi float64, e AggregateDebtEntry) *float64 {
	return ratio(noi, e.DebtService)
}

// SeniorDSCR returns NOI / senior debt service, or nil when there is no
// senior debt service.
func SeniorDSCR(noi float64, e AggregateDebtEntry) *float64 {
	return ratio(noi, e.SeniorDebtService)
}

// LTV returns outstanding balance / investment basis, or nil without a basis.
func LTV(e AggregateDebtEntry, initialInvestment float64) *float64 {
	return ratio(e.EndingBalance, initialInvestment)
}

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}
