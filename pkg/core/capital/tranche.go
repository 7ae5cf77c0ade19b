package capital

import (
	"fmt"

	"capital_waterfall/pkg/core/failure"
)

// AmortizationType selects how a tranche repays principal.
type AmortizationType string

const (
	AmortMortgage     AmortizationType = "mortgage"
	AmortInterestOnly AmortizationType = "interest_only"
	AmortBullet       AmortizationType = "bullet"
)

// Seniority ranks a tranche in the capital stack.
type Seniority string

const (
	SenioritySenior      Seniority = "senior"
	SeniorityMezzanine   Seniority = "mezzanine"
	SenioritySubordinate Seniority = "subordinate"
)

// DebtTranche is one immutable slice of project debt.
// Year fields are absolute project year indices (0 = first operating year).
type DebtTranche struct {
	ID                string           `json:"id"`
	Principal         float64          `json:"principal"`
	Rate              float64          `json:"rate"`
	TermYears         int              `json:"term_years"`
	AmortizationYears int              `json:"amortization_years"`
	Type              AmortizationType `json:"type"`
	StartYear         int              `json:"start_year"`
	InterestOnlyYears int              `json:"interest_only_years,omitempty"`

	RefinanceAtYear    *int     `json:"refinance_at_year,omitempty"`
	RefinanceAmountPct *float64 `json:"refinance_amount_pct,omitempty"` // default 1.0

	OriginationFeePct float64   `json:"origination_fee_pct,omitempty"`
	ExitFeePct        float64   `json:"exit_fee_pct,omitempty"`
	Seniority         Seniority `json:"seniority"`
}

// RefinancePct returns the refinanced fraction of the balance (default 1.0).
func (t DebtTranche) RefinancePct() float64 {
	if t.RefinanceAmountPct == nil {
		return 1.0
	}
	return *t.RefinanceAmountPct
}

// OriginationFee is charged on the full principal at draw.
func (t DebtTranche) OriginationFee() float64 {
	return t.OriginationFeePct * t.Principal
}

// NetProceeds is the cash actually received from the lender.
func (t DebtTranche) NetProceeds() float64 {
	return t.Principal - t.OriginationFee()
}

// MaturityYear is the absolute index of the last contractual term year.
func (t DebtTranche) MaturityYear() int {
	return t.StartYear + t.TermYears - 1
}

// Clone returns a deep copy; pointer fields are not shared.
func (t DebtTranche) Clone() DebtTranche {
	cp := t
	if t.RefinanceAtYear != nil {
		y := *t.RefinanceAtYear
		cp.RefinanceAtYear = &y
	}
	if t.RefinanceAmountPct != nil {
		p := *t.RefinanceAmountPct
		cp.RefinanceAmountPct = &p
	}
	return cp
}

// Validate checks the tranche before any schedule is built.
// A zero principal is valid and yields an all-zero schedule.
func (t DebtTranche) Validate(horizon int) error {
	bad := func(msg string, extra map[string]interface{}) error {
		details := map[string]interface{}{"tranche": t.ID}
		for k, v := range extra {
			details[k] = v
		}
		return failure.NewConfigurationError(failure.ErrCodeInvalidTranche, msg, details)
	}

	if t.ID == "" {
		return bad("tranche id is required", nil)
	}
	if t.Principal < 0 {
		return bad("principal must not be negative", map[string]interface{}{"principal": t.Principal})
	}
	switch t.Type {
	case AmortMortgage, AmortInterestOnly, AmortBullet:
	default:
		return bad(fmt.Sprintf("unknown amortization type %q", t.Type), nil)
	}
	switch t.Seniority {
	case SenioritySenior, SeniorityMezzanine, SenioritySubordinate:
	default:
		return bad(fmt.Sprintf("unknown seniority %q", t.Seniority), nil)
	}
	if t.Principal == 0 {
		return nil
	}

	if t.TermYears <= 0 {
		return bad("term must be positive when principal > 0", map[string]interface{}{"term_years": t.TermYears})
	}
	if t.Type == AmortMortgage && t.AmortizationYears <= 0 {
		return bad("amortization period must be positive for a mortgage", map[string]interface{}{"amortization_years": t.AmortizationYears})
	}
	if t.Rate < 0 {
		return bad("rate must not be negative", map[string]interface{}{"rate": t.Rate})
	}
	if t.InterestOnlyYears < 0 {
		return bad("interest-only period must not be negative", map[string]interface{}{"interest_only_years": t.InterestOnlyYears})
	}
	if t.OriginationFeePct < 0 || t.OriginationFeePct > 1 {
		return bad("origination fee pct must be within [0,1]", map[string]interface{}{"origination_fee_pct": t.OriginationFeePct})
	}
	if t.ExitFeePct < 0 || t.ExitFeePct > 1 {
		return bad("exit fee pct must be within [0,1]", map[string]interface{}{"exit_fee_pct": t.ExitFeePct})
	}
	if pct := t.RefinancePct(); pct <= 0 || pct > 1 {
		return bad("refinance amount pct must be within (0,1]", map[string]interface{}{"refinance_amount_pct": pct})
	}
	if t.StartYear < 0 || (horizon > 0 && t.StartYear >= horizon) {
		return bad("start year outside the horizon", map[string]interface{}{"start_year": t.StartYear, "horizon": horizon})
	}
	if t.RefinanceAtYear != nil && *t.RefinanceAtYear < t.StartYear {
		return bad("refinance year precedes the draw", map[string]interface{}{"refinance_at_year": *t.RefinanceAtYear, "start_year": t.StartYear})
	}
	return nil
}

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// ScheduleEvent labels what happened to a tranche in a period.
type ScheduleEvent string

const (
	EventNone      ScheduleEvent = ""
	EventDraw      ScheduleEvent = "draw"
	EventRefinance ScheduleEvent = "refinance"
	EventMaturity  ScheduleEvent = "maturity"
)

// DebtScheduleEntry is one period of a tranche schedule. Produced once and
// never mutated afterwards.
type DebtScheduleEntry struct {
	Year             int           `json:"year"`
	BeginningBalance float64       `json:"beginning_balance"`
	Interest         float64       `json:"interest"`
	Principal        float64       `json:"principal"`
	EndingBalance    float64       `json:"ending_balance"`
	OriginationFee   float64       `json:"origination_fee,omitempty"`
	ExitFee          float64       `json:"exit_fee,omitempty"`
	Event            ScheduleEvent `json:"event,omitempty"`
}

// DebtService is interest plus scheduled principal (fees excluded).
func (e DebtScheduleEntry) DebtService() float64 {
	return e.Interest + e.Principal
}

// TrancheSchedule is the full per-period schedule of one tranche.
type TrancheSchedule struct {
	TrancheID string              `json:"tranche_id"`
	Seniority Seniority           `json:"seniority"`
	Principal float64             `json:"principal"`
	Entries   []DebtScheduleEntry `json:"entries"`
}

// TotalPrincipal sums principal repaid inside the horizon.
func (s TrancheSchedule) TotalPrincipal() float64 {
	var total float64
	for _, e := range s.Entries {
		total += e.Principal
	}
	return total
}

// OutstandingAtHorizon returns the ending balance of the last period in
// which the tranche carried a balance.
func (s TrancheSchedule) OutstandingAtHorizon() float64 {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].BeginningBalance > 0 {
			return s.Entries[i].EndingBalance
		}
	}
	return 0
}
