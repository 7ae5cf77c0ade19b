package capital

import (
	"math"

	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/validate"
)

// =============================================================================
// ANNUAL AMORTIZATION
// =============================================================================

// AmortizeTranche builds the annual schedule of one tranche over the
// horizon. Entries outside [StartYear, StartYear+TermYears) are zero.
//
// Precedence inside the active window:
//  1. refinance year with balance > 0: principal = balance × RefinancePct
//  2. maturity year: principal = balance (balloon / bullet payoff)
//  3. mortgage after the interest-only period: Principal/AmortizationYears, capped at balance
//  4. otherwise: interest only
//
// The returned schedule always satisfies Σ principal + outstanding = Principal
// (±0.01); a violation is returned as an InvariantViolation.
func AmortizeTranche(tr DebtTranche, horizon int) (TrancheSchedule, error) {
	if err := tr.Validate(horizon); err != nil {
		return TrancheSchedule{}, err
	}

	sched := newSchedule(tr, horizon)
	if tr.Principal == 0 {
		return sched, nil
	}

	end := tr.StartYear + tr.TermYears
	if end > horizon {
		end = horizon
	}
	maturity := tr.MaturityYear()

	var scheduled float64
	if tr.Type == AmortMortgage {
		scheduled = tr.Principal / float64(tr.AmortizationYears)
	}

	balance := tr.Principal
	for y := tr.StartYear; y < end && balance > 0; y++ {
		e := &sched.Entries[y]
		e.BeginningBalance = balance
		e.Interest = balance * tr.Rate

		if y == tr.StartYear {
			e.OriginationFee = tr.OriginationFee()
			e.Event = EventDraw
		}

		switch {
		case tr.RefinanceAtYear != nil && y == *tr.RefinanceAtYear:
			e.Event = EventRefinance
			e.ExitFee = tr.ExitFeePct * balance
			e.Principal = balance * tr.RefinancePct()
			if y == maturity || tr.RefinancePct() >= 1 {
				e.Principal = balance
			}
		case y == maturity:
			e.Event = EventMaturity
			e.ExitFee = tr.ExitFeePct * balance
			e.Principal = balance
		case tr.Type == AmortMortgage && y-tr.StartYear >= tr.InterestOnlyYears:
			e.Principal = math.Min(scheduled, balance)
		}

		e.EndingBalance = balance - e.Principal
		balance = e.EndingBalance
	}

	if err := checkScheduleConservation(tr, sched); err != nil {
		return TrancheSchedule{}, err
	}
	return sched, nil
}

func newSchedule(tr DebtTranche, horizon int) TrancheSchedule {
	entries := make([]DebtScheduleEntry, horizon)
	for y := range entries {
		entries[y].Year = y
	}
	return TrancheSchedule{
		TrancheID: tr.ID,
		Seniority: tr.Seniority,
		Principal: tr.Principal,
		Entries:   entries,
	}
}

// checkScheduleConservation enforces the debt identities. A failure here
// means the amortization formula itself is wrong, so it is fatal.
func checkScheduleConservation(tr DebtTranche, sched TrancheSchedule) error {
	n := len(sched.Entries)
	beginnings := make([]float64, n)
	principals := make([]float64, n)
	endings := make([]float64, n)
	for i, e := range sched.Entries {
		beginnings[i] = e.BeginningBalance
		principals[i] = e.Principal
		endings[i] = e.EndingBalance
	}

	check := validate.CheckConservation(tr.Principal, principals, sched.OutstandingAtHorizon(), validate.DefaultTolerance)
	if !check.IsConserved {
		return failure.NewInvariantViolation(failure.ErrCodeDebtConservation,
			"principal repaid plus outstanding balance does not equal initial principal",
			map[string]interface{}{
				"tranche":     tr.ID,
				"expected":    check.Initial,
				"actual":      check.Paid + check.Outstanding,
				"paid":        check.Paid,
				"outstanding": check.Outstanding,
			})
	}

	roll := validate.CheckBalanceRollForward(tr.StartYear, beginnings, principals, endings, validate.DefaultTolerance)
	if !roll.AllPassed {
		year := roll.FailedYears[0]
		return failure.NewInvariantViolation(failure.ErrCodeDebtConservation,
			"balance roll-forward broken",
			map[string]interface{}{
				"tranche":  tr.ID,
				"year":     year,
				"expected": beginnings[year] - principals[year],
				"actual":   endings[year],
			})
	}
	return nil
}

// =============================================================================
// MONTHLY AMORTIZATION
// =============================================================================

// AnnuityPayment returns the level payment that retires principal over n
// periods at the periodic rate r.
//
// FORMULA: PMT = P·r(1+r)^n / ((1+r)^n − 1), and P/n as r → 0
func AnnuityPayment(principal, periodicRate float64, periods int) float64 {
	if periods <= 0 {
		return principal
	}
	if math.Abs(periodicRate) < 1e-12 {
		return principal / float64(periods)
	}
	growth := math.Pow(1+periodicRate, float64(periods))
	return principal * periodicRate * growth / (growth - 1)
}

// MonthlyScheduleEntry is one month of a tranche schedule.
type MonthlyScheduleEntry struct {
	Month            int           `json:"month"` // absolute month index 0..12N-1
	Year             int           `json:"year"`
	BeginningBalance float64       `json:"beginning_balance"`
	Interest         float64       `json:"interest"`
	Principal        float64       `json:"principal"`
	EndingBalance    float64       `json:"ending_balance"`
	OriginationFee   float64       `json:"origination_fee,omitempty"`
	ExitFee          float64       `json:"exit_fee,omitempty"`
	Event            ScheduleEvent `json:"event,omitempty"`
}

// AmortizeTrancheMonthly is the monthly-granularity variant. Mortgages pay
// a level annuity over AmortizationYears×12 months once the interest-only
// period ends; refinancing settles in the last month of the refinance year
// so the year-end balance matches the annual schedule.
func AmortizeTrancheMonthly(tr DebtTranche, horizon int) ([]MonthlyScheduleEntry, error) {
	if err := tr.Validate(horizon); err != nil {
		return nil, err
	}

	months := horizon * 12
	entries := make([]MonthlyScheduleEntry, months)
	for m := range entries {
		entries[m].Month = m
		entries[m].Year = m / 12
	}
	if tr.Principal == 0 {
		return entries, nil
	}

	r := tr.Rate / 12
	startMonth := tr.StartYear * 12
	endMonth := (tr.StartYear + tr.TermYears) * 12
	if endMonth > months {
		endMonth = months
	}
	maturityMonth := (tr.StartYear+tr.TermYears)*12 - 1
	ioMonths := tr.InterestOnlyYears * 12

	var payment float64
	if tr.Type == AmortMortgage {
		payment = AnnuityPayment(tr.Principal, r, tr.AmortizationYears*12)
	}

	refiMonth := -1
	if tr.RefinanceAtYear != nil {
		refiMonth = *tr.RefinanceAtYear*12 + 11
	}

	balance := tr.Principal
	var paid float64
	for m := startMonth; m < endMonth && balance > 0; m++ {
		e := &entries[m]
		e.BeginningBalance = balance
		e.Interest = balance * r

		if m == startMonth {
			e.OriginationFee = tr.OriginationFee()
			e.Event = EventDraw
		}

		switch {
		case m == refiMonth:
			e.Event = EventRefinance
			e.ExitFee = tr.ExitFeePct * balance
			e.Principal = balance * tr.RefinancePct()
			if m == maturityMonth || tr.RefinancePct() >= 1 {
				e.Principal = balance
			}
		case m == maturityMonth:
			e.Event = EventMaturity
			e.ExitFee = tr.ExitFeePct * balance
			e.Principal = balance
		case tr.Type == AmortMortgage && m-startMonth >= ioMonths:
			e.Principal = math.Min(math.Max(payment-e.Interest, 0), balance)
		}

		e.EndingBalance = balance - e.Principal
		balance = e.EndingBalance
		paid += e.Principal
	}

	check := validate.CheckConservation(tr.Principal, []float64{paid}, balance, validate.DefaultTolerance)
	if !check.IsConserved {
		return nil, failure.NewInvariantViolation(failure.ErrCodeDebtConservation,
			"monthly schedule does not conserve principal",
			map[string]interface{}{
				"tranche":  tr.ID,
				"expected": check.Initial,
				"actual":   check.Paid + check.Outstanding,
			})
	}
	return entries, nil
}

// RollupAnnual folds a monthly schedule into annual entries. Beginning
// balance is taken from the first active month of each year and ending
// balance from the last.
func RollupAnnual(monthly []MonthlyScheduleEntry, horizon int) []DebtScheduleEntry {
	out := make([]DebtScheduleEntry, horizon)
	for y := range out {
		out[y].Year = y
	}

	seen := make([]bool, horizon)
	for _, m := range monthly {
		if m.Year < 0 || m.Year >= horizon || m.BeginningBalance <= 0 {
			continue
		}
		e := &out[m.Year]
		if !seen[m.Year] {
			e.BeginningBalance = m.BeginningBalance
			seen[m.Year] = true
		}
		e.Interest += m.Interest
		e.Principal += m.Principal
		e.EndingBalance = m.EndingBalance
		e.OriginationFee += m.OriginationFee
		e.ExitFee += m.ExitFee
		if m.Event != EventNone && eventRank(m.Event) >= eventRank(e.Event) {
			e.Event = m.Event
		}
	}
	return out
}

func eventRank(ev ScheduleEvent) int {
	switch ev {
	case EventRefinance:
		return 3
	case EventMaturity:
		return 2
	case EventDraw:
		return 1
	}
	return 0
}
