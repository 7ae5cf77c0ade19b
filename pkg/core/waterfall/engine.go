package waterfall

import (
	"fmt"
	"math"

	"capital_waterfall/pkg/core/calc"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/validate"
)

// PartnerSummary is the per-partner view handed downstream.
type PartnerSummary struct {
	PartnerID   string    `json:"partner_id"`
	IRR         *float64  `json:"irr"`
	MOIC        *float64  `json:"moic"`
	CashFlows   []float64 `json:"cash_flows"`
	Contributed float64   `json:"contributed"`
	Distributed float64   `json:"distributed"`
	Promote     float64   `json:"promote"`
}

// Result is the full output of the waterfall stage.
type Result struct {
	Rows            []AnnualWaterfallRow `json:"rows"`
	Partners        []PartnerSummary     `json:"partners"`
	Warnings        []failure.Warning    `json:"warnings,omitempty"`
	ClawbackApplied bool                 `json:"clawback_applied"`
}

// Partner returns the summary of a partner, or nil.
func (r *Result) Partner(id string) *PartnerSummary {
	for i := range r.Partners {
		if r.Partners[i].PartnerID == id {
			return &r.Partners[i]
		}
	}
	return nil
}

// Engine evaluates the waterfall, applies clawback and enforces row
// conservation. It holds no state between runs.
type Engine struct {
	tolerance float64
}

// NewEngine creates a waterfall engine with the default money tolerance.
func NewEngine() *Engine {
	return &Engine{tolerance: validate.DefaultTolerance}
}

// WithTolerance overrides the conservation tolerance.
func (e *Engine) WithTolerance(tol float64) *Engine {
	if tol > 0 {
		e.tolerance = tol
	}
	return e
}

// Run splits the owner cash-flow series (length N+1, t0 = equity call)
// among the configured partners.
func (e *Engine) Run(cfg Config, ownerCashFlow []float64) (*Result, error) {
	ev, err := Evaluate(cfg, ownerCashFlow)
	if err != nil {
		return nil, err
	}
	partners := cfg.PartnerIDs()
	res := &Result{Rows: ev.Rows}

	// 1. Clawback true-up in the terminal row
	if _, ok := clawbackTier(cfg); ok {
		adj, err := ComputeClawback(cfg, ownerCashFlow, ev)
		if err != nil {
			return nil, err
		}
		last := len(ev.Rows) - 1
		row := &ev.Rows[last]
		row.ClawbackAdjustments = make(map[string]float64, len(partners))
		for i, id := range partners {
			row.ClawbackAdjustments[id] = adj[i]
			ev.Ledgers[i].CashFlows[last] += adj[i]
		}
		res.ClawbackApplied = true
	}

	// 2. Row conservation
	warnings, err := e.conserve(ev, partners)
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings

	// 3. Partner summaries
	res.Partners = summarize(ev)
	return res, nil
}

// conserve checks Σ distributions + Σ clawback ≈ owner cash flow for every
// row. Drift inside tolerance is booked on the partner with the largest
// distribution that year and reported as a warning.
func (e *Engine) conserve(ev *Evaluation, partners []string) ([]failure.Warning, error) {
	var warnings []failure.Warning
	for t := range ev.Rows {
		row := &ev.Rows[t]
		check := validate.CheckSum(fmt.Sprintf("waterfall year %d", t), row.OwnerCashFlow, row.Parts(partners), e.tolerance)
		if !check.IsBalanced {
			return nil, failure.NewInvariantViolation(failure.ErrCodeWaterfallConservation,
				"partner distributions do not sum to owner cash flow",
				map[string]interface{}{
					"year":     t,
					"expected": check.Expected,
					"actual":   check.Actual,
				})
		}
		if !check.HasDrift() {
			continue
		}

		target := largestPartner(row, partners)
		row.PartnerDistributions[partners[target]] += check.Difference
		ev.Ledgers[target].CashFlows[t] += check.Difference
		warnings = append(warnings, failure.Warning{
			Code:    failure.WarnCodeFloatDrift,
			Message: "rounding drift booked on largest distribution",
			Stage:   "waterfall",
			Year:    t,
			Subject: partners[target],
			Drift:   check.Difference,
		})
	}
	return warnings, nil
}

func largestPartner(row *AnnualWaterfallRow, partners []string) int {
	best := 0
	for i, id := range partners {
		if math.Abs(row.PartnerDistributions[id]) > math.Abs(row.PartnerDistributions[partners[best]]) {
			best = i
		}
	}
	return best
}

func summarize(ev *Evaluation) []PartnerSummary {
	out := make([]PartnerSummary, len(ev.Ledgers))
	for i, l := range ev.Ledgers {
		flows := make([]float64, len(l.CashFlows))
		copy(flows, l.CashFlows)
		s := PartnerSummary{
			PartnerID:   l.PartnerID,
			CashFlows:   flows,
			Contributed: l.Contributed,
			Distributed: l.Distributed(),
			Promote:     l.Promote,
		}
		if irr, ok := calc.IRR(flows); ok {
			s.IRR = &irr
		}
		if moic, ok := calc.MOIC(flows); ok {
			s.MOIC = &moic
		}
		out[i] = s
	}
	return out
}
