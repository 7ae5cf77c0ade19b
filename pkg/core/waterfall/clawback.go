package waterfall

import (
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/validate"
)

// =============================================================================
// CLAWBACK
// =============================================================================

// clawbackTier returns the first promote tier with clawback enabled.
func clawbackTier(cfg Config) (WaterfallTier, bool) {
	for _, t := range cfg.EffectiveTiers() {
		if t.ClawbackEnabled() {
			return t, true
		}
	}
	return WaterfallTier{}, false
}

// SyntheticLiquidationSeries keeps every outflow at its own year and lumps
// all inflows into the terminal year, as if the deal were liquidated once
// at the end.
func SyntheticLiquidationSeries(series []float64) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}
	last := len(series) - 1
	var inflows float64
	for t, cf := range series {
		if cf < 0 {
			out[t] = cf
		} else {
			inflows += cf
		}
	}
	out[last] += inflows
	return out
}

// ComputeClawback re-runs the evaluator on the synthetic liquidation series
// and returns, per partner in declared order, baseline − actual net cash.
// Over-earners get a negative adjustment, under-earners a positive one; the
// adjustments sum to zero.
func ComputeClawback(cfg Config, series []float64, actual *Evaluation) ([]float64, error) {
	baseline, err := Evaluate(cfg, SyntheticLiquidationSeries(series))
	if err != nil {
		return nil, err
	}

	adj := make([]float64, len(actual.Ledgers))
	for i, l := range actual.Ledgers {
		adj[i] = sum(baseline.Ledgers[i].CashFlows) - sum(l.CashFlows)
	}

	check := validate.CheckSum("clawback", 0, adj, validate.DefaultTolerance)
	if !check.IsBalanced {
		return nil, failure.NewInvariantViolation(failure.ErrCodeClawbackImbalance,
			"clawback adjustments do not net to zero",
			map[string]interface{}{"expected": 0.0, "actual": check.Actual})
	}
	return adj, nil
}

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}
