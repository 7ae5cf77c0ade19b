// Package calc provides the deterministic discounting utilities used by the
// capital and waterfall engines: NPV, IRR and MOIC.
package calc

// =============================================================================
// DISCOUNTING
// =============================================================================

// NPV discounts a series whose first element sits at t=0.
//
// FORMULA: NPV = Σ [ CF_t / (1 + r)^t ],  t = 0..n-1
func NPV(rate float64, cashFlows []float64) float64 {
	var npv float64
	factor := 1.0
	for _, cf := range cashFlows {
		npv += cf / factor
		factor *= 1 + rate
	}
	return npv
}

// =============================================================================
// MULTIPLES
// =============================================================================

// MOIC returns total positive inflows divided by total outflows.
// ok is false when nothing was invested.
//
// FORMULA: MOIC = Σ max(CF,0) / Σ max(-CF,0)
func MOIC(cashFlows []float64) (float64, bool) {
	var in, out float64
	for _, cf := range cashFlows {
		if cf > 0 {
			in += cf
		} else {
			out -= cf
		}
	}
	if out <= 0 {
		return 0, false
	}
	return in / out, true
}
