package waterfall

import "capital_waterfall/pkg/core/calc"

// =============================================================================
// PREFERRED RETURN SOLVE
// =============================================================================

const (
	prefTolerance = 1e-6 // currency units
	prefMaxIter   = 200
)

// PreferredSolve is the outcome of one hurdle solve.
type PreferredSolve struct {
	Amount     float64 `json:"amount"`
	Capped     bool    `json:"capped"` // hurdle not reachable within the limit
	Iterations int     `json:"iterations"`
}

// SolvePreferredDistribution finds the smallest distribution d in [0, limit]
// that, added to flows[year], lifts the IRR of flows[0..year] to the hurdle.
//
// The search bisects the pure function d → IRR(flows with d at year), which
// is non-decreasing in d for a partner whose outflows precede the year.
// A partner with no outflow has no hurdle to meet and needs nothing.
func SolvePreferredDistribution(flows []float64, year int, hurdle, limit float64) PreferredSolve {
	if limit <= 0 || year < 0 || year >= len(flows) || !hasOutflow(flows[:year+1]) {
		return PreferredSolve{}
	}

	trial := make([]float64, year+1)
	meets := func(d float64) bool {
		copy(trial, flows[:year+1])
		trial[year] += d
		irr, ok := calc.IRR(trial)
		return ok && irr >= hurdle
	}

	if meets(0) {
		return PreferredSolve{}
	}
	if !meets(limit) {
		return PreferredSolve{Amount: limit, Capped: true}
	}

	lo, hi := 0.0, limit
	iter := 0
	for ; iter < prefMaxIter && hi-lo > prefTolerance; iter++ {
		mid := lo + (hi-lo)/2
		if meets(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return PreferredSolve{Amount: hi, Iterations: iter}
}

func hasOutflow(flows []float64) bool {
	for _, cf := range flows {
		if cf < 0 {
			return true
		}
	}
	return false
}
