package calc

// =============================================================================
// INTERNAL RATE OF RETURN
// =============================================================================

const (
	// irrLowerBound keeps (1+r)^t away from zero so long horizons stay finite.
	irrLowerBound = -0.99
	irrUpperLimit = 1e6
	irrTolerance  = 1e-12
	irrMaxIter    = 300
)

// IRR solves NPV(r) = 0 for annual flows (first element at t=0) by
// bracketed bisection. ok is false when the series has no sign change or no
// root could be bracketed in (-99%, 1e8%).
//
// Bisection is used instead of Newton so the result is identical across
// platforms for identical inputs and the iteration count is bounded.
func IRR(cashFlows []float64) (float64, bool) {
	if !hasSignChange(cashFlows) {
		return 0, false
	}

	lo, hi := irrLowerBound, 1.0
	fLo := NPV(lo, cashFlows)
	fHi := NPV(hi, cashFlows)

	for fLo*fHi > 0 && hi < irrUpperLimit {
		hi = hi*2 + 1
		fHi = NPV(hi, cashFlows)
	}
	if fLo*fHi > 0 {
		return 0, false
	}
	if fLo == 0 {
		return lo, true
	}
	if fHi == 0 {
		return hi, true
	}

	for i := 0; i < irrMaxIter; i++ {
		mid := lo + (hi-lo)/2
		fMid := NPV(mid, cashFlows)
		if fMid == 0 || (hi-lo)/2 < irrTolerance {
			return mid, true
		}
		if (fMid > 0) == (fLo > 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return lo + (hi-lo)/2, true
}

func hasSignChange(cashFlows []float64) bool {
	var pos, neg bool
	for _, cf := range cashFlows {
		if cf > 0 {
			pos = true
		} else if cf < 0 {
			neg = true
		}
	}
	return pos && neg
}
