// Package validate provides reusable tolerance checks.
// These functions are called by the capital and waterfall engines to verify
// their conservation identities, and by tests to assert them.
package validate

import (
	"fmt"
	"math"
)

// DefaultTolerance is the absolute money tolerance used by every
// conservation identity in the pipeline.
const DefaultTolerance = 0.01

// DriftFloor is the smallest residual worth reporting. Anything below it is
// ordinary float rounding noise.
const DriftFloor = 1e-9

// =============================================================================
// SUM / EQUALITY CHECKS
// =============================================================================

// SumCheck verifies that a set of parts adds up to an expected total.
type SumCheck struct {
	Label      string
	Expected   float64
	Actual     float64 // Σ parts
	Difference float64 // Expected - Actual
	IsBalanced bool
	Tolerance  float64
}

// CheckSum validates Σ parts = expected within tolerance.
func CheckSum(label string, expected float64, parts []float64, tolerance float64) *SumCheck {
	var actual float64
	for _, p := range parts {
		actual += p
	}
	return CheckEqual(label, expected, actual, tolerance)
}

// CheckEqual validates actual = expected within tolerance.
func CheckEqual(label string, expected, actual, tolerance float64) *SumCheck {
	diff := expected - actual
	return &SumCheck{
		Label:      label,
		Expected:   expected,
		Actual:     actual,
		Difference: diff,
		IsBalanced: math.Abs(diff) <= tolerance,
		Tolerance:  tolerance,
	}
}

// HasDrift reports a residual that is inside tolerance but above noise.
func (c *SumCheck) HasDrift() bool {
	return c.IsBalanced && math.Abs(c.Difference) > DriftFloor
}

func (c *SumCheck) String() string {
	status := "balanced"
	if !c.IsBalanced {
		status = "OUT OF BALANCE"
	}
	return fmt.Sprintf("%s: expected %.4f, actual %.4f, diff %.6f (%s, tol %.4f)",
		c.Label, c.Expected, c.Actual, c.Difference, status, c.Tolerance)
}

// =============================================================================
// CONSERVATION
// =============================================================================

// ConservationCheck verifies that an amount is fully accounted for by what
// was paid out plus what remains outstanding.
type ConservationCheck struct {
	Initial     float64
	Paid        float64
	Outstanding float64
	Difference  float64 // Initial - (Paid + Outstanding)
	IsConserved bool
	Tolerance   float64
}

// CheckConservation validates Initial = Σ paid + outstanding.
func CheckConservation(initial float64, paid []float64, outstanding, tolerance float64) *ConservationCheck {
	var total float64
	for _, p := range paid {
		total += p
	}
	diff := initial - (total + outstanding)
	return &ConservationCheck{
		Initial:     initial,
		Paid:        total,
		Outstanding: outstanding,
		Difference:  diff,
		IsConserved: math.Abs(diff) <= tolerance,
		Tolerance:   tolerance,
	}
}
