package validate

import (
	"math"
)

// =============================================================================
// BALANCE ROLL-FORWARD LINKAGE
// =============================================================================

// RollForwardLink validates one period of a balance roll-forward:
// Beginning_t == Ending_{t-1} and Ending_t == Beginning_t - Outflow_t.
type RollForwardLink struct {
	Year          int     `json:"year"`
	PriorEnding   float64 `json:"prior_ending"`
	Beginning     float64 `json:"beginning"`
	Outflow       float64 `json:"outflow"`
	Ending        float64 `json:"ending"`
	DifferenceBeg float64 `json:"difference_beginning"` // Beginning - PriorEnding
	DifferenceEnd float64 `json:"difference_ending"`    // (Beginning - Outflow) - Ending
	IsLinked      bool    `json:"is_linked"`
	Tolerance     float64 `json:"tolerance"`
}

// RollForwardReport aggregates all period links of one balance series.
type RollForwardReport struct {
	Links       []RollForwardLink `json:"links"`
	AllPassed   bool              `json:"all_passed"`
	FailedYears []int             `json:"failed_years,omitempty"`
}

// CheckRollForward validates one period. checkPrior is false for the first
// active period, where the prior ending balance is not defined.
func CheckRollForward(year int, priorEnding, beginning, outflow, ending float64, checkPrior bool, tolerance float64) RollForwardLink {
	link := RollForwardLink{
		Year:          year,
		PriorEnding:   priorEnding,
		Beginning:     beginning,
		Outflow:       outflow,
		Ending:        ending,
		DifferenceEnd: (beginning - outflow) - ending,
		Tolerance:     tolerance,
	}
	if checkPrior {
		link.DifferenceBeg = beginning - priorEnding
	}
	link.IsLinked = math.Abs(link.DifferenceBeg) <= tolerance && math.Abs(link.DifferenceEnd) <= tolerance
	return link
}

// CheckBalanceRollForward validates a whole series from drawYear onward.
// Periods before drawYear are not checked.
func CheckBalanceRollForward(drawYear int, beginnings, outflows, endings []float64, tolerance float64) *RollForwardReport {
	report := &RollForwardReport{AllPassed: true}

	n := len(beginnings)
	if len(outflows) < n {
		n = len(outflows)
	}
	if len(endings) < n {
		n = len(endings)
	}

	for t := drawYear; t < n; t++ {
		prior := 0.0
		if t > drawYear {
			prior = endings[t-1]
		}
		link := CheckRollForward(t, prior, beginnings[t], outflows[t], endings[t], t > drawYear, tolerance)
		report.Links = append(report.Links, link)
		if !link.IsLinked {
			report.AllPassed = false
			report.FailedYears = append(report.FailedYears, t)
		}
	}
	return report
}
