package validate

import (
	"math"
	"testing"
)

// =============================================================================
// SUM CHECKS
// =============================================================================

func TestCheckSum(t *testing.T) {
	tests := []struct {
		name      string
		expected  float64
		parts     []float64
		balanced  bool
		withDrift bool
	}{
		{"Exact", 100, []float64{60, 40}, true, false},
		{"Inside tolerance", 100, []float64{60, 39.995}, true, true},
		{"Outside tolerance", 100, []float64{60, 39.9}, false, false},
		{"Negative capital call", -1000, []float64{-900, -100}, true, false},
		{"Empty parts zero total", 0, nil, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := CheckSum(tt.name, tt.expected, tt.parts, DefaultTolerance)
			if check.IsBalanced != tt.balanced {
				t.Errorf("IsBalanced = %v, want %v (%s)", check.IsBalanced, tt.balanced, check)
			}
			if check.HasDrift() != tt.withDrift {
				t.Errorf("HasDrift = %v, want %v (%s)", check.HasDrift(), tt.withDrift, check)
			}
		})
	}
}

// =============================================================================
// CONSERVATION
// =============================================================================

func TestCheckConservation_Mortgage(t *testing.T) {
	// 10M over 5 years at 2M/yr, fully repaid
	paid := []float64{2e6, 2e6, 2e6, 2e6, 2e6}
	check := CheckConservation(10e6, paid, 0, DefaultTolerance)
	if !check.IsConserved {
		t.Errorf("expected conservation, diff = %.4f", check.Difference)
	}

	// Truncated horizon: 3 payments + 4M outstanding
	check = CheckConservation(10e6, paid[:3], 4e6, DefaultTolerance)
	if !check.IsConserved {
		t.Errorf("expected conservation with outstanding balance, diff = %.4f", check.Difference)
	}

	check = CheckConservation(10e6, paid[:3], 3e6, DefaultTolerance)
	if check.IsConserved {
		t.Errorf("expected violation, diff = %.4f", check.Difference)
	}
	if math.Abs(check.Difference-1e6) > 1e-6 {
		t.Errorf("Difference = %.4f, want 1,000,000", check.Difference)
	}
}

// =============================================================================
// ROLL-FORWARD
// =============================================================================

func TestCheckBalanceRollForward(t *testing.T) {
	beginnings := []float64{0, 100, 80, 60}
	outflows := []float64{0, 20, 20, 60}
	endings := []float64{0, 80, 60, 0}

	report := CheckBalanceRollForward(1, beginnings, outflows, endings, DefaultTolerance)
	if !report.AllPassed {
		t.Fatalf("expected linked series, failed years %v", report.FailedYears)
	}
	if len(report.Links) != 3 {
		t.Errorf("links = %d, want 3", len(report.Links))
	}

	endings[2] = 55
	report = CheckBalanceRollForward(1, beginnings, outflows, endings, DefaultTolerance)
	if report.AllPassed {
		t.Fatalf("expected broken roll-forward")
	}
	t.Logf("failed years: %v", report.FailedYears)
	if len(report.FailedYears) != 2 || report.FailedYears[0] != 2 || report.FailedYears[1] != 3 {
		t.Errorf("FailedYears = %v, want [2 3]", report.FailedYears)
	}
}
