package projection

import (
	"math"
	"testing"
)

func TestDeriveUnlevered(t *testing.T) {
	pnl := []AnnualPnl{
		{YearIndex: 0, NOI: 1000, MaintenanceCapex: 100},
		{YearIndex: 1, NOI: 1100, MaintenanceCapex: 110},
	}
	out := DeriveUnlevered(pnl, []float64{50})

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].UnleveredFreeCashFlow != 850 {
		t.Errorf("year 0 UFCF = %.2f, want 850", out[0].UnleveredFreeCashFlow)
	}
	if out[1].UnleveredFreeCashFlow != 990 {
		t.Errorf("year 1 UFCF = %.2f, want 990 (missing WC treated as zero)", out[1].UnleveredFreeCashFlow)
	}
}

func TestGrowingOperations(t *testing.T) {
	ops := GrowingOperations(3, 100, 0.10)
	if ops.Horizon() != 3 {
		t.Fatalf("Horizon = %d, want 3", ops.Horizon())
	}
	want := []float64{100, 110, 121}
	for i, v := range ops.UnleveredSeries() {
		if math.Abs(v-want[i]) > 1e-9 {
			t.Errorf("year %d UFCF = %.4f, want %.4f", i, v, want[i])
		}
	}
	for i, p := range ops.Pnl {
		if p.YearIndex != i {
			t.Errorf("YearIndex = %d, want %d", p.YearIndex, i)
		}
	}
}

func TestOperations_CloneIsDeep(t *testing.T) {
	ops := FlatOperations(2, 500)
	cp := ops.Clone()
	cp.Unlevered[0].UnleveredFreeCashFlow = -1
	cp.Pnl[0].NOI = -1

	if ops.Unlevered[0].UnleveredFreeCashFlow != 500 || ops.Pnl[0].NOI != 500 {
		t.Errorf("Clone aliased the original series")
	}
}
