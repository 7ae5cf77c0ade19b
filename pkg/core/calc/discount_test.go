package calc

import (
	"math"
	"testing"
)

func TestNPV_FirstFlowUndiscounted(t *testing.T) {
	npv := NPV(0.10, []float64{-100, 110})
	if math.Abs(npv) > 1e-9 {
		t.Errorf("NPV = %.9f, want 0", npv)
	}
}

func TestIRR(t *testing.T) {
	tests := []struct {
		name  string
		flows []float64
		want  float64
		ok    bool
	}{
		{"Single period 10%", []float64{-100, 110}, 0.10, true},
		{"Two periods 10%", []float64{-100, 0, 121}, 0.10, true},
		{"Level annuity", []float64{-1000, 400, 400, 400}, 0.0970102, true},
		{"Loss", []float64{-100, 50}, -0.5, true},
		{"No sign change", []float64{100, 100}, 0, false},
		{"All zero", []float64{0, 0, 0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IRR(tt.flows)
			if ok != tt.ok {
				t.Fatalf("IRR ok = %v, want %v", ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("IRR = %.8f, want %.8f", got, tt.want)
			}
		})
	}
}

func TestIRR_Deterministic(t *testing.T) {
	flows := []float64{-1_000_000, 200_000, 200_000, 200_000, 1_200_000}
	a, _ := IRR(flows)
	b, _ := IRR(flows)
	if a != b {
		t.Errorf("IRR not bit-identical: %v vs %v", a, b)
	}
	t.Logf("IRR = %.6f%%", a*100)
}

func TestMOIC(t *testing.T) {
	m, ok := MOIC([]float64{-100, 50, 100})
	if !ok || math.Abs(m-1.5) > 1e-12 {
		t.Errorf("MOIC = %v (ok=%v), want 1.5", m, ok)
	}
	if _, ok := MOIC([]float64{0, 10}); ok {
		t.Errorf("MOIC without investment should not be ok")
	}
}
