package batch

import (
	"context"
	"testing"

	"capital_waterfall/pkg/core/capital"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/pipeline"
	"capital_waterfall/pkg/core/projection"
	"capital_waterfall/pkg/core/waterfall"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput() pipeline.Input {
	return pipeline.Input{
		Operations: projection.FlatOperations(5, 1_000_000),
		Capital: capital.CapitalStructureConfig{
			InitialInvestment: 10_000_000,
			DebtTranches: []capital.DebtTranche{{
				ID: "senior", Principal: 6_000_000, Rate: 0.06, TermYears: 5,
				AmortizationYears: 25, Type: capital.AmortMortgage, Seniority: capital.SenioritySenior,
			}},
		},
		Waterfall: waterfall.Config{
			EquityClasses: []waterfall.EquityClass{
				{ID: "LP", ContributionPct: 0.9},
				{ID: "GP", ContributionPct: 0.1},
			},
			Tiers: []waterfall.WaterfallTier{
				{ID: "roc", Type: waterfall.TierReturnOfCapital},
				{ID: "pref", Type: waterfall.TierPreferredReturn, HurdleIRR: 0.08},
				{ID: "promote", Type: waterfall.TierPromote, DistributionSplits: map[string]float64{"LP": 0.8, "GP": 0.2}},
			},
		},
	}
}

func TestRunner_OutcomesInInputOrder(t *testing.T) {
	variants := []Variant{
		{Name: "base"},
		{Name: "rate-up", Overrides: map[string]float64{"tranche.senior.rate": 0.09}},
		{Name: "smaller", Overrides: map[string]float64{KeyInitialInvestment: 9_000_000}},
		{Name: "upside", Overrides: map[string]float64{KeyUFCFScale: 1.2}},
		{Name: "low-hurdle", Overrides: map[string]float64{"tier.pref.hurdle_irr": 0.05}},
		{Name: "broken", Overrides: map[string]float64{"tranche.senior.principal": -1}},
	}

	out, err := NewRunner(pipeline.NewOrchestrator(), 3).Run(context.Background(), baseInput(), variants)
	require.NoError(t, err)
	require.Len(t, out, len(variants))

	for i, o := range out {
		assert.Equal(t, variants[i].Name, o.Variant)
	}
	for _, o := range out[:5] {
		require.False(t, o.Failed(), "%s: %v", o.Variant, o.Err)
	}

	base := out[0].Result.Capital.OwnerCashFlow
	assert.Less(t, out[1].Result.Capital.OwnerCashFlow[1], base[1], "higher rate lowers levered CF")
	assert.Equal(t, -4_000_000.0, base[0])
	assert.Equal(t, -3_000_000.0, out[2].Result.Capital.OwnerCashFlow[0])
	assert.Greater(t, out[3].Result.Capital.OwnerCashFlow[1], base[1])

	require.True(t, out[5].Failed())
	assert.True(t, failure.HasCode(out[5].Err, failure.ErrCodeInvalidTranche))
	for _, o := range out {
		t.Logf("%-10s failed=%v", o.Variant, o.Failed())
	}
}

func TestRunner_MatchesSequentialRuns(t *testing.T) {
	variants := make([]Variant, 12)
	for i := range variants {
		variants[i] = Variant{Name: "v", Overrides: map[string]float64{KeyUFCFScale: 0.8 + 0.05*float64(i)}}
	}
	orch := pipeline.NewOrchestrator()

	out, err := NewRunner(orch, 4).Run(context.Background(), baseInput(), variants)
	require.NoError(t, err)

	for i, v := range variants {
		in := baseInput()
		require.NoError(t, Apply(&in, v.Overrides))
		want, err := orch.Run(in)
		require.NoError(t, err)
		assert.Equal(t, want, out[i].Result, "variant %d", i)
	}
}

func TestRunner_BaseInputNotMutated(t *testing.T) {
	base := baseInput()
	snapshot := base.Clone()
	_, err := NewRunner(pipeline.NewOrchestrator(), 2).Run(context.Background(), base, []Variant{
		{Overrides: map[string]float64{"tranche.senior.rate": 0.2, KeyUFCFScale: 3, "tier.pref.hurdle_irr": 0.2}},
	})
	require.NoError(t, err)
	assert.Equal(t, snapshot, base)
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(pipeline.NewOrchestrator(), 1).Run(ctx, baseInput(), []Variant{{Name: "a"}, {Name: "b"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply_BadKeys(t *testing.T) {
	tests := []string{
		"leverage",
		"tranche.senior",
		"tranche.senior.",
		"tranche.mezz.rate",
		"tranche.senior.term",
		"tier.pref.splits",
		"tier.missing.hurdle_irr",
	}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			in := baseInput()
			err := Apply(&in, map[string]float64{key: 1})
			require.Error(t, err)
			assert.True(t, failure.IsConfiguration(err))
		})
	}

	_, err := NewRunner(pipeline.NewOrchestrator(), 1).Run(context.Background(), baseInput(),
		[]Variant{{Name: "bad", Overrides: map[string]float64{"nope": 1}}})
	assert.Error(t, err)
}

func TestSplitKey_DottedIDs(t *testing.T) {
	id, field, ok := splitKey("tranche.a.b.rate", "tranche.")
	require.True(t, ok)
	assert.Equal(t, "a.b", id)
	assert.Equal(t, "rate", field)
}
