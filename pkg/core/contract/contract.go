// Package contract asserts the shape and identity invariants at every
// stage hand-off of the pipeline: horizon lengths, contiguous year indices,
// and that every downstream ID reference exists upstream.
package contract

import (
	"sort"

	"capital_waterfall/pkg/core/capital"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/projection"
	"capital_waterfall/pkg/core/waterfall"
)

// Stage names used in contract errors and the audit trace.
const (
	StagePnl       = "pnl"
	StageCapital   = "capital"
	StageWaterfall = "waterfall"
)

// =============================================================================
// P&L
// =============================================================================

// ValidatePnl checks the upstream operating series and returns the horizon N.
func ValidatePnl(ops projection.Operations) (int, error) {
	n := len(ops.Unlevered)
	if n == 0 {
		return 0, failure.NewContractViolation(StagePnl, failure.ErrCodeHorizonMismatch,
			"unlevered FCF series is empty", nil)
	}
	if len(ops.Pnl) != n {
		return 0, lengthError(StagePnl, "pnl", n, len(ops.Pnl))
	}
	if err := checkIndices(StagePnl, "pnl", n, func(i int) int { return ops.Pnl[i].YearIndex }); err != nil {
		return 0, err
	}
	if err := checkIndices(StagePnl, "unlevered", n, func(i int) int { return ops.Unlevered[i].YearIndex }); err != nil {
		return 0, err
	}
	return n, nil
}

// =============================================================================
// CAPITAL
// =============================================================================

// ValidateCapital checks the capital stage output against horizon N and the
// tranches it was configured with.
func ValidateCapital(cfg capital.CapitalStructureConfig, res *capital.Result, horizon int) error {
	if res == nil {
		return failure.NewContractViolation(StageCapital, failure.ErrCodeSeriesMismatch,
			"capital stage produced no result", nil)
	}
	if res.Horizon != horizon {
		return lengthError(StageCapital, "horizon", horizon, res.Horizon)
	}

	configured := make(map[string]bool, len(cfg.DebtTranches))
	for _, tr := range cfg.DebtTranches {
		configured[tr.ID] = true
	}
	scheduled := make(map[string]bool, len(res.Schedules))
	for _, s := range res.Schedules {
		if !configured[s.TrancheID] {
			return failure.NewContractViolation(StageCapital, failure.ErrCodeUnknownReference,
				"schedule references a tranche that is not configured",
				map[string]interface{}{"tranche": s.TrancheID})
		}
		scheduled[s.TrancheID] = true
		entries := s.Entries
		if len(entries) != horizon {
			return lengthError(StageCapital, "schedule:"+s.TrancheID, horizon, len(entries))
		}
		if err := checkIndices(StageCapital, "schedule:"+s.TrancheID, horizon, func(i int) int { return entries[i].Year }); err != nil {
			return err
		}
	}
	for _, tr := range cfg.DebtTranches {
		if !scheduled[tr.ID] {
			return failure.NewContractViolation(StageCapital, failure.ErrCodeUnknownReference,
				"configured tranche has no schedule",
				map[string]interface{}{"tranche": tr.ID})
		}
	}

	if len(res.Aggregate) != horizon {
		return lengthError(StageCapital, "aggregate", horizon, len(res.Aggregate))
	}
	if err := checkIndices(StageCapital, "aggregate", horizon, func(i int) int { return res.Aggregate[i].Year }); err != nil {
		return err
	}
	if len(res.Levered) != horizon {
		return lengthError(StageCapital, "levered", horizon, len(res.Levered))
	}
	if err := checkIndices(StageCapital, "levered", horizon, func(i int) int { return res.Levered[i].Year }); err != nil {
		return err
	}
	if len(res.KPIs) != horizon {
		return lengthError(StageCapital, "kpis", horizon, len(res.KPIs))
	}
	if err := checkIndices(StageCapital, "kpis", horizon, func(i int) int { return res.KPIs[i].Year }); err != nil {
		return err
	}
	if len(res.OwnerCashFlow) != horizon+1 {
		return lengthError(StageCapital, "owner_cash_flow", horizon+1, len(res.OwnerCashFlow))
	}
	return nil
}

// =============================================================================
// WATERFALL
// =============================================================================

// ValidateWaterfall checks the waterfall output against the owner series it
// was fed and the configured partners.
func ValidateWaterfall(cfg waterfall.Config, res *waterfall.Result, owner capital.OwnerCashFlow) error {
	if res == nil {
		return failure.NewContractViolation(StageWaterfall, failure.ErrCodeSeriesMismatch,
			"waterfall stage produced no result", nil)
	}
	periods := len(owner)
	if len(res.Rows) != periods {
		return lengthError(StageWaterfall, "rows", periods, len(res.Rows))
	}
	if err := checkIndices(StageWaterfall, "rows", periods, func(i int) int { return res.Rows[i].Year }); err != nil {
		return err
	}

	for i, row := range res.Rows {
		if row.OwnerCashFlow != owner[i] {
			return failure.NewContractViolation(StageWaterfall, failure.ErrCodeSeriesMismatch,
				"row owner cash flow differs from the capital stage series",
				map[string]interface{}{"year": i, "expected": owner[i], "actual": row.OwnerCashFlow})
		}
		if err := checkPartners(cfg, row.Year, row.PartnerDistributions); err != nil {
			return err
		}
		if err := checkPartners(cfg, row.Year, row.ClawbackAdjustments); err != nil {
			return err
		}
	}
	for _, p := range res.Partners {
		if !cfg.HasPartner(p.PartnerID) {
			return unknownPartner(p.PartnerID, -1)
		}
		if len(p.CashFlows) != periods {
			return lengthError(StageWaterfall, "cash_flows:"+p.PartnerID, periods, len(p.CashFlows))
		}
	}
	return nil
}

func checkPartners(cfg waterfall.Config, year int, amounts map[string]float64) error {
	ids := make([]string, 0, len(amounts))
	for id := range amounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !cfg.HasPartner(id) {
			return unknownPartner(id, year)
		}
	}
	return nil
}

func unknownPartner(id string, year int) error {
	details := map[string]interface{}{"partner": id}
	if year >= 0 {
		details["year"] = year
	}
	return failure.NewContractViolation(StageWaterfall, failure.ErrCodeUnknownReference,
		"waterfall output references an unknown partner", details)
}

// =============================================================================
// HELPERS
// =============================================================================

func lengthError(stage, series string, expected, actual int) error {
	return failure.NewContractViolation(stage, failure.ErrCodeHorizonMismatch,
		"series length does not match the horizon",
		map[string]interface{}{"series": series, "expected": expected, "actual": actual})
}

// checkIndices asserts indexOf(i) == i for i in 0..n-1.
func checkIndices(stage, series string, n int, indexOf func(int) int) error {
	for i := 0; i < n; i++ {
		if got := indexOf(i); got != i {
			return failure.NewContractViolation(stage, failure.ErrCodeYearIndexGap,
				"year indices are not contiguous from 0",
				map[string]interface{}{"series": series, "expected": i, "actual": got})
		}
	}
	return nil
}
