// Package capital turns an unlevered cash-flow forecast into a levered owner
// cash-flow series by amortizing heterogeneous debt tranches, aggregating
// them, and deriving coverage KPIs.
package capital

import (
	"capital_waterfall/pkg/core/failure"
)

// CapitalStructureConfig is the immutable capital-structure input.
type CapitalStructureConfig struct {
	InitialInvestment float64          `json:"initial_investment"`
	DebtTranches      []DebtTranche    `json:"debt_tranches"`
	WACC              *WACCAssumptions `json:"wacc,omitempty"`
}

// Clone returns a deep copy safe to hand to a concurrent caller.
func (c CapitalStructureConfig) Clone() CapitalStructureConfig {
	cp := CapitalStructureConfig{InitialInvestment: c.InitialInvestment}
	if c.DebtTranches != nil {
		cp.DebtTranches = make([]DebtTranche, len(c.DebtTranches))
		for i, t := range c.DebtTranches {
			cp.DebtTranches[i] = t.Clone()
		}
	}
	if c.WACC != nil {
		w := *c.WACC
		cp.WACC = &w
	}
	return cp
}

// LeveredCashFlowEntry is one year of levered cash flow.
type LeveredCashFlowEntry struct {
	Year         int     `json:"year"`
	UnleveredFCF float64 `json:"unlevered_fcf"`
	DebtService  float64 `json:"debt_service"` // interest + principal + exit fees
	LeveredFCF   float64 `json:"levered_fcf"`
}

// OwnerCashFlow is the N+1 series handed to the waterfall:
// index 0 is the equity call, 1..N are levered FCF.
type OwnerCashFlow []float64

// Horizon returns N (the number of operating years).
func (o OwnerCashFlow) Horizon() int {
	if len(o) == 0 {
		return 0
	}
	return len(o) - 1
}

// DebtKpi holds the coverage ratios of one year; nil means undefined.
type DebtKpi struct {
	Year       int      `json:"year"`
	DSCR       *float64 `json:"dscr"`
	SeniorDSCR *float64 `json:"senior_dscr"`
	LTV        *float64 `json:"ltv"`
}

// EquitySummary explains how the t0 equity call was built.
type EquitySummary struct {
	InitialInvestment float64 `json:"initial_investment"`
	TotalPrincipal    float64 `json:"total_principal"`
	NetProceeds       float64 `json:"net_proceeds"`
	OriginationFees   float64 `json:"origination_fees"`
	EquityInvested    float64 `json:"equity_invested"` // initial investment − net proceeds
}

// Result is the full output of the capital stage.
type Result struct {
	Horizon       int                    `json:"horizon"`
	Schedules     []TrancheSchedule      `json:"schedules"`
	Aggregate     []AggregateDebtEntry   `json:"aggregate"`
	Levered       []LeveredCashFlowEntry `json:"levered"`
	OwnerCashFlow OwnerCashFlow          `json:"owner_cash_flow"`
	KPIs          []DebtKpi              `json:"kpis"`
	Equity        EquitySummary          `json:"equity"`
	WACC          *WACCResult            `json:"wacc,omitempty"`
}

// Engine orchestrates amortization, aggregation and levered cash flow.
// It holds no state between runs.
type Engine struct{}

// NewEngine creates a capital engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Run executes the capital stage. noi and unlevered are per operating year
// and must have the same length, which defines the horizon N.
func (e *Engine) Run(cfg CapitalStructureConfig, noi, unlevered []float64) (*Result, error) {
	horizon := len(unlevered)
	if horizon == 0 {
		return nil, failure.NewConfigurationError(failure.ErrCodeInvalidHorizon,
			"unlevered cash-flow series is empty", nil)
	}
	if len(noi) != horizon {
		return nil, failure.NewConfigurationError(failure.ErrCodeInvalidHorizon,
			"NOI and unlevered FCF series differ in length",
			map[string]interface{}{"noi": len(noi), "unlevered": horizon})
	}
	if err := ValidateStructure(cfg, horizon); err != nil {
		return nil, err
	}

	// 1. Per-tranche schedules
	schedules := make([]TrancheSchedule, 0, len(cfg.DebtTranches))
	for _, tr := range cfg.DebtTranches {
		s, err := AmortizeTranche(tr, horizon)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}

	// 2. Project schedule
	agg, err := AggregateSchedules(schedules, horizon)
	if err != nil {
		return nil, err
	}

	// 3. Levered cash flow and KPIs
	levered := make([]LeveredCashFlowEntry, horizon)
	kpis := make([]DebtKpi, horizon)
	for t := 0; t < horizon; t++ {
		a := agg[t]
		ds := a.Interest + a.Principal + a.ExitFees
		levered[t] = LeveredCashFlowEntry{
			Year:         t,
			UnleveredFCF: unlevered[t],
			DebtService:  ds,
			LeveredFCF:   unlevered[t] - ds,
		}
		kpis[t] = DebtKpi{
			Year:       t,
			DSCR:       ProjectDSCR(noi[t], a),
			SeniorDSCR: SeniorDSCR(noi[t], a),
			LTV:        LTV(a, cfg.InitialInvestment),
		}
	}

	// 4. Owner cash flow
	equity := summarizeEquity(cfg)
	owner := make(OwnerCashFlow, horizon+1)
	owner[0] = -equity.EquityInvested - equity.OriginationFees
	for t := 1; t <= horizon; t++ {
		owner[t] = levered[t-1].LeveredFCF
	}

	res := &Result{
		Horizon:       horizon,
		Schedules:     schedules,
		Aggregate:     agg,
		Levered:       levered,
		OwnerCashFlow: owner,
		KPIs:          kpis,
		Equity:        equity,
	}
	if cfg.WACC != nil {
		w := CalculateCapitalWACC(cfg, *cfg.WACC)
		res.WACC = &w
	}
	return res, nil
}

// ValidateStructure checks every tranche plus cross-tranche constraints.
// It runs before any schedule is built.
func ValidateStructure(cfg CapitalStructureConfig, horizon int) error {
	if cfg.InitialInvestment < 0 {
		return failure.NewConfigurationError(failure.ErrCodeInvalidTranche,
			"initial investment must not be negative",
			map[string]interface{}{"initial_investment": cfg.InitialInvestment})
	}
	seen := make(map[string]bool, len(cfg.DebtTranches))
	for _, tr := range cfg.DebtTranches {
		if seen[tr.ID] {
			return failure.NewConfigurationError(failure.ErrCodeInvalidTranche,
				"duplicate tranche id", map[string]interface{}{"tranche": tr.ID})
		}
		seen[tr.ID] = true
		if err := tr.Validate(horizon); err != nil {
			return err
		}
	}
	return nil
}

func summarizeEquity(cfg CapitalStructureConfig) EquitySummary {
	s := EquitySummary{InitialInvestment: cfg.InitialInvestment}
	for _, tr := range cfg.DebtTranches {
		s.TotalPrincipal += tr.Principal
		s.NetProceeds += tr.NetProceeds()
		s.OriginationFees += tr.OriginationFee()
	}
	s.EquityInvested = cfg.InitialInvestment - s.NetProceeds
	return s
}
