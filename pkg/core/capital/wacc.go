package capital

import "capital_waterfall/pkg/core/calc"

// WACCInput parameters for deriving the cost of equity when it is not
// supplied directly.
type WACCInput struct {
	UnleveredBeta     float64
	RiskFreeRate      float64
	MarketRiskPremium float64
	PreTaxCostOfDebt  float64
	TaxRate           float64
	DebtToEquityRatio float64 // Leverage (D/E)
}

// WACCResult holds the calculated rates
type WACCResult struct {
	LeveredBeta      float64 `json:"levered_beta,omitempty"`
	CostOfEquity     float64 `json:"cost_of_equity"`
	PreTaxCostOfDebt float64 `json:"pre_tax_cost_of_debt"` // weighted coupon
	CostOfDebt       float64 `json:"cost_of_debt"`         // after-tax
	WACC             float64 `json:"wacc"`
	WeightDebt       float64 `json:"weight_debt"`
	WeightEquity     float64 `json:"weight_equity"`
}

// WACCAssumptions are the side inputs of the capital-structure WACC.
// CostOfEquity == 0 means "derive it by CAPM from the beta inputs".
type WACCAssumptions struct {
	CostOfEquity      float64 `json:"cost_of_equity"`
	TaxRate           float64 `json:"tax_rate"`
	UnleveredBeta     float64 `json:"unlevered_beta,omitempty"`
	RiskFreeRate      float64 `json:"risk_free_rate,omitempty"`
	MarketRiskPremium float64 `json:"market_risk_premium,omitempty"`
}

// CalculateWACC computes the Weighted Average Cost of Capital using CAPM and Hamada Equation
func CalculateWACC(input WACCInput) WACCResult {
	// 1. Re-lever Beta (Hamada)
	leveredBeta := calc.ReleverBeta(input.UnleveredBeta, input.TaxRate, input.DebtToEquityRatio)

	// 2. Cost of Equity (CAPM)
	ke := calc.CostOfEquityCAPM(input.RiskFreeRate, leveredBeta, input.MarketRiskPremium)

	// 3. Cost of Debt (After-tax)
	kd := input.PreTaxCostOfDebt * (1 - input.TaxRate)

	// 4. Weights from D/E = x: Wd = x/(1+x), We = 1/(1+x)
	wd := input.DebtToEquityRatio / (1 + input.DebtToEquityRatio)
	we := 1.0 / (1 + input.DebtToEquityRatio)

	return WACCResult{
		LeveredBeta:      leveredBeta,
		CostOfEquity:     ke,
		PreTaxCostOfDebt: input.PreTaxCostOfDebt,
		CostOfDebt:       kd,
		WACC:             calc.WACC(input.PreTaxCostOfDebt, input.TaxRate, wd, ke, we),
		WeightDebt:       wd,
		WeightEquity:     we,
	}
}

// CalculateCapitalWACC weights the tranche stack against the investment
// basis. Pure side computation: nothing downstream consumes it.
//
// FORMULA: WACC = E% · Ke + D% · coupon · (1 − t)
//
//	D% = Σ principal / initial investment (clamped to [0,1])
//	coupon = Σ(principal × rate) / Σ principal
func CalculateCapitalWACC(cfg CapitalStructureConfig, a WACCAssumptions) WACCResult {
	var debt, couponWeighted float64
	for _, t := range cfg.DebtTranches {
		debt += t.Principal
		couponWeighted += t.Principal * t.Rate
	}

	coupon := 0.0
	if debt > 0 {
		coupon = couponWeighted / debt
	}

	wd := 0.0
	if cfg.InitialInvestment > 0 {
		wd = debt / cfg.InitialInvestment
	}
	if wd > 1 {
		wd = 1
	}
	we := 1 - wd

	res := WACCResult{
		CostOfEquity:     a.CostOfEquity,
		PreTaxCostOfDebt: coupon,
		CostOfDebt:       coupon * (1 - a.TaxRate),
		WeightDebt:       wd,
		WeightEquity:     we,
	}

	if a.CostOfEquity == 0 && a.UnleveredBeta != 0 && we > 0 {
		capm := CalculateWACC(WACCInput{
			UnleveredBeta:     a.UnleveredBeta,
			RiskFreeRate:      a.RiskFreeRate,
			MarketRiskPremium: a.MarketRiskPremium,
			PreTaxCostOfDebt:  coupon,
			TaxRate:           a.TaxRate,
			DebtToEquityRatio: wd / we,
		})
		res.LeveredBeta = capm.LeveredBeta
		res.CostOfEquity = capm.CostOfEquity
	}

	res.WACC = calc.WACC(coupon, a.TaxRate, wd, res.CostOfEquity, we)
	return res
}
