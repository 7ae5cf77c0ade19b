// Package projection holds the upstream operating series the capital stage
// consumes: per-year consolidated P&L and unlevered free cash flow.
// The revenue/expense engines that produce them live outside this module.
package projection

// AnnualPnl is one year of the consolidated operating P&L.
type AnnualPnl struct {
	YearIndex        int     `json:"year_index" yaml:"year_index"`
	RevenueTotal     float64 `json:"revenue_total" yaml:"revenue_total"`
	OperatingExpense float64 `json:"operating_expense" yaml:"operating_expense"`
	NOI              float64 `json:"noi" yaml:"noi"`
	MaintenanceCapex float64 `json:"maintenance_capex" yaml:"maintenance_capex"`
}

// UnleveredFcf is one year of unlevered free cash flow.
type UnleveredFcf struct {
	YearIndex              int     `json:"year_index" yaml:"year_index"`
	NOI                    float64 `json:"noi" yaml:"noi"`
	MaintenanceCapex       float64 `json:"maintenance_capex" yaml:"maintenance_capex"`
	ChangeInWorkingCapital float64 `json:"change_in_working_capital" yaml:"change_in_working_capital"`
	UnleveredFreeCashFlow  float64 `json:"unlevered_free_cash_flow" yaml:"unlevered_free_cash_flow"`
}

// Operations bundles both upstream series for one scenario.
type Operations struct {
	Pnl       []AnnualPnl    `json:"pnl" yaml:"pnl"`
	Unlevered []UnleveredFcf `json:"unlevered" yaml:"unlevered"`
}

// Horizon returns the number of operating years.
func (o Operations) Horizon() int {
	return len(o.Unlevered)
}

// NOISeries extracts NOI by year position.
func (o Operations) NOISeries() []float64 {
	out := make([]float64, len(o.Pnl))
	for i, p := range o.Pnl {
		out[i] = p.NOI
	}
	return out
}

// UnleveredSeries extracts unlevered FCF by year position.
func (o Operations) UnleveredSeries() []float64 {
	out := make([]float64, len(o.Unlevered))
	for i, u := range o.Unlevered {
		out[i] = u.UnleveredFreeCashFlow
	}
	return out
}

// Clone returns a deep copy.
func (o Operations) Clone() Operations {
	cp := Operations{}
	if o.Pnl != nil {
		cp.Pnl = append([]AnnualPnl(nil), o.Pnl...)
	}
	if o.Unlevered != nil {
		cp.Unlevered = append([]UnleveredFcf(nil), o.Unlevered...)
	}
	return cp
}
