package projection

// DeriveUnlevered builds the unlevered FCF series from P&L rows.
//
// FORMULA: UFCF = NOI - MaintenanceCapex - ΔWorkingCapital
//
// changeInWC may be shorter than pnl; missing years are treated as zero.
func DeriveUnlevered(pnl []AnnualPnl, changeInWC []float64) []UnleveredFcf {
	out := make([]UnleveredFcf, len(pnl))
	for i, p := range pnl {
		wc := 0.0
		if i < len(changeInWC) {
			wc = changeInWC[i]
		}
		out[i] = UnleveredFcf{
			YearIndex:              p.YearIndex,
			NOI:                    p.NOI,
			MaintenanceCapex:       p.MaintenanceCapex,
			ChangeInWorkingCapital: wc,
			UnleveredFreeCashFlow:  p.NOI - p.MaintenanceCapex - wc,
		}
	}
	return out
}

// FlatOperations returns a horizon of identical years where NOI equals the
// unlevered FCF. Used for quick scenarios and tests.
func FlatOperations(horizon int, annualFCF float64) Operations {
	return GrowingOperations(horizon, annualFCF, 0)
}

// GrowingOperations returns a horizon where NOI (and unlevered FCF) grows at
// a constant rate from the first-year value.
//
// FORMULA: NOI_t = NOI_{t-1} × (1 + g)
func GrowingOperations(horizon int, firstYear, growth float64) Operations {
	pnl := make([]AnnualPnl, horizon)
	noi := firstYear
	for t := 0; t < horizon; t++ {
		pnl[t] = AnnualPnl{YearIndex: t, RevenueTotal: noi, NOI: noi}
		noi = noi * (1 + growth)
	}
	return Operations{Pnl: pnl, Unlevered: DeriveUnlevered(pnl, nil)}
}
