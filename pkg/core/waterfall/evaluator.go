package waterfall

import (
	"capital_waterfall/pkg/core/failure"
)

// TierResidual labels cash swept after the last configured tier.
const TierResidual TierType = "residual"

// TierAllocation records what one tier paid in one year.
type TierAllocation struct {
	TierID  string             `json:"tier_id"`
	Type    TierType           `json:"type"`
	Amounts map[string]float64 `json:"amounts"`
}

// AnnualWaterfallRow is the split of one year's owner cash flow.
// Σ PartnerDistributions + Σ ClawbackAdjustments ≈ OwnerCashFlow.
type AnnualWaterfallRow struct {
	Year                 int                `json:"year"`
	OwnerCashFlow        float64            `json:"owner_cash_flow"`
	PartnerDistributions map[string]float64 `json:"partner_distributions"`
	ClawbackAdjustments  map[string]float64 `json:"clawback_adjustments,omitempty"`
	Tiers                []TierAllocation   `json:"tiers,omitempty"`
}

// Parts returns distributions then clawback adjustments in partner order,
// so sums over them are order-stable.
func (r AnnualWaterfallRow) Parts(partners []string) []float64 {
	parts := make([]float64, 0, 2*len(partners))
	for _, id := range partners {
		parts = append(parts, r.PartnerDistributions[id])
	}
	for _, id := range partners {
		if adj, ok := r.ClawbackAdjustments[id]; ok {
			parts = append(parts, adj)
		}
	}
	return parts
}

// Evaluation is the raw output of one pass of the tier evaluator.
type Evaluation struct {
	Rows    []AnnualWaterfallRow
	Ledgers []*PartnerLedger
}

// evaluator holds the per-call state of one evaluation. Nothing in it
// outlives Evaluate, so two evaluations never share a ledger.
type evaluator struct {
	cfg      Config
	tiers    []WaterfallTier
	partners []string
	ledgers  []*PartnerLedger
}

// Evaluate runs the tiers over series, one year at a time. It is a pure
// function of its arguments: clawback and the conservation check are layered
// on top by Engine.Run.
func Evaluate(cfg Config, series []float64) (*Evaluation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, failure.NewConfigurationError(failure.ErrCodeInvalidHorizon,
			"owner cash-flow series is empty", nil)
	}

	ev := &evaluator{
		cfg:      cfg,
		tiers:    cfg.EffectiveTiers(),
		partners: cfg.PartnerIDs(),
		ledgers:  newLedgers(cfg, len(series)),
	}

	rows := make([]AnnualWaterfallRow, len(series))
	for t, cf := range series {
		rows[t] = ev.year(t, cf)
	}
	return &Evaluation{Rows: rows, Ledgers: ev.ledgers}, nil
}

func (ev *evaluator) year(t int, pool float64) AnnualWaterfallRow {
	row := AnnualWaterfallRow{Year: t, OwnerCashFlow: pool}
	totals := make([]float64, len(ev.partners))

	switch {
	case pool < 0:
		calls := splitByWeights(-pool, ev.contributionWeights())
		for i, amt := range calls {
			ev.ledgers[i].contribute(t, amt)
			totals[i] = -amt
		}
	case pool > 0:
		remaining := pool
		for i, tier := range ev.tiers {
			if remaining <= 0 {
				break
			}
			var paid []float64
			switch tier.Type {
			case TierReturnOfCapital:
				paid = ev.returnOfCapital(t, remaining)
			case TierPreferredReturn:
				paid = ev.preferred(t, tier, remaining)
			case TierPromote:
				paid = ev.promote(t, tier, remaining)
			}
			remaining -= ev.record(&row, totals, tier.Label(i), tier.Type, paid)
		}
		if remaining > 0 {
			sweep := splitByWeights(remaining, ev.distributionWeights())
			for i, amt := range sweep {
				ev.ledgers[i].payProfit(t, amt, false)
			}
			ev.record(&row, totals, string(TierResidual), TierResidual, sweep)
		}
	}

	row.PartnerDistributions = make(map[string]float64, len(ev.partners))
	for i, id := range ev.partners {
		row.PartnerDistributions[id] = totals[i]
	}
	return row
}

// record adds a tier's payments to the row and returns their sum.
func (ev *evaluator) record(row *AnnualWaterfallRow, totals []float64, label string, typ TierType, paid []float64) float64 {
	var total float64
	amounts := make(map[string]float64)
	for i, amt := range paid {
		if amt == 0 {
			continue
		}
		totals[i] += amt
		amounts[ev.partners[i]] = amt
		total += amt
	}
	if len(amounts) > 0 {
		row.Tiers = append(row.Tiers, TierAllocation{TierID: label, Type: typ, Amounts: amounts})
	}
	return total
}

// =============================================================================
// TIERS
// =============================================================================

// returnOfCapital pays pro-rata by each partner's unreturned capital.
func (ev *evaluator) returnOfCapital(t int, pool float64) []float64 {
	paid := make([]float64, len(ev.ledgers))
	unreturned := make([]float64, len(ev.ledgers))
	var total float64
	for i, l := range ev.ledgers {
		unreturned[i] = l.Unreturned()
		total += unreturned[i]
	}
	if total <= 0 {
		return paid
	}

	if pool >= total {
		copy(paid, unreturned)
	} else {
		paid = splitByWeights(pool, unreturned)
	}
	for i, amt := range paid {
		ev.ledgers[i].returnCapital(t, amt)
	}
	return paid
}

// preferred pays each participating partner what lifts its IRR to the
// hurdle. A short pool is shared by split weight, never above a partner's
// own need.
func (ev *evaluator) preferred(t int, tier WaterfallTier, pool float64) []float64 {
	weights := ev.tierWeights(tier.DistributionSplits)
	needs := make([]float64, len(ev.ledgers))
	var totalNeed float64
	for i, l := range ev.ledgers {
		if weights[i] <= 0 {
			continue
		}
		needs[i] = SolvePreferredDistribution(l.CashFlows, t, tier.HurdleIRR, pool).Amount
		totalNeed += needs[i]
	}
	if totalNeed <= 0 {
		return make([]float64, len(ev.ledgers))
	}

	paid := needs
	if totalNeed > pool {
		paid = waterFill(pool, needs, weights)
	}
	for i, amt := range paid {
		if amt > 0 {
			ev.ledgers[i].payProfit(t, amt, false)
		}
	}
	return paid
}

// promote runs the optional catch-up, then splits the rest of the pool.
func (ev *evaluator) promote(t int, tier WaterfallTier, pool float64) []float64 {
	paid := make([]float64, len(ev.ledgers))
	remaining := pool

	if tier.EnableCatchUp {
		catch := ev.catchUp(tier.CatchUpTargetSplit, remaining)
		for i, amt := range catch {
			if amt > 0 {
				ev.ledgers[i].payProfit(t, amt, true)
				paid[i] += amt
				remaining -= amt
			}
		}
	}

	if remaining > 0 {
		split := splitByWeights(remaining, ev.tierWeights(tier.DistributionSplits))
		for i, amt := range split {
			if amt > 0 {
				ev.ledgers[i].payProfit(t, amt, true)
				paid[i] += amt
			}
		}
	}
	return paid
}

// catchUp computes the payments that bring cumulative profit among the
// target partners to the target ratio. Profit is everything a partner has
// received except return of capital, so the target holds on profit and not
// on total distributions: a partner who put in more capital still gets its
// capital back on top of its profit share.
//
// FORMULA: X* = max_i(P_i / s_i) − Σ P_i,  x_i = s_i(Σ P + X*) − P_i
//
// When the pool is short of X*, every x_i is scaled by pool / X*.
func (ev *evaluator) catchUp(target map[string]float64, pool float64) []float64 {
	out := make([]float64, len(ev.ledgers))
	var members []int
	var profit, peak float64
	for i, id := range ev.partners {
		s := target[id]
		if s <= 0 {
			continue
		}
		members = append(members, i)
		p := ev.ledgers[i].Profit
		profit += p
		if r := p / s; r > peak {
			peak = r
		}
	}
	gap := peak - profit
	if len(members) == 0 || gap <= 0 {
		return out
	}

	scale := 1.0
	if pool < gap {
		scale = pool / gap
	}
	for _, i := range members {
		need := target[ev.partners[i]]*(profit+gap) - ev.ledgers[i].Profit
		if need > prefTolerance {
			out[i] = need * scale
		}
	}
	return out
}

// =============================================================================
// WEIGHTS
// =============================================================================

func (ev *evaluator) contributionWeights() []float64 {
	w := make([]float64, len(ev.cfg.EquityClasses))
	for i, ec := range ev.cfg.EquityClasses {
		w[i] = ec.ContributionPct
	}
	return w
}

// distributionWeights falls back to contribution pct when no partner
// declares a distribution pct.
func (ev *evaluator) distributionWeights() []float64 {
	w := make([]float64, len(ev.cfg.EquityClasses))
	declared := false
	for i, ec := range ev.cfg.EquityClasses {
		if ec.DistributionPct != nil {
			w[i] = *ec.DistributionPct
			declared = true
		}
	}
	if !declared {
		return ev.contributionWeights()
	}
	return w
}

// tierWeights uses the tier's splits, or contribution pct when none are set.
func (ev *evaluator) tierWeights(splits map[string]float64) []float64 {
	if len(splits) == 0 {
		return ev.contributionWeights()
	}
	w := make([]float64, len(ev.partners))
	for i, id := range ev.partners {
		w[i] = splits[id]
	}
	return w
}

// splitByWeights divides amount in proportion to weights. The last partner
// with a positive weight takes the remainder, so the parts sum to amount.
func splitByWeights(amount float64, weights []float64) []float64 {
	out := make([]float64, len(weights))
	var total float64
	last := -1
	for i, w := range weights {
		if w > 0 {
			total += w
			last = i
		}
	}
	if last < 0 {
		return out
	}
	var allocated float64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if i == last {
			out[i] = amount - allocated
			break
		}
		out[i] = amount * w / total
		allocated += out[i]
	}
	return out
}

// waterFill shares pool by weight among partners, capping each at caps[i]
// and re-sharing what a capped partner leaves behind.
func waterFill(pool float64, caps, weights []float64) []float64 {
	alloc := make([]float64, len(caps))
	var active []int
	for i := range caps {
		if caps[i] > 0 && weights[i] > 0 {
			active = append(active, i)
		}
	}

	remaining := pool
	for len(active) > 0 && remaining > 0 {
		var wsum float64
		for _, i := range active {
			wsum += weights[i]
		}
		var capped, open []int
		for _, i := range active {
			if caps[i]-alloc[i] <= remaining*weights[i]/wsum {
				capped = append(capped, i)
			} else {
				open = append(open, i)
			}
		}
		if len(capped) == 0 {
			share := make([]float64, len(weights))
			for _, i := range active {
				share[i] = weights[i]
			}
			for i, amt := range splitByWeights(remaining, share) {
				alloc[i] += amt
			}
			break
		}
		for _, i := range capped {
			remaining -= caps[i] - alloc[i]
			alloc[i] = caps[i]
		}
		active = open
	}
	return alloc
}
