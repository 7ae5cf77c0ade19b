// Package report flattens a pipeline result into the plain-data view
// downstream consumers read. Money is rounded to cents here and only here;
// the engines never round.
package report

import (
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/pipeline"

	"github.com/shopspring/decimal"
)

const (
	moneyPlaces = 2
	ratioPlaces = 4
)

// Report is the downstream view of one run.
type Report struct {
	Horizon       int                  `json:"horizon"`
	EquityCall    decimal.Decimal      `json:"equity_call"`
	Levered       []LeveredRow         `json:"levered"`
	DebtKPIs      []KpiRow             `json:"debt_kpis"`
	OwnerCashFlow []decimal.Decimal    `json:"owner_cash_flow"`
	Waterfall     []WaterfallRow       `json:"waterfall"`
	Partners      []PartnerRow         `json:"partners"`
	Warnings      []failure.Warning    `json:"warnings,omitempty"`
	Trace         []failure.TraceEvent `json:"trace"`
}

type LeveredRow struct {
	Year          int             `json:"year"`
	UnleveredFCF  decimal.Decimal `json:"unlevered_fcf"`
	DebtService   decimal.Decimal `json:"debt_service"`
	LeveredFCF    decimal.Decimal `json:"levered_fcf"`
	EndingBalance decimal.Decimal `json:"ending_balance"`
}

// KpiRow carries ratios rounded to four places; nil stays nil.
type KpiRow struct {
	Year       int              `json:"year"`
	DSCR       *decimal.Decimal `json:"dscr"`
	SeniorDSCR *decimal.Decimal `json:"senior_dscr"`
	LTV        *decimal.Decimal `json:"ltv"`
}

type WaterfallRow struct {
	Year          int                        `json:"year"`
	OwnerCashFlow decimal.Decimal            `json:"owner_cash_flow"`
	Distributions map[string]decimal.Decimal `json:"distributions"`
	Clawback      map[string]decimal.Decimal `json:"clawback,omitempty"`
}

type PartnerRow struct {
	PartnerID   string            `json:"partner_id"`
	IRR         *decimal.Decimal  `json:"irr"`
	MOIC        *decimal.Decimal  `json:"moic"`
	Contributed decimal.Decimal   `json:"contributed"`
	Distributed decimal.Decimal   `json:"distributed"`
	Promote     decimal.Decimal   `json:"promote"`
	CashFlows   []decimal.Decimal `json:"cash_flows"`
}

// Cents rounds a money amount half away from zero to two places.
func Cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(moneyPlaces)
}

func ratio(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v).Round(ratioPlaces)
	return &d
}

func centsSeries(vs []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = Cents(v)
	}
	return out
}

func centsMap(m map[string]float64) map[string]decimal.Decimal {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = Cents(v)
	}
	return out
}

// Build converts a successful run. It never mutates res.
func Build(res *pipeline.Result) *Report {
	r := &Report{
		Horizon:  res.Horizon,
		Warnings: append([]failure.Warning(nil), res.Warnings...),
		Trace:    append([]failure.TraceEvent(nil), res.Trace...),
	}

	if c := res.Capital; c != nil {
		r.EquityCall = Cents(c.Equity.EquityInvested)
		r.OwnerCashFlow = centsSeries(c.OwnerCashFlow)
		for i, lv := range c.Levered {
			row := LeveredRow{
				Year:         lv.Year,
				UnleveredFCF: Cents(lv.UnleveredFCF),
				DebtService:  Cents(lv.DebtService),
				LeveredFCF:   Cents(lv.LeveredFCF),
			}
			if i < len(c.Aggregate) {
				row.EndingBalance = Cents(c.Aggregate[i].EndingBalance)
			}
			r.Levered = append(r.Levered, row)
		}
		for _, k := range c.KPIs {
			r.DebtKPIs = append(r.DebtKPIs, KpiRow{
				Year:       k.Year,
				DSCR:       ratio(k.DSCR),
				SeniorDSCR: ratio(k.SeniorDSCR),
				LTV:        ratio(k.LTV),
			})
		}
	}

	if w := res.Waterfall; w != nil {
		for _, row := range w.Rows {
			r.Waterfall = append(r.Waterfall, WaterfallRow{
				Year:          row.Year,
				OwnerCashFlow: Cents(row.OwnerCashFlow),
				Distributions: centsMap(row.PartnerDistributions),
				Clawback:      centsMap(row.ClawbackAdjustments),
			})
		}
		for _, p := range w.Partners {
			r.Partners = append(r.Partners, PartnerRow{
				PartnerID:   p.PartnerID,
				IRR:         ratio(p.IRR),
				MOIC:        ratio(p.MOIC),
				Contributed: Cents(p.Contributed),
				Distributed: Cents(p.Distributed),
				Promote:     Cents(p.Promote),
				CashFlows:   centsSeries(p.CashFlows),
			})
		}
	}
	return r
}
