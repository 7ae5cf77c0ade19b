package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"capital_waterfall/pkg/core/capital"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/pipeline"
	"capital_waterfall/pkg/core/projection"
	"capital_waterfall/pkg/core/waterfall"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"
)

// Scenario is the on-disk document a pipeline run is built from. It keeps
// the raw field spellings (including legacy ones); ToInput resolves them.
type Scenario struct {
	Name       string         `yaml:"name" json:"name" validate:"required"`
	Operations OperationsSpec `yaml:"operations" json:"operations"`
	Capital    CapitalSpec    `yaml:"capital" json:"capital"`
	Waterfall  WaterfallSpec  `yaml:"waterfall" json:"waterfall"`
}

// OperationsSpec either lists the P&L rows or describes a growing series.
type OperationsSpec struct {
	Horizon                int                    `yaml:"horizon,omitempty" json:"horizon,omitempty" validate:"required_without=Pnl,gte=0"`
	FirstYearNOI           *float64               `yaml:"first_year_noi,omitempty" json:"first_year_noi,omitempty" validate:"required_without=Pnl"`
	Growth                 float64                `yaml:"growth,omitempty" json:"growth,omitempty" validate:"gt=-1"`
	Pnl                    []projection.AnnualPnl `yaml:"pnl,omitempty" json:"pnl,omitempty"`
	ChangeInWorkingCapital []float64              `yaml:"change_in_working_capital,omitempty" json:"change_in_working_capital,omitempty"`
}

type CapitalSpec struct {
	InitialInvestment float64       `yaml:"initial_investment" json:"initial_investment" validate:"gte=0"`
	DebtTranches      []TrancheSpec `yaml:"debt_tranches,omitempty" json:"debt_tranches,omitempty" validate:"dive"`
	WACC              *WACCSpec     `yaml:"wacc,omitempty" json:"wacc,omitempty"`
}

// TrancheSpec accepts both the legacy `amount` and `initial_principal`.
type TrancheSpec struct {
	ID                 string   `yaml:"id" json:"id" validate:"required"`
	Amount             *float64 `yaml:"amount,omitempty" json:"amount,omitempty"`
	InitialPrincipal   *float64 `yaml:"initial_principal,omitempty" json:"initial_principal,omitempty"`
	Rate               float64  `yaml:"rate" json:"rate" validate:"gte=0"`
	TermYears          int      `yaml:"term_years" json:"term_years" validate:"gte=0"`
	AmortizationYears  *int     `yaml:"amortization_years,omitempty" json:"amortization_years,omitempty"`
	Type               string   `yaml:"type" json:"type" validate:"oneof=mortgage interest_only bullet"`
	StartYear          int      `yaml:"start_year,omitempty" json:"start_year,omitempty" validate:"gte=0"`
	InterestOnlyYears  int      `yaml:"interest_only_years,omitempty" json:"interest_only_years,omitempty" validate:"gte=0"`
	RefinanceAtYear    *int     `yaml:"refinance_at_year,omitempty" json:"refinance_at_year,omitempty"`
	RefinanceAmountPct *float64 `yaml:"refinance_amount_pct,omitempty" json:"refinance_amount_pct,omitempty"`
	OriginationFeePct  float64  `yaml:"origination_fee_pct,omitempty" json:"origination_fee_pct,omitempty"`
	ExitFeePct         float64  `yaml:"exit_fee_pct,omitempty" json:"exit_fee_pct,omitempty"`
	Seniority          string   `yaml:"seniority,omitempty" json:"seniority,omitempty" validate:"omitempty,oneof=senior mezzanine subordinate"`
}

type WACCSpec struct {
	CostOfEquity      float64 `yaml:"cost_of_equity,omitempty" json:"cost_of_equity,omitempty"`
	TaxRate           float64 `yaml:"tax_rate" json:"tax_rate" validate:"gte=0,lt=1"`
	UnleveredBeta     float64 `yaml:"unlevered_beta,omitempty" json:"unlevered_beta,omitempty"`
	RiskFreeRate      float64 `yaml:"risk_free_rate,omitempty" json:"risk_free_rate,omitempty"`
	MarketRiskPremium float64 `yaml:"market_risk_premium,omitempty" json:"market_risk_premium,omitempty"`
}

type WaterfallSpec struct {
	EquityClasses []EquityClassSpec `yaml:"equity_classes" json:"equity_classes" validate:"min=1,dive"`
	Tiers         []TierSpec        `yaml:"tiers,omitempty" json:"tiers,omitempty" validate:"dive"`
}

type EquityClassSpec struct {
	ID              string   `yaml:"id" json:"id" validate:"required"`
	ContributionPct float64  `yaml:"contribution_pct" json:"contribution_pct" validate:"gte=0,lte=1"`
	DistributionPct *float64 `yaml:"distribution_pct,omitempty" json:"distribution_pct,omitempty"`
}

type TierSpec struct {
	ID                 string             `yaml:"id,omitempty" json:"id,omitempty"`
	Type               string             `yaml:"type" json:"type" validate:"oneof=return_of_capital preferred_return promote"`
	HurdleIRR          float64            `yaml:"hurdle_irr,omitempty" json:"hurdle_irr,omitempty"`
	DistributionSplits map[string]float64 `yaml:"distribution_splits,omitempty" json:"distribution_splits,omitempty"`
	EnableCatchUp      bool               `yaml:"enable_catch_up,omitempty" json:"enable_catch_up,omitempty"`
	CatchUpTargetSplit map[string]float64 `yaml:"catch_up_target_split,omitempty" json:"catch_up_target_split,omitempty"`
	Clawback           *ClawbackSpec      `yaml:"clawback,omitempty" json:"clawback,omitempty"`
}

type ClawbackSpec struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Trigger string `yaml:"trigger,omitempty" json:"trigger,omitempty"`
}

// =============================================================================
// DECODING
// =============================================================================

// Format of a scenario document.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatHJSON Format = "hjson"
)

// FormatFromPath picks the decoder by file extension. JSON is a subset of
// hjson, so .json files go through the hjson decoder.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hjson", ".json":
		return FormatHJSON, nil
	default:
		return "", fmt.Errorf("unsupported scenario extension %q", filepath.Ext(path))
	}
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	s, err := ParseScenario(data, format)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte, format Format) (*Scenario, error) {
	var s Scenario
	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalStrict(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatHJSON:
		if err := hjson.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to decode hjson: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalScenario encodes s in the given format.
func MarshalScenario(s Scenario, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatHJSON:
		return hjson.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported scenario format %q", format)
	}
}

// Validate runs the struct-tag checks plus the checks tags cannot express.
// Failures are configuration errors with code INVALID_SCENARIO.
func (s Scenario) Validate() error {
	invalid := func(msg string, details map[string]interface{}) error {
		if details == nil {
			details = map[string]interface{}{}
		}
		details["scenario"] = s.Name
		return failure.NewConfigurationError(failure.ErrCodeInvalidScenario, msg, details)
	}

	if err := newValidator().Validate(s); err != nil {
		return invalid(err.Error(), nil)
	}
	for _, t := range s.Capital.DebtTranches {
		if t.Amount != nil && t.InitialPrincipal != nil && *t.Amount != *t.InitialPrincipal {
			return invalid("tranche sets both amount and initial_principal with different values",
				map[string]interface{}{"tranche": t.ID, "amount": *t.Amount, "initial_principal": *t.InitialPrincipal})
		}
	}
	if n := len(s.Operations.ChangeInWorkingCapital); n > 0 && len(s.Operations.Pnl) > 0 && n > len(s.Operations.Pnl) {
		return invalid("change_in_working_capital is longer than the P&L",
			map[string]interface{}{"pnl": len(s.Operations.Pnl), "change_in_working_capital": n})
	}
	return nil
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// ToInput resolves the raw document into the pipeline input. This is the
// only place legacy spellings and defaults are handled:
//   - `amount` and `initial_principal` both map to the tranche principal
//   - a missing amortization period defaults to the term
//   - a missing refinance pct defaults to 1.0
//   - a missing seniority defaults to senior
func (s Scenario) ToInput() pipeline.Input {
	return pipeline.Input{
		Operations: s.Operations.toOperations(),
		Capital:    s.Capital.toCapital(),
		Waterfall:  s.Waterfall.toWaterfall(),
	}
}

func (o OperationsSpec) toOperations() projection.Operations {
	if len(o.Pnl) > 0 {
		pnl := append([]projection.AnnualPnl(nil), o.Pnl...)
		return projection.Operations{Pnl: pnl, Unlevered: projection.DeriveUnlevered(pnl, o.ChangeInWorkingCapital)}
	}
	first := 0.0
	if o.FirstYearNOI != nil {
		first = *o.FirstYearNOI
	}
	return projection.GrowingOperations(o.Horizon, first, o.Growth)
}

func (c CapitalSpec) toCapital() capital.CapitalStructureConfig {
	cfg := capital.CapitalStructureConfig{InitialInvestment: c.InitialInvestment}
	for _, t := range c.DebtTranches {
		cfg.DebtTranches = append(cfg.DebtTranches, t.Tranche())
	}
	if c.WACC != nil {
		cfg.WACC = &capital.WACCAssumptions{
			CostOfEquity:      c.WACC.CostOfEquity,
			TaxRate:           c.WACC.TaxRate,
			UnleveredBeta:     c.WACC.UnleveredBeta,
			RiskFreeRate:      c.WACC.RiskFreeRate,
			MarketRiskPremium: c.WACC.MarketRiskPremium,
		}
	}
	return cfg
}

// Tranche normalizes one tranche document with the same defaults ToInput applies.
func (t TrancheSpec) Tranche() capital.DebtTranche {
	tr := capital.DebtTranche{
		ID:                t.ID,
		Principal:         t.principal(),
		Rate:              t.Rate,
		TermYears:         t.TermYears,
		AmortizationYears: t.TermYears,
		Type:              capital.AmortizationType(t.Type),
		StartYear:         t.StartYear,
		InterestOnlyYears: t.InterestOnlyYears,
		OriginationFeePct: t.OriginationFeePct,
		ExitFeePct:        t.ExitFeePct,
		Seniority:         capital.Seniority(t.Seniority),
	}
	if t.AmortizationYears != nil {
		tr.AmortizationYears = *t.AmortizationYears
	}
	if tr.Seniority == "" {
		tr.Seniority = capital.SenioritySenior
	}
	if t.RefinanceAtYear != nil {
		y := *t.RefinanceAtYear
		tr.RefinanceAtYear = &y
	}
	pct := 1.0
	if t.RefinanceAmountPct != nil {
		pct = *t.RefinanceAmountPct
	}
	tr.RefinanceAmountPct = &pct
	return tr
}

func (t TrancheSpec) principal() float64 {
	switch {
	case t.InitialPrincipal != nil:
		return *t.InitialPrincipal
	case t.Amount != nil:
		return *t.Amount
	default:
		return 0
	}
}

func (w WaterfallSpec) toWaterfall() waterfall.Config {
	cfg := waterfall.Config{}
	for _, ec := range w.EquityClasses {
		cls := waterfall.EquityClass{ID: ec.ID, ContributionPct: ec.ContributionPct}
		if ec.DistributionPct != nil {
			p := *ec.DistributionPct
			cls.DistributionPct = &p
		}
		cfg.EquityClasses = append(cfg.EquityClasses, cls)
	}
	for _, t := range w.Tiers {
		tier := waterfall.WaterfallTier{
			ID:                 t.ID,
			Type:               waterfall.TierType(t.Type),
			HurdleIRR:          t.HurdleIRR,
			DistributionSplits: copySplits(t.DistributionSplits),
			EnableCatchUp:      t.EnableCatchUp,
			CatchUpTargetSplit: copySplits(t.CatchUpTargetSplit),
		}
		if t.Clawback != nil {
			tier.Clawback = &waterfall.ClawbackPolicy{Enabled: t.Clawback.Enabled, Trigger: t.Clawback.Trigger}
		}
		cfg.Tiers = append(cfg.Tiers, tier)
	}
	return cfg
}

func copySplits(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
