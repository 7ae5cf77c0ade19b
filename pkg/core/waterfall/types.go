// Package waterfall splits an owner cash-flow series among equity partners
// by evaluating ordered distribution tiers (return of capital, preferred
// return, promote with optional catch-up) plus an optional clawback true-up.
package waterfall

import (
	"fmt"
	"math"
	"sort"

	"capital_waterfall/pkg/core/failure"
)

// TierType selects the allocation rule of a tier.
type TierType string

const (
	TierReturnOfCapital TierType = "return_of_capital"
	TierPreferredReturn TierType = "preferred_return"
	TierPromote         TierType = "promote"
)

// ClawbackTriggerFinalPeriod fires the clawback true-up in the terminal row.
const ClawbackTriggerFinalPeriod = "final_period"

const pctTolerance = 1e-6

// EquityClass is one partner of the deal.
type EquityClass struct {
	ID              string   `json:"id"`
	ContributionPct float64  `json:"contribution_pct"`
	DistributionPct *float64 `json:"distribution_pct,omitempty"` // residual sweep weight; contribution pct when nil
}

// ClawbackPolicy is attached to a promote tier.
type ClawbackPolicy struct {
	Enabled bool   `json:"enabled"`
	Trigger string `json:"trigger,omitempty"` // "" means final_period
}

// WaterfallTier is one ordered allocation rule.
type WaterfallTier struct {
	ID                 string             `json:"id,omitempty"`
	Type               TierType           `json:"type"`
	HurdleIRR          float64            `json:"hurdle_irr,omitempty"`
	DistributionSplits map[string]float64 `json:"distribution_splits,omitempty"`
	EnableCatchUp      bool               `json:"enable_catch_up,omitempty"`
	CatchUpTargetSplit map[string]float64 `json:"catch_up_target_split,omitempty"`
	Clawback           *ClawbackPolicy    `json:"clawback,omitempty"`
}

// Label returns the tier ID, or a positional name when none was given.
func (t WaterfallTier) Label(index int) string {
	if t.ID != "" {
		return t.ID
	}
	return fmt.Sprintf("%s_%d", t.Type, index)
}

// ClawbackEnabled reports whether the tier asks for a final-period true-up.
func (t WaterfallTier) ClawbackEnabled() bool {
	return t.Type == TierPromote && t.Clawback != nil && t.Clawback.Enabled
}

// Config is the immutable waterfall input.
type Config struct {
	EquityClasses []EquityClass   `json:"equity_classes"`
	Tiers         []WaterfallTier `json:"tiers,omitempty"`
}

// Clone returns a deep copy; maps and pointers are not shared.
func (c Config) Clone() Config {
	cp := Config{}
	if c.EquityClasses != nil {
		cp.EquityClasses = make([]EquityClass, len(c.EquityClasses))
		for i, ec := range c.EquityClasses {
			cp.EquityClasses[i] = ec
			if ec.DistributionPct != nil {
				v := *ec.DistributionPct
				cp.EquityClasses[i].DistributionPct = &v
			}
		}
	}
	if c.Tiers != nil {
		cp.Tiers = make([]WaterfallTier, len(c.Tiers))
		for i, t := range c.Tiers {
			cp.Tiers[i] = t
			cp.Tiers[i].DistributionSplits = cloneSplits(t.DistributionSplits)
			cp.Tiers[i].CatchUpTargetSplit = cloneSplits(t.CatchUpTargetSplit)
			if t.Clawback != nil {
				cb := *t.Clawback
				cp.Tiers[i].Clawback = &cb
			}
		}
	}
	return cp
}

// EffectiveTiers returns the configured tiers, or a single promote tier
// split by contribution pct when none were given.
func (c Config) EffectiveTiers() []WaterfallTier {
	if len(c.Tiers) > 0 {
		return c.Tiers
	}
	return []WaterfallTier{{ID: "pro_rata", Type: TierPromote}}
}

// PartnerIDs returns partner IDs in declared order.
func (c Config) PartnerIDs() []string {
	ids := make([]string, len(c.EquityClasses))
	for i, ec := range c.EquityClasses {
		ids[i] = ec.ID
	}
	return ids
}

// HasPartner reports whether id names a configured equity class.
func (c Config) HasPartner(id string) bool {
	for _, ec := range c.EquityClasses {
		if ec.ID == id {
			return true
		}
	}
	return false
}

func cloneSplits(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	cp := make(map[string]float64, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the equity classes and the tier graph. It runs before
// any allocation is computed.
func (c Config) Validate() error {
	if err := c.validateEquityClasses(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		label := t.Label(i)
		if seen[label] {
			return tierError(label, "duplicate tier id", nil)
		}
		seen[label] = true
		if err := c.validateTier(label, t); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validateEquityClasses() error {
	bad := func(msg string, details map[string]interface{}) error {
		return failure.NewConfigurationError(failure.ErrCodeInvalidEquityClasses, msg, details)
	}
	if len(c.EquityClasses) == 0 {
		return bad("at least one equity class is required", nil)
	}

	ids := make(map[string]bool, len(c.EquityClasses))
	var contrib, dist float64
	anyDist := false
	for _, ec := range c.EquityClasses {
		if ec.ID == "" {
			return bad("equity class id is required", nil)
		}
		if ids[ec.ID] {
			return bad("duplicate equity class id", map[string]interface{}{"partner": ec.ID})
		}
		ids[ec.ID] = true
		if ec.ContributionPct < 0 || ec.ContributionPct > 1 {
			return bad("contribution pct must be within [0,1]", map[string]interface{}{"partner": ec.ID, "contribution_pct": ec.ContributionPct})
		}
		contrib += ec.ContributionPct
		if ec.DistributionPct != nil {
			if *ec.DistributionPct < 0 || *ec.DistributionPct > 1 {
				return bad("distribution pct must be within [0,1]", map[string]interface{}{"partner": ec.ID, "distribution_pct": *ec.DistributionPct})
			}
			anyDist = true
			dist += *ec.DistributionPct
		}
	}
	if math.Abs(contrib-1) > pctTolerance {
		return bad("contribution pcts must sum to 1", map[string]interface{}{"expected": 1.0, "actual": contrib})
	}
	if anyDist && math.Abs(dist-1) > pctTolerance {
		return bad("distribution pcts must sum to 1", map[string]interface{}{"expected": 1.0, "actual": dist})
	}
	return nil
}

func (c Config) validateTier(label string, t WaterfallTier) error {
	switch t.Type {
	case TierReturnOfCapital:
		if len(t.DistributionSplits) > 0 || t.EnableCatchUp {
			return tierError(label, "return_of_capital is pro-rata by unreturned capital and takes no splits", nil)
		}
	case TierPreferredReturn:
		if t.HurdleIRR <= -1 {
			return tierError(label, "hurdle IRR must be greater than -100%", map[string]interface{}{"hurdle_irr": t.HurdleIRR})
		}
		if t.EnableCatchUp {
			return tierError(label, "catch-up is only valid on a promote tier", nil)
		}
	case TierPromote:
		if t.EnableCatchUp {
			if len(t.CatchUpTargetSplit) == 0 {
				return tierError(label, "catch-up requires a target split", nil)
			}
			if err := c.validateSplits(label, "catch_up_target_split", t.CatchUpTargetSplit); err != nil {
				return err
			}
		}
	default:
		return tierError(label, fmt.Sprintf("unknown tier type %q", t.Type), nil)
	}

	if len(t.DistributionSplits) > 0 {
		if err := c.validateSplits(label, "distribution_splits", t.DistributionSplits); err != nil {
			return err
		}
	}

	if t.Clawback != nil && t.Clawback.Enabled {
		if t.Type != TierPromote {
			return tierError(label, "clawback is only valid on a promote tier", nil)
		}
		if t.Clawback.Trigger != "" && t.Clawback.Trigger != ClawbackTriggerFinalPeriod {
			return tierError(label, fmt.Sprintf("unsupported clawback trigger %q", t.Clawback.Trigger), nil)
		}
	}
	return nil
}

func (c Config) validateSplits(label, field string, splits map[string]float64) error {
	keys := make([]string, 0, len(splits))
	for k := range splits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sum float64
	for _, id := range keys {
		if !c.HasPartner(id) {
			return tierError(label, field+" references an unknown partner", map[string]interface{}{"partner": id})
		}
		w := splits[id]
		if w < 0 {
			return tierError(label, field+" weights must not be negative", map[string]interface{}{"partner": id, "weight": w})
		}
		sum += w
	}
	if math.Abs(sum-1) > pctTolerance {
		return tierError(label, field+" must sum to 1", map[string]interface{}{"expected": 1.0, "actual": sum})
	}
	return nil
}

func tierError(label, msg string, extra map[string]interface{}) error {
	details := map[string]interface{}{"tier": label}
	for k, v := range extra {
		details[k] = v
	}
	return failure.NewConfigurationError(failure.ErrCodeInvalidTierGraph, msg, details)
}
