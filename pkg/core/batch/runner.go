// Package batch fans independent pipeline runs out over a bounded worker
// pool. Each variant runs on its own deep copy of the base input with a
// set of scalar overrides already sampled by the caller.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/pipeline"

	"golang.org/x/sync/errgroup"
)

// Override keys. Tranche and tier keys embed the ID: tranche.<id>.rate.
const (
	KeyInitialInvestment = "initial_investment"
	KeyUFCFScale         = "ufcf_scale"
	trancheRate          = "rate"
	tranchePrincipal     = "principal"
	tierHurdle           = "hurdle_irr"
)

// Variant is one scenario of a sweep.
type Variant struct {
	Name      string             `json:"name"`
	Overrides map[string]float64 `json:"overrides"`
}

// Outcome is the result of one variant. A pipeline failure is reported
// here, not as a batch error.
type Outcome struct {
	Variant string           `json:"variant"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Err     error            `json:"-"`
}

// Failed reports whether the variant's pipeline run failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Runner executes variants concurrently against one orchestrator.
type Runner struct {
	orch        *pipeline.Orchestrator
	concurrency int
}

// NewRunner creates a runner; concurrency < 1 means 1.
func NewRunner(orch *pipeline.Orchestrator, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{orch: orch, concurrency: concurrency}
}

// Run evaluates every variant and returns outcomes in input order.
// It returns an error only for a malformed override or a canceled context.
func (r *Runner) Run(ctx context.Context, base pipeline.Input, variants []Variant) ([]Outcome, error) {
	inputs := make([]pipeline.Input, len(variants))
	for i, v := range variants {
		in := base.Clone()
		if err := Apply(&in, v.Overrides); err != nil {
			return nil, fmt.Errorf("variant %q: %w", v.Name, err)
		}
		inputs[i] = in
	}

	outcomes := make([]Outcome, len(variants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range variants {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.orch.Run(inputs[i])
			outcomes[i] = Outcome{Variant: variants[i].Name, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// Apply writes overrides into in. Keys are applied in sorted order.
func Apply(in *pipeline.Input, overrides map[string]float64) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := overrides[key]
		switch {
		case key == KeyInitialInvestment:
			in.Capital.InitialInvestment = val
		case key == KeyUFCFScale:
			scaleOperations(in, val)
		case strings.HasPrefix(key, "tranche."):
			id, field, ok := splitKey(key, "tranche.")
			if !ok {
				return badKey(key)
			}
			if err := overrideTranche(in, id, field, val); err != nil {
				return err
			}
		case strings.HasPrefix(key, "tier."):
			id, field, ok := splitKey(key, "tier.")
			if !ok || field != tierHurdle {
				return badKey(key)
			}
			if err := overrideTier(in, id, val); err != nil {
				return err
			}
		default:
			return badKey(key)
		}
	}
	return nil
}

func scaleOperations(in *pipeline.Input, k float64) {
	for i := range in.Operations.Pnl {
		p := &in.Operations.Pnl[i]
		p.RevenueTotal *= k
		p.OperatingExpense *= k
		p.NOI *= k
		p.MaintenanceCapex *= k
	}
	for i := range in.Operations.Unlevered {
		u := &in.Operations.Unlevered[i]
		u.NOI *= k
		u.MaintenanceCapex *= k
		u.ChangeInWorkingCapital *= k
		u.UnleveredFreeCashFlow *= k
	}
}

func overrideTranche(in *pipeline.Input, id, field string, val float64) error {
	for i := range in.Capital.DebtTranches {
		tr := &in.Capital.DebtTranches[i]
		if tr.ID != id {
			continue
		}
		switch field {
		case trancheRate:
			tr.Rate = val
		case tranchePrincipal:
			tr.Principal = val
		default:
			return badKey("tranche." + id + "." + field)
		}
		return nil
	}
	return unknownTarget("tranche", id)
}

func overrideTier(in *pipeline.Input, id string, val float64) error {
	for i := range in.Waterfall.Tiers {
		if in.Waterfall.Tiers[i].ID == id {
			in.Waterfall.Tiers[i].HurdleIRR = val
			return nil
		}
	}
	return unknownTarget("tier", id)
}

// splitKey parses "<prefix><id>.<field>"; the id may itself contain dots.
func splitKey(key, prefix string) (id, field string, ok bool) {
	rest := strings.TrimPrefix(key, prefix)
	dot := strings.LastIndex(rest, ".")
	if dot <= 0 || dot == len(rest)-1 {
		return "", "", false
	}
	return rest[:dot], rest[dot+1:], true
}

func badKey(key string) error {
	return failure.NewConfigurationError(failure.ErrCodeInvalidScenario,
		"unknown override key", map[string]interface{}{"key": key})
}

func unknownTarget(kind, id string) error {
	return failure.NewConfigurationError(failure.ErrCodeInvalidScenario,
		"override targets a "+kind+" that does not exist", map[string]interface{}{kind: id})
}
