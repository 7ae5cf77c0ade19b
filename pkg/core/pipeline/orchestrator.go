package pipeline

import (
	"fmt"
	"time"

	"capital_waterfall/pkg/core/capital"
	"capital_waterfall/pkg/core/contract"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/logger"
	"capital_waterfall/pkg/core/metrics"
	"capital_waterfall/pkg/core/projection"
	"capital_waterfall/pkg/core/validate"
	"capital_waterfall/pkg/core/waterfall"
)

// StageConfig is the pre-computation configuration check.
const StageConfig = "config"

// Input is everything one pipeline run consumes.
type Input struct {
	Operations projection.Operations          `json:"operations" yaml:"operations"`
	Capital    capital.CapitalStructureConfig `json:"capital" yaml:"capital"`
	Waterfall  waterfall.Config               `json:"waterfall" yaml:"waterfall"`
}

// Clone returns a deep copy so concurrent callers never alias config.
func (in Input) Clone() Input {
	return Input{
		Operations: in.Operations.Clone(),
		Capital:    in.Capital.Clone(),
		Waterfall:  in.Waterfall.Clone(),
	}
}

// Result is the success value of a run.
type Result struct {
	Horizon   int                  `json:"horizon"`
	Capital   *capital.Result      `json:"capital"`
	Waterfall *waterfall.Result    `json:"waterfall"`
	Warnings  []failure.Warning    `json:"warnings,omitempty"`
	Trace     []failure.TraceEvent `json:"trace"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger injects a logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.rec = r }
}

// WithTolerance overrides the waterfall conservation tolerance.
func WithTolerance(tol float64) Option {
	return func(o *Orchestrator) { o.waterfall.WithTolerance(tol) }
}

// Orchestrator runs P&L → capital → waterfall and checks the contract at
// every hand-off. It holds no per-run state, so one instance can serve
// concurrent callers.
type Orchestrator struct {
	log       logger.Logger
	rec       metrics.Recorder
	capital   *capital.Engine
	waterfall *waterfall.Engine
}

// NewOrchestrator creates an orchestrator with a no-op logger and recorder.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:       logger.NewNoOpLogger(),
		rec:       metrics.NopRecorder{},
		capital:   capital.NewEngine(),
		waterfall: waterfall.NewEngine().WithTolerance(validate.DefaultTolerance),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries the audit trail of one invocation.
type run struct {
	o     *Orchestrator
	trace []failure.TraceEvent
}

func (r *run) ok(stage string, started time.Time, detail string) {
	r.o.rec.ObserveStage(stage, time.Since(started), false)
	r.trace = append(r.trace, failure.TraceEvent{Stage: stage, Status: "ok", Detail: detail})
	r.o.log.Debug("stage complete", map[string]interface{}{"stage": stage, "detail": detail})
}

func (r *run) fail(stage string, started time.Time, err error) error {
	if e, ok := failure.As(err); ok {
		err = e.WithStage(stage)
	}
	r.o.rec.ObserveStage(stage, time.Since(started), true)
	r.trace = append(r.trace, failure.TraceEvent{Stage: stage, Status: "failed", Detail: err.Error()})

	f := failure.NewFailure(err, r.trace)
	r.o.rec.Failure(stage, string(f.Code()))
	r.o.rec.RunFinished(metrics.OutcomeFailure)
	r.o.log.WithError(err).Error("pipeline failed", map[string]interface{}{
		"stage": stage,
		"code":  string(f.Code()),
		"class": string(f.Err.Class),
	})
	return f
}

// Run executes the full stage sequence on a private copy of input.
// On failure the error is a *failure.Failure carrying the partial trace;
// no partially consistent result is ever returned.
func (o *Orchestrator) Run(input Input) (*Result, error) {
	in := input.Clone()
	r := &run{o: o}

	// 1. Upstream P&L shape
	started := time.Now()
	horizon, err := contract.ValidatePnl(in.Operations)
	if err != nil {
		return nil, r.fail(contract.StagePnl, started, err)
	}
	r.ok(contract.StagePnl, started, fmt.Sprintf("horizon=%d", horizon))

	// 2. Configuration, before any computation
	started = time.Now()
	if err := capital.ValidateStructure(in.Capital, horizon); err != nil {
		return nil, r.fail(StageConfig, started, err)
	}
	if err := in.Waterfall.Validate(); err != nil {
		return nil, r.fail(StageConfig, started, err)
	}
	r.ok(StageConfig, started, fmt.Sprintf("tranches=%d partners=%d tiers=%d",
		len(in.Capital.DebtTranches), len(in.Waterfall.EquityClasses), len(in.Waterfall.EffectiveTiers())))

	// 3. Capital
	started = time.Now()
	capRes, err := o.capital.Run(in.Capital, in.Operations.NOISeries(), in.Operations.UnleveredSeries())
	if err != nil {
		return nil, r.fail(contract.StageCapital, started, err)
	}
	if err := contract.ValidateCapital(in.Capital, capRes, horizon); err != nil {
		return nil, r.fail(contract.StageCapital, started, err)
	}
	r.ok(contract.StageCapital, started, fmt.Sprintf("owner_cf_t0=%.2f", capRes.OwnerCashFlow[0]))

	// 4. Waterfall
	started = time.Now()
	wfRes, err := o.waterfall.Run(in.Waterfall, capRes.OwnerCashFlow)
	if err != nil {
		return nil, r.fail(contract.StageWaterfall, started, err)
	}
	if err := contract.ValidateWaterfall(in.Waterfall, wfRes, capRes.OwnerCashFlow); err != nil {
		return nil, r.fail(contract.StageWaterfall, started, err)
	}
	r.ok(contract.StageWaterfall, started, fmt.Sprintf("rows=%d clawback=%t", len(wfRes.Rows), wfRes.ClawbackApplied))

	warnings := append([]failure.Warning(nil), wfRes.Warnings...)
	for _, w := range warnings {
		o.log.Warn(w.Message, map[string]interface{}{
			"code":    string(w.Code),
			"stage":   w.Stage,
			"year":    w.Year,
			"subject": w.Subject,
			"drift":   w.Drift,
		})
	}
	o.rec.Warnings(contract.StageWaterfall, len(warnings))
	o.rec.RunFinished(metrics.OutcomeSuccess)
	o.log.Info("pipeline complete", map[string]interface{}{"horizon": horizon, "warnings": len(warnings)})

	return &Result{
		Horizon:   horizon,
		Capital:   capRes,
		Waterfall: wfRes,
		Warnings:  warnings,
		Trace:     r.trace,
	}, nil
}
