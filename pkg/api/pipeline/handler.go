package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"capital_waterfall/pkg/core/batch"
	"capital_waterfall/pkg/core/config"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/logger"
	corePipeline "capital_waterfall/pkg/core/pipeline"
	"capital_waterfall/pkg/core/report"
	"capital_waterfall/pkg/core/store"

	"github.com/google/uuid"
)

// RunRequest names a stored scenario or carries one inline.
type RunRequest struct {
	ScenarioName string           `json:"scenario_name,omitempty"`
	Scenario     *config.Scenario `json:"scenario,omitempty"`
}

// BatchRequest runs variants of one scenario.
type BatchRequest struct {
	RunRequest
	Variants []batch.Variant `json:"variants"`
}

type BatchItem struct {
	Variant string           `json:"variant"`
	Report  *report.Report   `json:"report,omitempty"`
	Failure *failure.Failure `json:"failure,omitempty"`
}

// Handler serves pipeline runs over HTTP.
type Handler struct {
	orch   *corePipeline.Orchestrator
	runner *batch.Runner
	store  store.ScenarioStore
	log    logger.Logger
}

func NewHandler(orch *corePipeline.Orchestrator, runner *batch.Runner, st store.ScenarioStore, log logger.Logger) *Handler {
	return &Handler{orch: orch, runner: runner, store: st, log: log}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeJSON marshals before touching the response so an encoding failure
// (NaN or Inf in failure details) still reaches the client as a 500.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("failed to encode response", map[string]interface{}{"status": status})
		http.Error(w, "failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.log.WithError(err).Warn("failed to write response", nil)
	}
}

// HandleRun runs one scenario and returns the report, or the typed failure
// with 422.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	runID := uuid.NewString()
	w.Header().Set("X-Run-ID", runID)
	log := h.log.WithFields(map[string]interface{}{"run_id": runID})

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scenario, status, err := h.resolve(r, req)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	log.Info("pipeline run requested", map[string]interface{}{"scenario": scenario.Name})
	res, err := h.orch.Run(scenario.ToInput())
	if err != nil {
		var f *failure.Failure
		if errors.As(err, &f) {
			h.writeJSON(w, http.StatusUnprocessableEntity, f)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, report.Build(res))
}

// HandleBatch runs every variant and returns one item per variant in order.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	scenario, status, err := h.resolve(r, req.RunRequest)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	outcomes, err := h.runner.Run(r.Context(), scenario.ToInput(), req.Variants)
	if err != nil {
		if failure.IsConfiguration(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]BatchItem, len(outcomes))
	for i, o := range outcomes {
		items[i] = BatchItem{Variant: o.Variant}
		if o.Failed() {
			var f *failure.Failure
			if errors.As(o.Err, &f) {
				items[i].Failure = f
			} else {
				items[i].Failure = failure.NewFailure(o.Err, nil)
			}
			continue
		}
		items[i].Report = report.Build(o.Result)
	}
	h.writeJSON(w, http.StatusOK, items)
}

// resolve returns the scenario to run plus the HTTP status for an error.
func (h *Handler) resolve(r *http.Request, req RunRequest) (*config.Scenario, int, error) {
	switch {
	case req.Scenario != nil && req.ScenarioName != "":
		return nil, http.StatusBadRequest, fmt.Errorf("set either scenario or scenario_name, not both")
	case req.Scenario != nil:
		if err := req.Scenario.Validate(); err != nil {
			return nil, http.StatusBadRequest, err
		}
		return req.Scenario, http.StatusOK, nil
	case req.ScenarioName != "":
		rec, err := h.store.Load(r.Context(), req.ScenarioName)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				return nil, http.StatusNotFound, err
			case errors.Is(err, store.ErrInvalidName):
				return nil, http.StatusBadRequest, err
			}
			return nil, http.StatusInternalServerError, err
		}
		return &rec.Scenario, http.StatusOK, nil
	default:
		return nil, http.StatusBadRequest, fmt.Errorf("scenario or scenario_name is required")
	}
}
