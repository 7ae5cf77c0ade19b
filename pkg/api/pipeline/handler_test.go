package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"capital_waterfall/pkg/core/batch"
	"capital_waterfall/pkg/core/config"
	"capital_waterfall/pkg/core/failure"
	"capital_waterfall/pkg/core/logger"
	corePipeline "capital_waterfall/pkg/core/pipeline"
	"capital_waterfall/pkg/core/report"
	"capital_waterfall/pkg/core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const dealJSON = `{
	"name": "deal",
	"operations": {"horizon": 5, "first_year_noi": 3000000},
	"capital": {
		"initial_investment": 12500000,
		"debt_tranches": [
			{"id": "senior", "amount": 10000000, "rate": 0.08, "term_years": 5, "type": "mortgage"}
		]
	},
	"waterfall": {
		"equity_classes": [{"id": "LP", "contribution_pct": 0.9}, {"id": "GP", "contribution_pct": 0.1}],
		"tiers": [
			{"id": "roc", "type": "return_of_capital"},
			{"id": "pref", "type": "preferred_return", "hurdle_irr": 0.08},
			{"id": "promote", "type": "promote", "distribution_splits": {"LP": 0.7, "GP": 0.3}}
		]
	}
}`

func newTestHandler(t *testing.T) (*Handler, store.ScenarioStore) {
	t.Helper()
	st, err := store.NewFileScenarioStore(t.TempDir())
	require.NoError(t, err)
	orch := corePipeline.NewOrchestrator()
	return NewHandler(orch, batch.NewRunner(orch, 2), st, logger.NewTestLogger(t)), st
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rec
}

func TestHandleRun_InlineScenario(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := post(t, h.HandleRun, `{"scenario": `+dealJSON+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	var rep report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 5, rep.Horizon)
	require.Len(t, rep.Partners, 2)
	assert.Equal(t, "-2500000", rep.OwnerCashFlow[0].String())
}

func TestHandleRun_StoredScenario(t *testing.T) {
	h, st := newTestHandler(t)
	s, err := config.ParseScenario([]byte(dealJSON), config.FormatHJSON)
	require.NoError(t, err)
	_, err = st.Save(context.Background(), *s)
	require.NoError(t, err)

	rec := post(t, h.HandleRun, `{"scenario_name": "deal"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post(t, h.HandleRun, `{"scenario_name": "missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRun_PipelineFailureIsTyped(t *testing.T) {
	h, _ := newTestHandler(t)
	bad := strings.Replace(dealJSON, `"term_years": 5`, `"term_years": 0`, 1)

	rec := post(t, h.HandleRun, `{"scenario": `+bad+`}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var f failure.Failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, failure.ErrCodeInvalidTranche, f.Err.Code)
	assert.Equal(t, failure.ClassConfiguration, f.Err.Class)
	require.Len(t, f.Trace, 2)
	assert.Equal(t, "failed", f.Trace[1].Status)
}

func TestHandleRun_BadRequests(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, body := range []string{
		`not json`,
		`{}`,
		`{"scenario_name": "deal", "scenario": ` + dealJSON + `}`,
		`{"scenario": {"name": "x"}}`,
		`{"scenario_name": "../etc"}`,
	} {
		rec := post(t, h.HandleRun, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestHandleBatch(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `{"scenario": ` + dealJSON + `, "variants": [
		{"name": "base"},
		{"name": "levered", "overrides": {"tranche.senior.rate": 0.11}},
		{"name": "broken", "overrides": {"tranche.senior.principal": -5}}
	]}`

	rec := post(t, h.HandleBatch, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var items []BatchItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 3)
	assert.Equal(t, "base", items[0].Variant)
	assert.NotNil(t, items[0].Report)
	assert.NotNil(t, items[1].Report)
	require.NotNil(t, items[2].Failure)
	assert.Equal(t, failure.ErrCodeInvalidTranche, items[2].Failure.Err.Code)

	rec = post(t, h.HandleBatch, `{"scenario": `+dealJSON+`, "variants": [{"overrides": {"bogus": 1}}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRun_Options(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.HandleRun(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteJSON_EncodeFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewHandler(nil, nil, nil, logger.NewZapAdapter(zap.New(core)))

	f := failure.NewFailure(failure.NewInvariantViolation(failure.ErrCodeWaterfallConservation,
		"row does not conserve", map[string]interface{}{"residual": math.NaN()}), nil)
	rec := httptest.NewRecorder()
	h.writeJSON(rec, http.StatusUnprocessableEntity, f)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to encode response")
	require.Equal(t, 1, logs.FilterMessage("failed to encode response").Len())
	entry := logs.FilterMessage("failed to encode response").All()[0]
	assert.EqualValues(t, http.StatusUnprocessableEntity, entry.ContextMap()["status"])
	assert.Contains(t, entry.ContextMap()["error"], "NaN")
}
