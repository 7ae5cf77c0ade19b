package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_MessageIncludesSortedDetails(t *testing.T) {
	err := NewInvariantViolation(ErrCodeDebtConservation, "principal not conserved", map[string]interface{}{
		"tranche":  "senior",
		"expected": 100.0,
		"actual":   99.5,
	})

	assert.Equal(t,
		"invariant[DEBT_CONSERVATION]: principal not conserved (actual=99.5, expected=100, tranche=senior)",
		err.Error())
}

func TestError_WithStageKeepsExistingTag(t *testing.T) {
	err := NewContractViolation("capital", ErrCodeHorizonMismatch, "bad length", nil)
	tagged := err.WithStage("waterfall")
	assert.Equal(t, "capital", tagged.Stage)

	plain := NewConfigurationError(ErrCodeInvalidTranche, "bad tranche", nil).WithStage("capital")
	assert.Equal(t, "capital", plain.Stage)
}

func TestClassification_ThroughWrapping(t *testing.T) {
	base := NewConfigurationError(ErrCodeInvalidTierGraph, "unknown partner", nil)
	wrapped := fmt.Errorf("waterfall: %w", base)

	assert.True(t, IsConfiguration(wrapped))
	assert.False(t, IsInvariant(wrapped))
	assert.False(t, IsContract(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeInvalidTierGraph))
	assert.False(t, IsConfiguration(errors.New("plain")))
}

func TestNewFailure_CopiesTraceAndClassifiesPlainErrors(t *testing.T) {
	trace := []TraceEvent{{Stage: "pnl", Status: "ok"}}
	f := NewFailure(errors.New("boom"), trace)
	trace[0].Status = "mutated"

	require.NotNil(t, f.Err)
	assert.Equal(t, ErrCodeInvalidScenario, f.Code())
	assert.Equal(t, "ok", f.Trace[0].Status)

	var e *Error
	assert.True(t, errors.As(f, &e))
}
