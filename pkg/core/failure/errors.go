// Package failure provides the typed errors and soft warnings shared by every
// stage of the capital + waterfall pipeline.
package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// ERROR CLASSES AND CODES
// =============================================================================

// Class groups error codes by how the caller should treat them.
// None of the classes is retryable: they all signal deterministic
// configuration or logic bugs.
type Class string

const (
	ClassConfiguration Class = "configuration"
	ClassInvariant     Class = "invariant"
	ClassContract      Class = "contract"
)

// ErrorCode represents a standardized internal error code.
type ErrorCode string

// Configuration errors (raised before any computation)
const (
	ErrCodeInvalidTranche       ErrorCode = "INVALID_TRANCHE"
	ErrCodeInvalidEquityClasses ErrorCode = "INVALID_EQUITY_CLASSES"
	ErrCodeInvalidTierGraph     ErrorCode = "INVALID_TIER_GRAPH"
	ErrCodeInvalidScenario      ErrorCode = "INVALID_SCENARIO"
	ErrCodeInvalidHorizon       ErrorCode = "INVALID_HORIZON"
)

// Invariant violations (post-computation consistency checks)
const (
	ErrCodeDebtConservation      ErrorCode = "DEBT_CONSERVATION"
	ErrCodeWaterfallConservation ErrorCode = "WATERFALL_CONSERVATION"
	ErrCodeClawbackImbalance     ErrorCode = "CLAWBACK_IMBALANCE"
)

// Contract violations (stage hand-off shape checks)
const (
	ErrCodeHorizonMismatch  ErrorCode = "HORIZON_MISMATCH"
	ErrCodeYearIndexGap     ErrorCode = "YEAR_INDEX_GAP"
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"
	ErrCodeSeriesMismatch   ErrorCode = "SERIES_MISMATCH"
)

// Soft warning codes
const (
	WarnCodeFloatDrift ErrorCode = "FLOAT_DRIFT_CORRECTED"
)

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is a structured, non-retryable pipeline error. Details carries the
// numeric context (expected vs. actual, year, tranche/partner id).
type Error struct {
	Class   Class                  `json:"class"`
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Stage   string                 `json:"stage,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Class))
	b.WriteString("[")
	b.WriteString(string(e.Code))
	b.WriteString("]")
	if e.Stage != "" {
		b.WriteString("@")
		b.WriteString(e.Stage)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// WithStage returns a copy of the error tagged with the stage it surfaced in.
// An existing stage tag is kept.
func (e *Error) WithStage(stage string) *Error {
	cp := *e
	if cp.Stage == "" {
		cp.Stage = stage
	}
	return &cp
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// NewConfigurationError creates a pre-computation configuration error.
func NewConfigurationError(code ErrorCode, message string, details map[string]interface{}) *Error {
	return &Error{
		Class:   ClassConfiguration,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewInvariantViolation creates a fatal post-computation consistency error.
func NewInvariantViolation(code ErrorCode, message string, details map[string]interface{}) *Error {
	return &Error{
		Class:   ClassInvariant,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewContractViolation creates a stage hand-off error tagged with the stage
// whose output failed the check.
func NewContractViolation(stage string, code ErrorCode, message string, details map[string]interface{}) *Error {
	return &Error{
		Class:   ClassContract,
		Code:    code,
		Message: message,
		Stage:   stage,
		Details: details,
	}
}

// =============================================================================
// CLASSIFICATION HELPERS
// =============================================================================

// As extracts a *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsConfiguration(err error) bool { return hasClass(err, ClassConfiguration) }
func IsInvariant(err error) bool     { return hasClass(err, ClassInvariant) }
func IsContract(err error) bool      { return hasClass(err, ClassContract) }

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

func hasClass(err error, class Class) bool {
	e, ok := As(err)
	return ok && e.Class == class
}
