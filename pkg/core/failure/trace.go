package failure

import "fmt"

// Warning is a near-tolerance condition that was corrected in place.
// It is recorded, never raised.
type Warning struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
	Year    int       `json:"year"`
	Subject string    `json:"subject,omitempty"` // partner or tranche id
	Drift   float64   `json:"drift"`
}

// TraceEvent records one step of the audit trail collected during a run.
type TraceEvent struct {
	Stage  string `json:"stage"`
	Status string `json:"status"` // "ok" | "failed"
	Detail string `json:"detail,omitempty"`
}

// Failure is the typed failure returned by the top-level pipeline API.
// It carries the underlying error plus the partial trace collected
// before the run aborted.
type Failure struct {
	Err   *Error       `json:"error"`
	Trace []TraceEvent `json:"trace"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("pipeline failed: %s", f.Err.Error())
}

func (f *Failure) Unwrap() error { return f.Err }

// Code returns the error code of the underlying error.
func (f *Failure) Code() ErrorCode { return f.Err.Code }

// NewFailure wraps err into a Failure. Errors that are not *Error are
// classified as configuration errors with code INVALID_SCENARIO.
func NewFailure(err error, trace []TraceEvent) *Failure {
	e, ok := As(err)
	if !ok {
		e = NewConfigurationError(ErrCodeInvalidScenario, err.Error(), nil)
	}
	cp := make([]TraceEvent, len(trace))
	copy(cp, trace)
	return &Failure{Err: e, Trace: cp}
}
