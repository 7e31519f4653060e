package core

import (
	"fmt"

	"github.com/repset/repset/internal/core/model"
)

// ValidationRejectionError means the input was judged not to be a workout,
// or too ambiguous to trust. The caller can fix this by rewriting the input,
// so it maps to a 400-class response.
type ValidationRejectionError struct {
	Verdict model.Verdict
}

func (e *ValidationRejectionError) Error() string {
	if !e.Verdict.IsWorkout {
		return fmt.Sprintf("input is not a workout: %s", e.Verdict.Reason)
	}
	return fmt.Sprintf("input too ambiguous to parse (confidence %.2f): %s", e.Verdict.Confidence, e.Verdict.Reason)
}

// UpstreamError means the reasoning service or embedding provider failed or
// returned something unparseable. It is fatal for the run and names the
// stage for diagnosis without leaking raw upstream bodies to clients.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure during %s: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
