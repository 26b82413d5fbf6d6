package analysis

import "fmt"

// InsufficientDataError indicates the bar window is shorter than an
// analyzer's minimum requirement. The orchestrator converts it into an
// omitted contribution instead of failing the call.
type InsufficientDataError struct {
	Op   string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d bars, have %d", e.Op, e.Need, e.Have)
}

// DegeneracyError indicates a computation could not produce a meaningful
// value, e.g. a zero-variance window making a ratio undefined.
type DegeneracyError struct {
	Op     string
	Reason string
}

func (e *DegeneracyError) Error() string {
	return fmt.Sprintf("%s: degenerate computation: %s", e.Op, e.Reason)
}

func insufficientData(op string, need, have int) error {
	return &InsufficientDataError{Op: op, Need: need, Have: have}
}

func degenerate(op, reason string) error {
	return &DegeneracyError{Op: op, Reason: reason}
}
