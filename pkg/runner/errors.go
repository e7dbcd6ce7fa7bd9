package runner

import (
	"errors"
	"strings"
)

// ErrCloseTimeout is returned by Close when the background reporter did not
// stop within the configured timeout.
var ErrCloseTimeout = errors.New("runner: background reporter did not stop in time")

// FailureError is returned for a falsified property when the runner is
// configured to throw on failure.
type FailureError struct {
	// Message holds the counts, the last size and the rendered counterexample.
	Message string
	// Cause is the error or panic raised by the property, if any.
	Cause error
	// Trace holds the trace lines written during the run when tracing was on.
	Trace []string

	// Tests and Shrinks count the trials and shrink steps of the run, Size
	// is the size of its last trial.
	Tests   int
	Shrinks int
	Size    int

	// Counterexample is the rendered shrunk arguments.
	Counterexample string
}

func (e *FailureError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString("\nwith error:\n")
		b.WriteString(e.Cause.Error())
	}
	if len(e.Trace) > 0 {
		b.WriteString("\nwith trace messages:")
		for _, line := range e.Trace {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}

func (e *FailureError) Unwrap() error {
	return e.Cause
}
