package runner

import (
	"strings"
	"sync/atomic"
)

// TraceCall is a hook invoked from the code under test.
type TraceCall func(additional ...string)

// TraceCalls lets the code under test narrate its progress to the runner
// that is currently executing. It is kept apart from Config so that a
// binding does not follow copies of the configuration.
//
// A Tracing runner binds itself when it is attached and restores the
// previous binding when it finishes. Calls made while nothing is bound are
// dropped.
type TraceCalls struct {
	handler atomic.Pointer[traceHandler]
}

type traceHandler struct {
	generated func(string)
	tested    func(string)
	timer     func(string)
}

// NewTraceCalls creates an unbound hook set.
func NewTraceCalls() *TraceCalls {
	return &TraceCalls{}
}

// Generated reports that the code under test received a generated value.
func (tc *TraceCalls) Generated(additional ...string) {
	if h := tc.current(); h != nil {
		h.generated(strings.Join(additional, " "))
	}
}

// Tested reports that the code under test finished checking a value.
func (tc *TraceCalls) Tested(additional ...string) {
	if h := tc.current(); h != nil {
		h.tested(strings.Join(additional, " "))
	}
}

// Timer reports an intermediate checkpoint inside one trial.
func (tc *TraceCalls) Timer(additional ...string) {
	if h := tc.current(); h != nil {
		h.timer(strings.Join(additional, " "))
	}
}

// Funcs returns the three hooks as plain functions.
func (tc *TraceCalls) Funcs() (generated, tested, timer TraceCall) {
	return tc.Generated, tc.Tested, tc.Timer
}

// Bound reports whether a runner is currently listening.
func (tc *TraceCalls) Bound() bool {
	return tc.current() != nil
}

func (tc *TraceCalls) current() *traceHandler {
	if tc == nil {
		return nil
	}
	return tc.handler.Load()
}

// bind installs h and returns a function restoring the previous handler.
// The restore is a no-op if another runner has bound in the meantime.
func (tc *TraceCalls) bind(h *traceHandler) func() {
	prev := tc.handler.Swap(h)
	return func() {
		tc.handler.CompareAndSwap(h, prev)
	}
}
