// Package runner receives the run events of a property check and adds
// failure reporting and optional trace diagnostics on top of them.
package runner

import (
	"github.com/leanovate/gopter"
)

// Runner receives run events from a property check.
type Runner interface {
	// OnStartFixture is called once before the first trial.
	OnStartFixture(name string)
	// OnArguments is called after each trial with the generated arguments.
	OnArguments(numTest int, args []any)
	// OnShrink is called for each successful shrink step.
	OnShrink(args []any)
	// OnFinished is called once with the final result.
	OnFinished(name string, result *gopter.TestResult)
}

// SizeObserver is implemented by runners that want the size parameter of
// each trial.
type SizeObserver interface {
	ObserveSize(size int)
}

// ReporterRunner forwards finished results to a gopter.Reporter.
type ReporterRunner struct {
	Reporter gopter.Reporter
}

// NewReporterRunner creates a runner reporting through r. A nil reporter
// means gopter's console reporter.
func NewReporterRunner(r gopter.Reporter) *ReporterRunner {
	if r == nil {
		r = gopter.ConsoleReporter(false)
	}
	return &ReporterRunner{Reporter: r}
}

func (*ReporterRunner) OnStartFixture(string) {}
func (*ReporterRunner) OnArguments(int, []any) {}
func (*ReporterRunner) OnShrink([]any) {}

func (r *ReporterRunner) OnFinished(name string, result *gopter.TestResult) {
	r.Reporter.ReportTestResult(name, result)
}

// NopRunner discards all events.
type NopRunner struct{}

func (NopRunner) OnStartFixture(string) {}
func (NopRunner) OnArguments(int, []any) {}
func (NopRunner) OnShrink([]any) {}
func (NopRunner) OnFinished(string, *gopter.TestResult) {}
