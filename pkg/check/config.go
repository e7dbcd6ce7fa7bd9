package check

import (
	"fmt"
	"strings"

	"github.com/leanovate/gopter"

	"github.com/nomagicln/propbridge/pkg/notation"
	"github.com/nomagicln/propbridge/pkg/runner"
)

const (
	DefaultMaxTest     = 100
	DefaultMaxRejected = 5.0
	DefaultStartSize   = 1
	DefaultEndSize     = 100
	DefaultMaxShrinks  = 1000
)

// Config holds the settings of one property check. It is an immutable
// value: With and WithTracing return modified copies.
type Config struct {
	// MaxTest is the number of successful trials required to pass.
	MaxTest int

	// MaxRejected is the tolerated ratio of discarded to successful trials.
	MaxRejected float64

	// StartSize and EndSize bound the size parameter, which grows
	// linearly across the trials.
	StartSize int
	EndSize   int

	// MaxShrinks bounds the shrink steps per argument.
	MaxShrinks int

	// Workers runs trials on that many goroutines. Run events are still
	// delivered one trial at a time.
	Workers int

	// Seed is used when Replay is set.
	Seed   int64
	Replay bool

	// Name is reported to the runner. Empty means "property".
	Name string

	// QuietOnSuccess keeps passing results away from the inner runner.
	QuietOnSuccess bool

	// Every is called after each trial; a non-empty result is written to
	// the output.
	Every func(n int, args []any) string

	// EveryShrink is called after each shrink step; a non-empty result is
	// written to the output.
	EveryShrink func(args []any) string

	// Runner receives the run events.
	Runner runner.Runner

	// Output receives Every and EveryShrink lines. Nil means the tracing
	// runner's writer, or standard output.
	Output runner.TraceWriter

	runnerConfig   *runner.Config
	notationConfig *notation.Config
}

// Option overrides part of a Config.
type Option func(*Config)

// MaxTest sets the number of successful trials.
func MaxTest(n int) Option {
	return func(c *Config) { c.MaxTest = n }
}

// MaxRejected sets the discard ratio.
func MaxRejected(r float64) Option {
	return func(c *Config) { c.MaxRejected = r }
}

// StartSize sets the size of the first trial.
func StartSize(n int) Option {
	return func(c *Config) { c.StartSize = n }
}

// EndSize sets the size of the last trial.
func EndSize(n int) Option {
	return func(c *Config) { c.EndSize = n }
}

// MaxShrinks bounds the shrink steps per argument.
func MaxShrinks(n int) Option {
	return func(c *Config) { c.MaxShrinks = n }
}

// Workers sets the number of goroutines running trials.
func Workers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// Name sets the reported property name.
func Name(s string) Option {
	return func(c *Config) { c.Name = s }
}

// QuietOnSuccess sets QuietOnSuccess.
func QuietOnSuccess(v bool) Option {
	return func(c *Config) { c.QuietOnSuccess = v }
}

// WithRunner replaces the runner. A tracing runner installed later wraps it.
func WithRunner(r runner.Runner) Option {
	return func(c *Config) { c.Runner = r }
}

// Output sets the writer for Every and EveryShrink lines.
func Output(w runner.TraceWriter) Option {
	return func(c *Config) { c.Output = w }
}

// Replay fixes the random seed.
func Replay(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
		c.Replay = true
	}
}

// Every sets the per-trial callback.
func Every(f func(n int, args []any) string) Option {
	return func(c *Config) { c.Every = f }
}

// EveryShrink sets the per-shrink callback.
func EveryShrink(f func(args []any) string) Option {
	return func(c *Config) { c.EveryShrink = f }
}

// Notation sets how counterexamples are rendered. It installs a tracing
// runner if there is none.
func Notation(nc notation.Config) Option {
	return func(c *Config) { c.notationConfig = &nc }
}

// RunnerConfig sets the tracing runner configuration. It installs a
// tracing runner if there is none.
func RunnerConfig(rc runner.Config) Option {
	return func(c *Config) { c.runnerConfig = &rc }
}

// With returns a copy of c with the given overrides applied.
func (c Config) With(opts ...Option) Config {
	c = c.apply(opts)
	if c.runnerConfig != nil || c.notationConfig != nil {
		return c.tracing()
	}
	return c
}

// WithTracing returns a copy of c whose runner is wrapped in a
// runner.Tracing. An existing tracing runner is unwrapped first and its
// settings are kept unless opts override them.
func (c Config) WithTracing(opts ...Option) Config {
	return c.apply(opts).tracing()
}

func (c Config) apply(opts []Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Config) tracing() Config {
	inner := c.Runner
	rc := runner.DefaultConfig()
	nc := notation.Default()
	if tr, ok := inner.(*runner.Tracing); ok {
		inner, rc, nc = tr.Inner(), tr.Config(), tr.NotationConfig()
	}
	if c.runnerConfig != nil {
		rc = *c.runnerConfig
	}
	if c.notationConfig != nil {
		nc = *c.notationConfig
	}
	c.runnerConfig, c.notationConfig = nil, nil
	c.Runner = runner.NewTracing(inner, rc, nc, c.MaxTest)
	return c
}

// Tracing returns the tracing runner of c, if one is installed.
func (c Config) Tracing() (*runner.Tracing, bool) {
	tr, ok := c.Runner.(*runner.Tracing)
	return tr, ok
}

// Parameters converts c into gopter test parameters.
func (c Config) Parameters() *gopter.TestParameters {
	var params *gopter.TestParameters
	if c.Replay {
		params = gopter.DefaultTestParametersWithSeed(c.Seed)
	} else {
		params = gopter.DefaultTestParameters()
	}

	params.MinSuccessfulTests = c.MaxTest
	params.MinSize = c.StartSize
	params.MaxSize = c.EndSize
	params.MaxShrinkCount = c.MaxShrinks
	params.MaxDiscardRatio = c.MaxRejected
	params.Workers = max(c.Workers, 1)
	return params
}

// DefaultConfig returns the default settings reporting through gopter's
// console reporter.
func DefaultConfig() Config {
	return Config{
		MaxTest:     DefaultMaxTest,
		MaxRejected: DefaultMaxRejected,
		StartSize:   DefaultStartSize,
		EndSize:     DefaultEndSize,
		MaxShrinks:  DefaultMaxShrinks,
		Workers:     1,
		Runner:      runner.NewReporterRunner(nil),
	}
}

// QuickConfig returns the settings used by Quick.
func QuickConfig() Config {
	return DefaultConfig()
}

// VerboseConfig returns the settings used by Verbose: every trial and
// shrink step is printed.
func VerboseConfig() Config {
	return DefaultConfig().With(Every(verboseEvery), EveryShrink(verboseEveryShrink))
}

// QuickThrowOnFailureConfig returns QuickConfig with a tracing runner that
// returns failures as errors.
func QuickThrowOnFailureConfig() Config {
	return QuickConfig().WithTracing(RunnerConfig(runner.DefaultConfig().With(runner.ThrowOnFailure(true))))
}

// VerboseThrowOnFailureConfig returns VerboseConfig with a tracing runner
// that traces every run and returns failures as errors.
func VerboseThrowOnFailureConfig() Config {
	return VerboseConfig().WithTracing(RunnerConfig(runner.VerboseConfig().With(runner.ThrowOnFailure(true))))
}

func verboseEvery(n int, args []any) string {
	return fmt.Sprintf("%d:\n%s", n, formatArgs(args))
}

func verboseEveryShrink(args []any) string {
	return "shrink:\n" + formatArgs(args)
}

func formatArgs(args []any) string {
	lines := make([]string, len(args))
	for i, arg := range args {
		lines[i] = fmt.Sprintf("%+v", arg)
	}
	return strings.Join(lines, "\n")
}
