package runner

import (
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultCloseTimeout bounds how long Close waits for the background
// reporter.
const DefaultCloseTimeout = 5 * time.Second

// TraceWriter receives one trace line at a time.
type TraceWriter func(line string)

// WriterTo returns a TraceWriter printing each line to w.
func WriterTo(w io.Writer) TraceWriter {
	return func(line string) {
		fmt.Fprintln(w, line)
	}
}

// StdoutWriter prints trace lines to standard output.
func StdoutWriter(line string) {
	fmt.Fprintln(os.Stdout, line)
}

// Config controls a Tracing runner. It is an immutable value: With
// returns a modified copy.
type Config struct {
	// TraceNumberOfRuns writes a line after every trial and shrink step.
	TraceNumberOfRuns bool

	// ThrowOnFailure returns the failure message as an error instead of
	// writing it to the trace writer.
	ThrowOnFailure bool

	// TraceDiagnosticsEnabled binds Events and starts the background
	// reporter for the duration of a run.
	TraceDiagnosticsEnabled bool

	// Events are the hooks the code under test calls.
	Events *TraceCalls

	// Writer receives trace lines. Default is StdoutWriter.
	Writer TraceWriter

	// CloseTimeout bounds the wait for the background reporter.
	CloseTimeout time.Duration
}

// Option overrides a single Config field.
type Option func(*Config)

// TraceRuns sets TraceNumberOfRuns.
func TraceRuns(v bool) Option {
	return func(c *Config) { c.TraceNumberOfRuns = v }
}

// ThrowOnFailure sets ThrowOnFailure.
func ThrowOnFailure(v bool) Option {
	return func(c *Config) { c.ThrowOnFailure = v }
}

// TraceDiagnostics sets TraceDiagnosticsEnabled.
func TraceDiagnostics(v bool) Option {
	return func(c *Config) { c.TraceDiagnosticsEnabled = v }
}

// Events replaces the hook set. A nil value keeps the current one.
func Events(tc *TraceCalls) Option {
	return func(c *Config) {
		if tc != nil {
			c.Events = tc
		}
	}
}

// Writer replaces the trace writer. A nil value keeps the current one.
func Writer(w TraceWriter) Option {
	return func(c *Config) {
		if w != nil {
			c.Writer = w
		}
	}
}

// CloseTimeout sets the background reporter shutdown bound.
func CloseTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.CloseTimeout = d
		}
	}
}

// With returns a copy of c with the given overrides applied.
func (c Config) With(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// DefaultConfig returns a configuration with every setting off and a fresh
// hook set.
func DefaultConfig() Config {
	return Config{
		Events:       NewTraceCalls(),
		Writer:       StdoutWriter,
		CloseTimeout: DefaultCloseTimeout,
	}
}

// VerboseConfig returns the default configuration with per-run tracing.
func VerboseConfig() Config {
	return DefaultConfig().With(TraceRuns(true))
}

// traceDiagnostics is shared so that code under test can reach its Events
// through TraceDiagnosticsConfig().Events.
var traceDiagnostics = DefaultConfig().With(TraceDiagnostics(true))

// TraceDiagnosticsConfig returns the configuration with detailed tracing
// enabled. Every call returns the same hook set.
func TraceDiagnosticsConfig() Config {
	return traceDiagnostics
}

func (c Config) writer() TraceWriter {
	if c.Writer == nil {
		return StdoutWriter
	}
	return c.Writer
}

func (c Config) closeTimeout() time.Duration {
	if c.CloseTimeout <= 0 {
		return DefaultCloseTimeout
	}
	return c.CloseTimeout
}
