// Package check runs gopter properties through a runner.Runner.
//
// It reports each trial and shrink step to the runner, so that a
// runner.Tracing can count them, trace them and render the shrunk
// counterexample when the property is falsified.
package check

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"

	"github.com/nomagicln/propbridge/pkg/runner"
)

const defaultName = "property"

// Run checks p with cfg and returns the engine result. The error is
// non-nil when the property is invalid or when the configured runner
// throws on failure.
func Run(ctx context.Context, p Property, cfg Config) (*gopter.TestResult, error) {
	if p.err != nil {
		return nil, p.err
	}

	name := cfg.Name
	if name == "" {
		name = defaultName
	}

	var (
		events  runner.Runner
		tracing *runner.Tracing
		output  = cfg.Output
	)
	if tr, ok := cfg.Tracing(); ok {
		tracing = runner.NewTracing(quiet(tr.Inner(), cfg.QuietOnSuccess), tr.Config(), tr.NotationConfig(), cfg.MaxTest)
		events = tracing
		if output == nil {
			output = tr.Config().Writer
		}
	} else {
		events = quiet(cfg.Runner, cfg.QuietOnSuccess)
	}
	if output == nil {
		output = runner.StdoutWriter
	}

	r := &run{property: p, cfg: cfg, events: events, output: output}
	if observer, ok := events.(runner.SizeObserver); ok {
		r.sizes = observer
	}

	if tracing != nil {
		tracing.Attach(ctx)
		defer func() { _ = tracing.Close() }()
	}

	events.OnStartFixture(name)
	result := r.prop().Check(cfg.Parameters())
	events.OnFinished(name, result)

	if tracing != nil {
		if err := tracing.Err(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Check runs p with cfg. It returns an error only for an invalid property
// or when the configured runner throws on failure; otherwise failures are
// reported through the runner.
func Check(p Property, cfg Config) error {
	_, err := Run(context.Background(), p, cfg)
	return err
}

// Quick checks p with QuickConfig.
func Quick(p Property, opts ...Option) error {
	return Check(p, QuickConfig().With(opts...))
}

// Verbose checks p with VerboseConfig.
func Verbose(p Property, opts ...Option) error {
	return Check(p, VerboseConfig().With(opts...))
}

// QuickCheckThrowOnFailure checks p and returns a *runner.FailureError
// when it is falsified.
func QuickCheckThrowOnFailure(p Property, opts ...Option) error {
	return Check(p, throwing(QuickThrowOnFailureConfig().With(opts...)))
}

// VerboseCheckThrowOnFailure checks p printing every trial and returns a
// *runner.FailureError when it is falsified.
func VerboseCheckThrowOnFailure(p Property, opts ...Option) error {
	return Check(p, throwing(VerboseThrowOnFailureConfig().With(opts...)))
}

// QuickT checks p and fails t with the counterexample when it is falsified.
func QuickT(t testing.TB, p Property, opts ...Option) {
	t.Helper()
	if err := QuickCheckThrowOnFailure(p, opts...); err != nil {
		t.Fatal(err)
	}
}

// VerboseT is the verbose variant of QuickT.
func VerboseT(t testing.TB, p Property, opts ...Option) {
	t.Helper()
	if err := VerboseCheckThrowOnFailure(p, opts...); err != nil {
		t.Fatal(err)
	}
}

// throwing makes sure the tracing runner of c throws on failure.
func throwing(c Config) Config {
	rc := runner.DefaultConfig()
	if tr, ok := c.Tracing(); ok {
		rc = tr.Config()
	}
	return c.WithTracing(RunnerConfig(rc.With(runner.ThrowOnFailure(true))))
}

// run holds the state of one Run call. mu serialises trials so that the
// condition wrapper sees one trial at a time even with several workers.
type run struct {
	property Property
	cfg      Config
	events   runner.Runner
	sizes    runner.SizeObserver
	output   runner.TraceWriter

	mu      sync.Mutex
	numTest int
	calls   int
}

func (r *run) prop() gopter.Prop {
	checked := prop.ForAll(r.condition(), r.property.gens...)
	return func(params *gopter.GenParameters) *gopter.PropResult {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.calls = 0
		if r.sizes != nil {
			r.sizes.ObserveSize(params.MaxSize)
		}
		return checked(params)
	}
}

// condition wraps the property condition into a function with the same
// parameters returning *gopter.PropResult. The first call of a trial is
// the generated case; later calls are shrink candidates, and the failing
// ones are the accepted shrink steps.
func (r *run) condition() any {
	ct := r.property.condition.Type()
	in := make([]reflect.Type, ct.NumIn())
	for i := range in {
		in[i] = ct.In(i)
	}
	ft := reflect.FuncOf(in, []reflect.Type{propResultType}, false)

	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		result := r.property.evaluate(args)
		r.observe(args, result)
		return []reflect.Value{reflect.ValueOf(result)}
	}).Interface()
}

func (r *run) observe(args []reflect.Value, result *gopter.PropResult) {
	values := make([]any, len(args))
	for i, arg := range args {
		values[i] = arg.Interface()
	}

	r.calls++
	if r.calls == 1 {
		r.events.OnArguments(r.numTest, values)
		if r.cfg.Every != nil {
			r.emit(r.cfg.Every(r.numTest, values))
		}
		r.numTest++
		return
	}

	if !result.Success() {
		r.events.OnShrink(values)
		if r.cfg.EveryShrink != nil {
			r.emit(r.cfg.EveryShrink(values))
		}
	}
}

func (r *run) emit(line string) {
	if line != "" {
		r.output(line)
	}
}

// quietRunner drops passing results when QuietOnSuccess is set.
type quietRunner struct {
	runner.Runner
}

func quiet(inner runner.Runner, enabled bool) runner.Runner {
	if inner == nil {
		inner = runner.NopRunner{}
	}
	if !enabled {
		return inner
	}
	return quietRunner{Runner: inner}
}

func (q quietRunner) OnFinished(name string, result *gopter.TestResult) {
	if result != nil && result.Passed() {
		return
	}
	q.Runner.OnFinished(name, result)
}
