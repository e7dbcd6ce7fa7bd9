package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/leanovate/gopter"
	"golang.org/x/sync/errgroup"

	"github.com/nomagicln/propbridge/pkg/notation"
)

// Tracing decorates a Runner with failure reporting and trace output.
//
// A Tracing value serves a single run: OnFinished closes it. Use Fresh to
// get an unused copy with the same settings.
type Tracing struct {
	inner    Runner
	config   Config
	notation notation.Config
	maxTest  int

	mu        sync.Mutex
	lines     []string
	testStart time.Time
	numTests  int
	numShrink int
	lastSize  int
	running   bool
	shrinking bool
	message   string
	cause     error
	failed    bool

	counterexample string

	// Diagnostic state, only used while Events are bound.
	detailed       bool
	assertPending  bool
	stageShrinking bool
	stageRuns      int
	stageShrinks   int
	timerHits      int
	detailStart    time.Time

	generatedHit   atomic.Bool
	testedHit      atomic.Bool
	generatedSince atomic.Bool
	testedSince    atomic.Bool
	lastActivity   atomic.Pointer[time.Time]

	unbind    func()
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// NewTracing wraps inner. A nil inner runner means NopRunner.
func NewTracing(inner Runner, cfg Config, nc notation.Config, maxTest int) *Tracing {
	if inner == nil {
		inner = NopRunner{}
	}
	t := &Tracing{
		inner:     inner,
		config:    cfg,
		notation:  nc,
		maxTest:   maxTest,
		testStart: time.Now(),
	}
	now := time.Now()
	t.lastActivity.Store(&now)
	return t
}

// Fresh returns an unused Tracing with the same inner runner and settings.
func (t *Tracing) Fresh() *Tracing {
	return NewTracing(t.inner, t.config, t.notation, t.maxTest)
}

// Inner returns the wrapped runner.
func (t *Tracing) Inner() Runner { return t.inner }

// Config returns the runner configuration.
func (t *Tracing) Config() Config { return t.config }

// NotationConfig returns the configuration used to render counterexamples.
func (t *Tracing) NotationConfig() notation.Config { return t.notation }

// MaxTest returns the number of trials announced in trace lines.
func (t *Tracing) MaxTest() int { return t.maxTest }

// Attach prepares the runner for a run. With diagnostics enabled it binds
// the configured Events and starts the background reporter, which stops
// when ctx is cancelled or the runner is closed.
func (t *Tracing) Attach(ctx context.Context) {
	if !t.config.TraceDiagnosticsEnabled {
		return
	}

	t.mu.Lock()
	t.detailed = true
	start := time.Now()
	t.detailStart = start
	t.mu.Unlock()

	if t.config.Events != nil {
		t.unbind = t.config.Events.bind(&traceHandler{
			generated: t.onGenerated,
			tested:    t.onTested,
			timer:     t.onTimer,
		})
	}

	ctx, t.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	t.group = g
	g.Go(func() error {
		return t.report(ctx, start)
	})
}

func (t *Tracing) OnStartFixture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.inner.OnStartFixture(name)
	t.testStart = time.Now()
}

func (t *Tracing) OnArguments(numTest int, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.testStart)
	t.inner.OnArguments(numTest, args)
	t.numTests++

	if !t.detailed {
		if t.config.TraceNumberOfRuns {
			t.traceLocked(fmt.Sprintf("Ran test: %d / %d in %sms", t.numTests, t.maxTest, millis(elapsed)))
		}
		t.running = true
	}
	t.testStart = time.Now()
}

func (t *Tracing) OnShrink(args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.testStart)
	t.inner.OnShrink(args)
	t.numShrink++

	if !t.detailed {
		if t.running && t.config.TraceNumberOfRuns {
			t.running = false
			t.traceLocked(fmt.Sprintf("Failed test: %d / %d", t.numTests, t.maxTest))
		}
		if t.shrinking && t.config.TraceNumberOfRuns {
			t.traceLocked(fmt.Sprintf("Ran shrink: %d in %sms", t.numShrink, millis(elapsed)))
		}
		t.shrinking = true
	}
	t.testStart = time.Now()
}

// ObserveSize records the size parameter of the current trial.
func (t *Tracing) ObserveSize(size int) {
	t.mu.Lock()
	t.lastSize = size
	t.mu.Unlock()
}

// OnFinished reports a falsified result, forwards the result to the inner
// runner and closes the runner.
func (t *Tracing) OnFinished(name string, result *gopter.TestResult) {
	if result != nil && (result.Status == gopter.TestFailed || result.Status == gopter.TestError) {
		t.fail(result)
	}
	t.inner.OnFinished(name, result)
	_ = t.Close()
}

func (t *Tracing) fail(result *gopter.TestResult) {
	args := make([]any, len(result.Args))
	for i, arg := range result.Args {
		args[i] = arg.Arg
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed = true
	t.cause = result.Error
	t.counterexample = notation.RenderEach(args, t.notation)
	t.message = strings.Join([]string{
		fmt.Sprintf("Falsifiable, after %s (%s)", plural(t.numTests, "test"), plural(t.numShrink, "shrink")),
		fmt.Sprintf("Last step was invoked with size of %d", t.lastSize),
		"Shrunk:",
		t.counterexample,
	}, "\n")

	if !t.config.ThrowOnFailure {
		t.traceLocked(t.message)
	}
}

// Err returns the failure of the finished run when the runner throws on
// failure, and nil otherwise.
func (t *Tracing) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.failed || !t.config.ThrowOnFailure {
		return nil
	}
	err := &FailureError{
		Message:        t.message,
		Cause:          t.cause,
		Tests:          t.numTests,
		Shrinks:        t.numShrink,
		Size:           t.lastSize,
		Counterexample: t.counterexample,
	}
	if t.detailed || t.config.TraceNumberOfRuns {
		err.Trace = append([]string(nil), t.lines...)
	}
	return err
}

// Failed reports whether the finished run was falsified.
func (t *Tracing) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// Message returns the failure message of a falsified run.
func (t *Tracing) Message() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

// Lines returns a copy of every trace line written so far.
func (t *Tracing) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

// Close unbinds the Events and stops the background reporter, waiting at
// most the configured close timeout. It is safe to call more than once.
func (t *Tracing) Close() error {
	t.closeOnce.Do(func() {
		if t.unbind != nil {
			t.unbind()
		}
		if t.cancel == nil {
			return
		}
		t.cancel()

		done := make(chan error, 1)
		go func() { done <- t.group.Wait() }()

		timer := time.NewTimer(t.config.closeTimeout())
		defer timer.Stop()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.closeErr = err
			}
		case <-timer.C:
			t.closeErr = ErrCloseTimeout
		}
	})
	return t.closeErr
}

func (t *Tracing) trace(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traceLocked(line)
}

func (t *Tracing) traceLocked(line string) {
	t.lines = append(t.lines, line)
	t.config.writer()(line)
}

// touch moves the last activity time forward.
func (t *Tracing) touch() {
	for {
		prev := t.lastActivity.Load()
		now := time.Now()
		if t.lastActivity.CompareAndSwap(prev, &now) {
			return
		}
	}
}

func (t *Tracing) onGenerated(additional string) {
	t.generatedHit.Store(true)
	t.generatedSince.Store(true)
	t.touch()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.detailed {
		return
	}

	// A second generated call without a tested call in between means the
	// previous value failed and the engine moved on to shrinking.
	if t.assertPending {
		t.traceLocked(t.stageMessage("failed test", additional) + " ---> shrinking")
		t.stageShrinking = true
		t.stageRuns = 0
		t.stageShrinks++
	}

	t.assertPending = true
	t.timerHits = 0
	t.stageRuns++
	t.traceLocked(t.stageMessage("generated", additional))
	t.detailStart = time.Now()
}

func (t *Tracing) onTested(additional string) {
	t.testedHit.Store(true)
	t.testedSince.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.detailed {
		return
	}

	t.traceLocked(t.stageMessage("succeeded test", additional))
	t.assertPending = false
	t.detailStart = time.Now()
}

func (t *Tracing) onTimer(additional string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.detailed {
		return
	}

	t.timerHits++
	t.traceLocked(t.stageMessage(fmt.Sprintf("timer%d hit", t.timerHits), additional))
	t.detailStart = time.Now()
}

func (t *Tracing) stageMessage(message, additional string) string {
	stage := fmt.Sprintf("test %d / %d", t.stageRuns, t.maxTest)
	if t.stageShrinking {
		stage = fmt.Sprintf("shrink %d (attempt %d)", t.stageShrinks, t.stageRuns)
	}
	prefix := ""
	if strings.TrimSpace(additional) != "" {
		prefix = additional + ": "
	}
	return fmt.Sprintf("%s%s -> %s in %sms", prefix, stage, message, millis(time.Since(t.detailStart)))
}

// report writes elapsed-time lines on whole-second marks after start until
// ctx is done.
func (t *Tracing) report(ctx context.Context, start time.Time) error {
	warned := false
	for i := 1; ; i++ {
		wait := time.Until(start.Add(time.Duration(i) * time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.warnMissingTraces(&warned)
			return nil
		case <-timer.C:
		}

		t.trace("time passed in total is now " + millis(time.Since(start)) + "ms")

		if i > 1 {
			t.warnMissingTraces(&warned)

			tested := t.testedSince.Swap(false)
			generated := t.generatedSince.Swap(false)
			if !tested || !generated {
				idle := time.Since(*t.lastActivity.Load())
				t.trace(fmt.Sprintf("--- %d seconds have passed since any activity", int64(idle.Round(time.Second)/time.Second)))
			}
		}
	}
}

func (t *Tracing) warnMissingTraces(warned *bool) {
	if *warned || t.testedHit.Load() || t.generatedHit.Load() {
		return
	}
	*warned = true
	t.trace("--- No calls to trace call functions, make sure the code under test calls the hooks in runner.Config.Events")
}

func millis(d time.Duration) string {
	return humanize.Comma(d.Milliseconds())
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
