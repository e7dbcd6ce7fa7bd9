package check

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/propbridge/internal/testutil"
	"github.com/nomagicln/propbridge/pkg/notation"
	"github.com/nomagicln/propbridge/pkg/runner"
)

// recordingRunner records every run event.
type recordingRunner struct {
	mu       sync.Mutex
	started  []string
	args     [][]any
	shrinks  [][]any
	finished []*gopter.TestResult
}

func (r *recordingRunner) OnStartFixture(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

func (r *recordingRunner) OnArguments(_ int, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.args = append(r.args, args)
}

func (r *recordingRunner) OnShrink(args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shrinks = append(r.shrinks, args)
}

func (r *recordingRunner) OnFinished(_ string, result *gopter.TestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, result)
}

func belowTen() Property {
	return ForAll(func(n int) bool { return n < 10 }, gen.IntRange(0, 100))
}

func alwaysTrue() Property {
	return ForAll(func(n int) bool { return n >= 0 }, gen.IntRange(0, 100))
}

func TestForAllValidation(t *testing.T) {
	tests := []struct {
		name      string
		condition any
		gens      []gopter.Gen
	}{
		{"not a function", 42, nil},
		{"nil function", (func(int) bool)(nil), []gopter.Gen{gen.Int()}},
		{"argument count", func(a, b int) bool { return true }, []gopter.Gen{gen.Int()}},
		{"variadic", func(a ...int) bool { return true }, []gopter.Gen{gen.Int()}},
		{"no result", func(int) {}, []gopter.Gen{gen.Int()}},
		{"second result not error", func(int) (bool, int) { return true, 0 }, []gopter.Gen{gen.Int()}},
		{"unsupported result", func(int) int { return 0 }, []gopter.Gen{gen.Int()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ForAll(tt.condition, tt.gens...)
			require.Error(t, p.Err())
			assert.True(t, errors.Is(p.Err(), ErrInvalidProperty))

			err := Check(p, DefaultConfig().With(WithRunner(runner.NopRunner{})))
			assert.True(t, errors.Is(err, ErrInvalidProperty))
		})
	}

	assert.NoError(t, ForAll(func(int) (string, error) { return "", nil }, gen.Int()).Err())
	assert.NoError(t, ForAll(func(int) *gopter.PropResult { return nil }, gen.Int()).Err())
}

func TestRunPassingProperty(t *testing.T) {
	rec := &recordingRunner{}
	result, err := Run(context.Background(), alwaysTrue(), DefaultConfig().With(WithRunner(rec), MaxTest(25), Name("non-negative")))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Passed())
	assert.Equal(t, []string{"non-negative"}, rec.started)
	assert.Len(t, rec.args, 25)
	assert.Empty(t, rec.shrinks)
	require.Len(t, rec.finished, 1)
	assert.Same(t, result, rec.finished[0])
}

func TestRunDefaultName(t *testing.T) {
	rec := &recordingRunner{}
	_, err := Run(context.Background(), alwaysTrue(), DefaultConfig().With(WithRunner(rec), MaxTest(1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"property"}, rec.started)
}

func TestRunShrinkEvents(t *testing.T) {
	rec := &recordingRunner{}
	result, err := Run(context.Background(), belowTen(), DefaultConfig().With(WithRunner(rec), Replay(1)))
	require.NoError(t, err)

	assert.Equal(t, gopter.TestFailed, result.Status)
	require.Len(t, result.Args, 1)
	assert.Equal(t, 10, result.Args[0].Arg)

	require.NotEmpty(t, rec.args)
	last := rec.args[len(rec.args)-1]
	assert.GreaterOrEqual(t, last[0].(int), 10)
	if last[0].(int) > 10 {
		require.NotEmpty(t, rec.shrinks)
		assert.Equal(t, []any{10}, rec.shrinks[len(rec.shrinks)-1])
	}
	for _, shrink := range rec.shrinks {
		assert.GreaterOrEqual(t, shrink[0].(int), 10)
	}
}

func TestQuickCheckThrowOnFailure(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := QuickCheckThrowOnFailure(belowTen(),
		Replay(7),
		RunnerConfig(runner.DefaultConfig().With(runner.Writer(rec.Write))),
	)
	require.Error(t, err)

	var failure *runner.FailureError
	require.True(t, errors.As(err, &failure))
	assert.True(t, strings.HasPrefix(failure.Message, "Falsifiable, after "))
	assert.Contains(t, failure.Message, "\nLast step was invoked with size of ")
	assert.True(t, strings.HasSuffix(failure.Message, "\nShrunk:\ndata := 10"))
	assert.Nil(t, failure.Cause)
	assert.Zero(t, rec.Count("Falsifiable"))
}

func TestQuickCheckThrowOnFailureOverridesRunnerConfig(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := QuickCheckThrowOnFailure(belowTen(),
		Replay(7),
		RunnerConfig(runner.DefaultConfig().With(runner.ThrowOnFailure(false), runner.Writer(rec.Write))),
	)
	var failure *runner.FailureError
	require.True(t, errors.As(err, &failure))
}

func TestQuickCheckThrowOnFailurePasses(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := QuickCheckThrowOnFailure(alwaysTrue(), RunnerConfig(runner.DefaultConfig().With(runner.Writer(rec.Write))))
	assert.NoError(t, err)
	assert.Empty(t, rec.Lines())
}

func TestCheckWithoutThrowTracesFailure(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	cfg := DefaultConfig().With(
		WithRunner(runner.NopRunner{}),
		Replay(3),
		RunnerConfig(runner.DefaultConfig().With(runner.Writer(rec.Write))),
		Notation(notation.Default().As(notation.FormatCSharp)),
	)

	err := Check(belowTen(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count("Falsifiable"))
	assert.True(t, strings.HasSuffix(rec.Text(), "Shrunk:\nvar data = 10;"))
}

func TestVerboseCheckThrowOnFailureTracesRuns(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := VerboseCheckThrowOnFailure(alwaysTrue(),
		MaxTest(5),
		RunnerConfig(runner.VerboseConfig().With(runner.Writer(rec.Write))),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, rec.Count("Ran test: "))
	assert.Equal(t, 1, rec.Count("Ran test: 5 / 5 in "))
	assert.Equal(t, 5, rec.Count(":\n"))
}

func TestFailureTraceIncludesRunLines(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := QuickCheckThrowOnFailure(belowTen(),
		Replay(11),
		RunnerConfig(runner.VerboseConfig().With(runner.Writer(rec.Write))),
	)
	var failure *runner.FailureError
	require.True(t, errors.As(err, &failure))
	require.NotEmpty(t, failure.Trace)
	assert.True(t, strings.HasPrefix(failure.Trace[0], "Ran test: 1 / 100 in "))
	assert.Contains(t, failure.Error(), "with trace messages:")
}

func TestPanicIsReportedAsCause(t *testing.T) {
	p := ForAll(func(n int) bool {
		if n > 5 {
			panic("too big")
		}
		return true
	}, gen.IntRange(0, 100))

	err := QuickCheckThrowOnFailure(p, Replay(5), RunnerConfig(runner.DefaultConfig().With(runner.Writer(func(string) {}))))
	var failure *runner.FailureError
	require.True(t, errors.As(err, &failure))
	require.Error(t, failure.Cause)
	assert.Contains(t, failure.Cause.Error(), "check panicked: too big")
	assert.True(t, strings.HasSuffix(failure.Message, "data := 6"))
}

func TestConditionErrorIsReportedAsCause(t *testing.T) {
	sentinel := errors.New("device offline")
	p := ForAll(func(n int) (bool, error) {
		if n > 50 {
			return false, sentinel
		}
		return true, nil
	}, gen.IntRange(0, 100))

	err := QuickCheckThrowOnFailure(p, Replay(9), RunnerConfig(runner.DefaultConfig().With(runner.Writer(func(string) {}))))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
}

func TestStringConditionLabelsFailure(t *testing.T) {
	rec := &recordingRunner{}
	p := ForAll(func(n int) string {
		if n >= 10 {
			return "n must stay below ten"
		}
		return ""
	}, gen.IntRange(0, 100))

	result, err := Run(context.Background(), p, DefaultConfig().With(WithRunner(rec), Replay(2)))
	require.NoError(t, err)
	assert.Equal(t, gopter.TestFailed, result.Status)
	assert.Contains(t, result.Labels, "n must stay below ten")
}

func TestEveryWritesToOutput(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := Check(belowTen(), DefaultConfig().With(
		WithRunner(runner.NopRunner{}),
		Replay(4),
		Output(rec.Write),
		Every(func(n int, args []any) string { return "trial" }),
		EveryShrink(func(args []any) string { return "shrink" }),
	))
	require.NoError(t, err)

	assert.Positive(t, rec.Count("trial"))
	for _, line := range rec.Lines() {
		assert.Contains(t, []string{"trial", "shrink"}, line)
	}
}

func TestEveryEmptyLineIsDropped(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	err := Check(alwaysTrue(), DefaultConfig().With(
		WithRunner(runner.NopRunner{}),
		MaxTest(10),
		Output(rec.Write),
		Every(func(n int, args []any) string { return "" }),
	))
	require.NoError(t, err)
	assert.Empty(t, rec.Lines())
}

func TestEveryNumbersTrials(t *testing.T) {
	var seen []int
	err := Check(alwaysTrue(), DefaultConfig().With(
		WithRunner(runner.NopRunner{}),
		MaxTest(4),
		Every(func(n int, args []any) string {
			seen = append(seen, n)
			return ""
		}),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, seen)
}

func TestQuietOnSuccess(t *testing.T) {
	rec := &recordingRunner{}
	err := Check(alwaysTrue(), DefaultConfig().With(WithRunner(rec), QuietOnSuccess(true), MaxTest(3)))
	require.NoError(t, err)
	assert.Empty(t, rec.finished)
	assert.Len(t, rec.args, 3)

	rec = &recordingRunner{}
	err = Check(belowTen(), DefaultConfig().With(WithRunner(rec), QuietOnSuccess(true), Replay(1)))
	require.NoError(t, err)
	assert.Len(t, rec.finished, 1)
}

func TestQuietOnSuccessWithTracing(t *testing.T) {
	rec := &recordingRunner{}
	cfg := DefaultConfig().With(WithRunner(rec), QuietOnSuccess(true), MaxTest(3)).
		WithTracing(RunnerConfig(runner.DefaultConfig().With(runner.Writer(func(string) {}))))

	require.NoError(t, Check(alwaysTrue(), cfg))
	assert.Empty(t, rec.finished)
	assert.Len(t, rec.args, 3)
}

func TestTracingRunnerIsFreshPerRun(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	cfg := QuickThrowOnFailureConfig().With(
		MaxTest(3),
		RunnerConfig(runner.VerboseConfig().With(runner.Writer(rec.Write))),
	)

	require.NoError(t, Check(alwaysTrue(), cfg))
	require.NoError(t, Check(alwaysTrue(), cfg))
	assert.Equal(t, 2, rec.Count("Ran test: 1 / 3 in "))
	assert.Zero(t, rec.Count("Ran test: 4 / 3"))
}

func TestWorkersKeepEventsSerialised(t *testing.T) {
	rec := &recordingRunner{}
	result, err := Run(context.Background(), alwaysTrue(), DefaultConfig().With(WithRunner(rec), Workers(4), MaxTest(40)))
	require.NoError(t, err)
	assert.True(t, result.Passed())
	assert.Len(t, rec.args, result.Succeeded)
}

func TestQuickT(t *testing.T) {
	QuickT(t, alwaysTrue(), MaxTest(5), RunnerConfig(runner.DefaultConfig().With(runner.Writer(func(string) {}))))
}
