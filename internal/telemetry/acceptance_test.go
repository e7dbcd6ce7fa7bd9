package telemetry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/propbridge/internal/testutil"
	"github.com/nomagicln/propbridge/pkg/check"
	"github.com/nomagicln/propbridge/pkg/notation"
	"github.com/nomagicln/propbridge/pkg/runner"
)

var csharpWithNames = notation.Default().As(notation.FormatCSharp).IncludeParamNames()

// lateness builds the property checking fn against many devices, reporting
// progress through the diagnostic trace hooks.
func lateness(events *runner.TraceCalls, fn func([]Record, time.Duration) []Record) check.Property {
	generated, tested, timer := events.Funcs()
	g := Generator{NumDevices: 100, NumProperties: 4, MaxRandomMs: 5000}

	return check.ForAll(func(samples []Sample) (bool, error) {
		data := CreateTelemetry(samples, start, DefaultIncrementMs)
		generated()

		results := fn(data, time.Second)
		timer()

		if err := IsSupersetAndPreservesOrder(data, results); err != nil {
			return false, err
		}
		if err := CountEqual(data, results); err != nil {
			return false, err
		}
		tested()
		return true, nil
	}, g.Samples())
}

// dropLate loses every late record.
func dropLate(records []Record, threshold time.Duration) []Record {
	var out []Record
	for _, r := range MarkLate(records, threshold) {
		if !r.Late {
			out = append(out, r)
		}
	}
	return out
}

func TestManyDevices(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping acceptance property in short mode")
	}

	rec := testutil.NewTraceRecorder()
	rc := runner.TraceDiagnosticsConfig().With(runner.Writer(rec.Write))

	err := check.QuickCheckThrowOnFailure(lateness(rc.Events, MarkLate),
		check.RunnerConfig(rc),
		check.Notation(csharpWithNames),
		check.StartSize(100),
	)
	require.NoError(t, err)

	assert.Equal(t, check.DefaultMaxTest, rec.Count("-> generated in "))
	assert.Equal(t, check.DefaultMaxTest, rec.Count("-> timer1 hit in "))
	assert.Equal(t, check.DefaultMaxTest, rec.Count("-> succeeded test in "))
	assert.Zero(t, rec.Count("---> shrinking"))
	assert.Zero(t, rec.Count("No calls to trace call functions"))
	assert.False(t, rc.Events.Bound())
}

func TestManyDevicesReportsShrunkCounterexample(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping acceptance property in short mode")
	}

	rec := testutil.NewTraceRecorder()
	rc := runner.TraceDiagnosticsConfig().With(runner.Writer(rec.Write))

	err := check.QuickCheckThrowOnFailure(lateness(rc.Events, dropLate),
		check.RunnerConfig(rc),
		check.Notation(csharpWithNames),
		check.StartSize(100),
		check.MaxShrinks(5000),
		check.Replay(2024),
	)
	require.Error(t, err)

	var failure *runner.FailureError
	require.True(t, errors.As(err, &failure))
	assert.True(t, strings.HasPrefix(failure.Message, "Falsifiable, after 1 test ("))
	assert.True(t, strings.HasSuffix(failure.Message,
		"Shrunk:\nvar data = new[] {\n  new Sample(NegMs: 1001, DevID: 1, PropID: 1)\n};"))
	require.Error(t, failure.Cause)
	assert.Contains(t, failure.Cause.Error(), "record 0 (dev1/prop1 at ")

	assert.NotEmpty(t, failure.Trace)
	assert.Positive(t, rec.Count("---> shrinking"))
}
