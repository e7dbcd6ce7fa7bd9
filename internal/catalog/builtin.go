package catalog

import (
	"slices"
	"strconv"
	"time"

	"github.com/leanovate/gopter/gen"

	"github.com/nomagicln/propbridge/internal/telemetry"
	"github.com/nomagicln/propbridge/pkg/check"
	"github.com/nomagicln/propbridge/pkg/notation"
	"github.com/nomagicln/propbridge/pkg/runner"
)

// Builtin returns a catalog of the bundled properties.
func Builtin() *Catalog {
	c := New()
	for _, e := range builtins() {
		if err := c.Register(e); err != nil {
			panic(err)
		}
	}
	return c
}

func builtins() []Entry {
	return []Entry{
		{
			Name:        "telemetry/lateness",
			Tags:        []string{"telemetry", "slow"},
			Description: "marking late readings keeps every record in order",
			Build:       lateness(telemetry.MarkLate),
			Options:     []check.Option{check.StartSize(100), check.EndSize(100)},
		},
		{
			Name:        "telemetry/lateness-dropping",
			Tags:        []string{"telemetry", "slow", "failing"},
			Description: "dropping late readings loses records and shrinks to one late sample",
			Build:       lateness(dropLate),
			Options:     []check.Option{check.StartSize(100), check.EndSize(100), check.MaxShrinks(5000)},
		},
		{
			Name:        "notation/go-strings",
			Tags:        []string{"notation", "fast"},
			Description: "Go string literals unquote to their input",
			Build: func(*runner.TraceCalls) check.Property {
				return check.ForAll(func(s string) bool {
					got, err := strconv.Unquote(notation.NewRenderer(nil, notation.Default()).Expr(s))
					return err == nil && got == s
				}, gen.AnyString())
			},
		},
		{
			Name:        "notation/idempotent",
			Tags:        []string{"notation", "fast"},
			Description: "rendering the same value twice gives the same text",
			Build: func(*runner.TraceCalls) check.Property {
				cfg := notation.Default().As(notation.FormatCSharp).IncludeParamNames()
				return check.ForAll(func(samples []telemetry.Sample) bool {
					return notation.Render(samples, cfg) == notation.Render(samples, cfg)
				}, telemetry.Generator{NumDevices: 5, NumProperties: 2, MaxRandomMs: 100}.Samples())
			},
		},
		{
			Name:        "smoke/reverse",
			Tags:        []string{"smoke", "fast"},
			Description: "reversing a slice twice restores it",
			Build: func(*runner.TraceCalls) check.Property {
				return check.ForAll(func(values []int) bool {
					reversed := slices.Clone(values)
					slices.Reverse(reversed)
					slices.Reverse(reversed)
					return slices.Equal(values, reversed)
				}, gen.SliceOf(gen.Int()))
			},
		},
		{
			Name:        "smoke/below-ten",
			Tags:        []string{"smoke", "fast", "failing"},
			Description: "a deliberately false property that shrinks to 10",
			Build: func(*runner.TraceCalls) check.Property {
				return check.ForAll(func(n int) bool { return n < 10 }, gen.IntRange(0, 100))
			},
		},
	}
}

var epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// lateness checks fn against many devices, reporting progress through the
// diagnostic hooks.
func lateness(fn func([]telemetry.Record, time.Duration) []telemetry.Record) func(*runner.TraceCalls) check.Property {
	return func(events *runner.TraceCalls) check.Property {
		generated, tested, timer := events.Funcs()
		g := telemetry.Generator{NumDevices: 100, NumProperties: 4, MaxRandomMs: 5000}

		return check.ForAll(func(samples []telemetry.Sample) (bool, error) {
			data := telemetry.CreateTelemetry(samples, epoch, telemetry.DefaultIncrementMs)
			generated()

			results := fn(data, time.Second)
			timer()

			if err := telemetry.IsSupersetAndPreservesOrder(data, results); err != nil {
				return false, err
			}
			if err := telemetry.CountEqual(data, results); err != nil {
				return false, err
			}
			tested()
			return true, nil
		}, g.Samples())
	}
}

// dropLate loses every late record.
func dropLate(records []telemetry.Record, threshold time.Duration) []telemetry.Record {
	var out []telemetry.Record
	for _, r := range telemetry.MarkLate(records, threshold) {
		if !r.Late {
			out = append(out, r)
		}
	}
	return out
}
