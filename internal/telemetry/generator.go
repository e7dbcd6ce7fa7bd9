package telemetry

import (
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

// Generator describes the range of generated samples.
type Generator struct {
	NumDevices    int
	NumProperties int
	MaxRandomMs   int
}

// Sample generates a single sample.
func (g Generator) Sample() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, g.MaxRandomMs),
		gen.IntRange(1, max(g.NumDevices, 1)),
		gen.IntRange(1, max(g.NumProperties, 1)),
	).Map(func(v []any) Sample {
		return NewSample(v[0].(int), v[1].(int), v[2].(int))
	}).WithShrinker(ShrinkSample)
}

// Samples generates a slice of samples. Shrinking first removes elements,
// never producing an empty slice, and then simplifies single elements.
func (g Generator) Samples() gopter.Gen {
	return gen.SliceOf(g.Sample()).WithShrinker(ShrinkSamples)
}

// ShrinkSample moves a sample towards device 1, property 1 and no delay.
func ShrinkSample(v any) gopter.Shrink {
	s := v.(Sample)
	var candidates []any
	if s.DevID != 1 {
		candidates = append(candidates, NewSample(s.NegMs, 1, s.PropID))
	}
	if s.PropID != 1 {
		candidates = append(candidates, NewSample(s.NegMs, s.DevID, 1))
	}
	if s.NegMs != 0 {
		candidates = append(candidates,
			NewSample(s.NegMs/2, s.DevID, s.PropID),
			NewSample(s.NegMs-1, s.DevID, s.PropID),
		)
	}
	return sliceShrink(candidates)
}

// ShrinkSamples drops chunks of the slice while keeping it non-empty, then
// shrinks each element in turn.
func ShrinkSamples(v any) gopter.Shrink {
	removals := gen.SliceShrinker(gopter.NoShrinker)(v).Filter(func(v any) bool {
		return len(v.([]Sample)) > 0
	})
	elements := gen.SliceShrinkerOne(ShrinkSample)(v)
	return gopter.ConcatShrinks(removals, elements)
}

func sliceShrink(values []any) gopter.Shrink {
	i := 0
	return func() (any, bool) {
		if i >= len(values) {
			return nil, false
		}
		i++
		return values[i-1], true
	}
}
