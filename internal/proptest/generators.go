package proptest

import (
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

// PropertyName generates names usable as property and fixture names.
func PropertyName() gopter.Gen {
	return gen.Identifier()
}

// Seed generates gopter seeds.
func Seed() gopter.Gen {
	return gen.Int64Range(1, 1<<40)
}

// UTCTime generates second-precision UTC timestamps within a year of 2024-01-01.
func UTCTime() gopter.Gen {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return gen.Int64Range(0, 365*24*3600).Map(func(sec int64) time.Time {
		return start.Add(time.Duration(sec) * time.Second)
	})
}
