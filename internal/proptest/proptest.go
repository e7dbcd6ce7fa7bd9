// Package proptest provides property-based testing infrastructure and generators.
package proptest

import (
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
)

// FastTestParameters returns parameters for property tests that do real
// work per iteration (rendering, sqlite round trips, nested checks).
func FastTestParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	params.MaxSize = 50
	return params
}

// SeededTestParameters returns fast parameters with a fixed seed so a
// failing run can be reproduced.
func SeededTestParameters(seed int64) *gopter.TestParameters {
	params := gopter.DefaultTestParametersWithSeed(seed)
	params.MinSuccessfulTests = 100
	params.MaxSize = 50
	return params
}

// Identifier generates random valid identifiers (alphanumeric, starting with letter).
func Identifier() gopter.Gen {
	return gen.Identifier()
}

// AnyString generates any string.
func AnyString() gopter.Gen {
	return gen.AnyString()
}
