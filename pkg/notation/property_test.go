package notation

import (
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nomagicln/propbridge/internal/proptest"
)

// TestPropertyStringsRoundTrip tests that Go string literals unquote to the original value.
func TestPropertyStringsRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	properties := gopter.NewProperties(proptest.FastTestParameters())
	r := NewRenderer(NewRegistry(), Default())

	properties.Property("go string literal unquotes to its input", prop.ForAll(
		func(s string) bool {
			got, err := strconv.Unquote(r.Expr(s))
			return err == nil && got == s
		},
		proptest.AnyString(),
	))

	properties.Property("csharp string literal has no raw control characters", prop.ForAll(
		func(s string) bool {
			lit := csharpSyntax{}.quote(s)
			return !strings.ContainsAny(lit, "\n\r\t\x00")
		},
		proptest.AnyString(),
	))

	properties.TestingRun(t)
}

// TestPropertyIntegersAreDecimal tests that integers render as their decimal text.
func TestPropertyIntegersAreDecimal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	properties := gopter.NewProperties(proptest.FastTestParameters())
	goR := NewRenderer(NewRegistry(), Default())
	csR := NewRenderer(NewRegistry(), Default().As(FormatCSharp))

	properties.Property("int renders as strconv.Itoa", prop.ForAll(
		func(n int) bool {
			return goR.Expr(n) == strconv.Itoa(n) && csR.Expr(n) == strconv.Itoa(n)
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

// TestPropertyListLayout tests the line structure of rendered lists.
func TestPropertyListLayout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	properties := gopter.NewProperties(proptest.FastTestParameters())
	csR := NewRenderer(NewRegistry(), Default().As(FormatCSharp))
	goR := NewRenderer(NewRegistry(), Default())

	properties.Property("csharp list has one line per element and no trailing comma", prop.ForAll(
		func(values []int) bool {
			lines := strings.Split(csR.Expr(values), "\n")
			if len(lines) != len(values)+2 {
				return false
			}
			if lines[0] != "new[] {" || lines[len(lines)-1] != "}" {
				return false
			}
			for i, line := range lines[1 : len(lines)-1] {
				last := i == len(values)-1
				if strings.HasSuffix(line, ",") == last {
					return false
				}
				if !strings.HasPrefix(line, indentUnit) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.Property("go list terminates every element with a comma", prop.ForAll(
		func(values []int) bool {
			lines := strings.Split(goR.Expr(values), "\n")
			if len(lines) != len(values)+2 {
				return false
			}
			for _, line := range lines[1 : len(lines)-1] {
				if !strings.HasSuffix(line, ",") {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}

// TestPropertyRenderEachBindings tests the binding names of multiple values.
func TestPropertyRenderEachBindings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	properties := gopter.NewProperties(proptest.FastTestParameters())
	r := NewRenderer(NewRegistry(), Default())

	properties.Property("each value gets its own indexed binding", prop.ForAll(
		func(values []int) bool {
			args := make([]any, len(values))
			for i, v := range values {
				args[i] = v
			}
			lines := strings.Split(r.RenderEach(args), "\n")
			if len(lines) != len(values) {
				return false
			}
			for i, line := range lines {
				if line != "data"+strconv.Itoa(i)+" := "+strconv.Itoa(values[i]) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()).SuchThat(func(v []int) bool { return len(v) > 1 }),
	))

	properties.TestingRun(t)
}

// TestPropertyParameterNamesWrapEveryArgument tests that named-argument mode
// labels every constructor argument.
func TestPropertyParameterNamesWrapEveryArgument(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	reg := NewRegistry()
	if err := reg.RegisterConstructor(NewReading, "DeviceId", "Value"); err != nil {
		t.Fatalf("register: %v", err)
	}
	r := NewRenderer(reg, Default().As(FormatCSharp).IncludeParamNames())

	properties := gopter.NewProperties(proptest.FastTestParameters())

	properties.Property("csharp constructor names both arguments", prop.ForAll(
		func(id string, value int) bool {
			want := "new Reading(DeviceId: " + csharpSyntax{}.quote(id) + ", Value: " + strconv.Itoa(value) + ")"
			return r.Expr(Reading{DeviceId: id, Value: value}) == want
		},
		proptest.Identifier(),
		gen.Int(),
	))

	properties.TestingRun(t)
}
