package catalog

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter/gen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomagicln/propbridge/pkg/check"
	"github.com/nomagicln/propbridge/pkg/runner"
)

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func trivial(*runner.TraceCalls) check.Property {
	return check.ForAll(func(bool) bool { return true }, gen.Bool())
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := New()
	require.NoError(t, c.Register(Entry{Name: "sum", Tags: []string{"math", "fast"}, Description: "addition commutes", Build: trivial}))
	require.NoError(t, c.Register(Entry{Name: "order", Tags: []string{"telemetry", "slow"}, Description: "keeps order", Build: trivial}))
	require.NoError(t, c.Register(Entry{Name: "summary", Tags: []string{"Fast"}, Description: "renders a summary", Build: trivial}))
	return c
}

func TestRegister(t *testing.T) {
	c := testCatalog(t)

	assert.Error(t, c.Register(Entry{Name: "sum", Build: trivial}))
	assert.Error(t, c.Register(Entry{Name: "", Build: trivial}))
	assert.Error(t, c.Register(Entry{Name: "nobuild"}))

	e, ok := c.Get("order")
	require.True(t, ok)
	assert.Equal(t, "keeps order", e.Description)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"order", "sum", "summary"}, names(c.Entries()))
}

func TestFilter(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		expr string
		want []string
	}{
		{"", []string{"order", "sum", "summary"}},
		{`NameIs("sum")`, []string{"sum"}},
		{`NameIs("SUM")`, []string{"sum"}},
		{`NameContains("sum")`, []string{"sum", "summary"}},
		{`NameStartsWith("or")`, []string{"order"}},
		{`HasTag("fast")`, []string{"sum", "summary"}},
		{`HasTag("fast") && !NameIs("summary")`, []string{"sum"}},
		{`HasTag("slow") || NameIs("summary")`, []string{"order", "summary"}},
		{`DescriptionContains("ORDER")`, []string{"order"}},
		{`!HasTag("fast")`, []string{"order"}},
		{`HasTag("none")`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := c.Filter(tt.expr)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestFilterInvalidExpression(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Filter(`Unknown("x")`)
	assert.Error(t, err)

	_, err = c.Filter(`HasTag("fast") &&`)
	assert.Error(t, err)
}

func TestBuiltin(t *testing.T) {
	c := Builtin()

	entries := c.Entries()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.NotEmpty(t, e.Tags, e.Name)
		assert.NoError(t, e.Build(nil).Err(), e.Name)
	}

	failing, err := c.Filter(`HasTag("failing")`)
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke/below-ten", "telemetry/lateness-dropping"}, names(failing))
}

func TestBuiltinFastEntriesPass(t *testing.T) {
	c := Builtin()
	entries, err := c.Filter(`HasTag("fast") && !HasTag("failing")`)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		t.Run(e.Name, func(t *testing.T) {
			opts := append([]check.Option{
				check.MaxTest(20),
				check.RunnerConfig(runner.DefaultConfig().With(runner.Writer(func(string) {}))),
			}, e.Options...)
			assert.NoError(t, check.QuickCheckThrowOnFailure(e.Build(nil), opts...))
		})
	}
}

func TestBuiltinFailingEntryShrinks(t *testing.T) {
	e, ok := Builtin().Get("smoke/below-ten")
	require.True(t, ok)

	err := check.QuickCheckThrowOnFailure(e.Build(nil),
		check.Replay(5),
		check.RunnerConfig(runner.DefaultConfig().With(runner.Writer(func(string) {}))),
	)
	var failure *runner.FailureError
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "data := 10", failure.Counterexample)
}
