package notation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// goSyntax renders Go composite literals.
type goSyntax struct {
	full bool
}

func (g goSyntax) rewrite(pkgPath, name string) string {
	if !g.full || pkgPath == "" {
		return name
	}
	return packageName(pkgPath) + "." + name
}

func (g goSyntax) typeName(t reflect.Type) string {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return namedType(t, g.rewrite, "[", "]")
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + g.typeName(t.Elem())
	case reflect.Slice:
		return "[]" + g.typeName(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), g.typeName(t.Elem()))
	case reflect.Map:
		return "map[" + g.typeName(t.Key()) + "]" + g.typeName(t.Elem())
	case reflect.Chan:
		switch t.ChanDir() {
		case reflect.RecvDir:
			return "<-chan " + g.typeName(t.Elem())
		case reflect.SendDir:
			return "chan<- " + g.typeName(t.Elem())
		default:
			return "chan " + g.typeName(t.Elem())
		}
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "any"
		}
	}
	return qualifyAll(t.String(), g.rewrite)
}

func (goSyntax) null() string  { return "nil" }
func (goSyntax) cycle() string { return "nil /* cycle */" }

func (goSyntax) quote(s string) string {
	return strconv.Quote(s)
}

func (goSyntax) float(f float64, bits int) string {
	switch {
	case math.IsInf(f, 1):
		return "math.Inf(1)"
	case math.IsInf(f, -1):
		return "math.Inf(-1)"
	case math.IsNaN(f):
		return "math.NaN()"
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func (g goSyntax) complexNum(c complex128, bits int) string {
	return fmt.Sprintf("complex(%s, %s)", g.float(real(c), bits/2), g.float(imag(c), bits/2))
}

// defaultLiteralTypes are the types an untyped constant takes when assigned
// to an interface.
var defaultLiteralTypes = map[reflect.Kind]bool{
	reflect.Bool:       true,
	reflect.String:     true,
	reflect.Int:        true,
	reflect.Float64:    true,
	reflect.Complex128: true,
}

func (g goSyntax) convert(t reflect.Type, lit string, typed bool) string {
	if t.PkgPath() != "" || (typed && !defaultLiteralTypes[t.Kind()]) {
		return g.typeName(t) + "(" + lit + ")"
	}
	return lit
}

func (goSyntax) timestamp(t time.Time) string {
	return fmt.Sprintf("time.Date(%d, time.%s, %d, %d, %d, %d, %d, %s)",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), goLocation(t))
}

func goLocation(t time.Time) string {
	switch t.Location() {
	case time.UTC:
		return "time.UTC"
	case time.Local:
		return "time.Local"
	}
	name, offset := t.Zone()
	return fmt.Sprintf("time.FixedZone(%s, %d)", strconv.Quote(name), offset)
}

var durationUnits = []struct {
	unit time.Duration
	name string
}{
	{time.Hour, "time.Hour"},
	{time.Minute, "time.Minute"},
	{time.Second, "time.Second"},
	{time.Millisecond, "time.Millisecond"},
	{time.Microsecond, "time.Microsecond"},
}

func (goSyntax) duration(d time.Duration) string {
	if d != 0 {
		for _, u := range durationUnits {
			if d%u.unit == 0 {
				return fmt.Sprintf("%d * %s", int64(d/u.unit), u.name)
			}
		}
	}
	return fmt.Sprintf("time.Duration(%d)", int64(d))
}

func (g goSyntax) enum(t reflect.Type, member string) string {
	return g.rewrite(t.PkgPath(), member)
}

func (g goSyntax) list(t reflect.Type, items []string, ind string) string {
	if len(items) == 0 {
		return g.typeName(t) + "{}"
	}
	var b strings.Builder
	b.WriteString(g.typeName(t) + "{\n")
	for _, item := range items {
		b.WriteString(ind + indentUnit + item + ",\n")
	}
	b.WriteString(ind + "}")
	return b.String()
}

func (g goSyntax) dict(t reflect.Type, entries []entry, ind string) string {
	if len(entries) == 0 {
		return g.typeName(t) + "{}"
	}
	var b strings.Builder
	b.WriteString(g.typeName(t) + "{\n")
	for _, e := range entries {
		b.WriteString(ind + indentUnit + e.key + ": " + e.value + ",\n")
	}
	b.WriteString(ind + "}")
	return b.String()
}

func (g goSyntax) block(t reflect.Type, ptr bool, fields []entry, ind string) string {
	var b strings.Builder
	if ptr {
		b.WriteByte('&')
	}
	b.WriteString(g.typeName(t))
	if len(fields) == 0 {
		b.WriteString("{}")
		return b.String()
	}
	b.WriteString("{\n")
	for _, f := range fields {
		b.WriteString(ind + indentUnit + f.key + ": " + f.value + ",\n")
	}
	b.WriteString(ind + "}")
	return b.String()
}

func (g goSyntax) call(c *constructor, t reflect.Type, ptr bool, args []string) string {
	expr := g.rewrite(c.pkgPath, c.name) + "(" + strings.Join(args, ", ") + ")"
	switch {
	case c.returnsPtr && !ptr:
		return "*" + expr
	case !c.returnsPtr && ptr:
		return g.pointer(t, expr)
	}
	return expr
}

func (goSyntax) namedArg(name, value string) string {
	return "/* " + name + " */ " + value
}

// pointer takes the address of a non-addressable expression.
func (g goSyntax) pointer(elem reflect.Type, expr string) string {
	name := g.typeName(elem)
	return "func() *" + name + " { var v " + name + " = " + expr + "; return &v }()"
}

func (goSyntax) binding(name, expr string) string {
	return name + " := " + expr
}

func (goSyntax) statement(expr string) string {
	return expr
}
