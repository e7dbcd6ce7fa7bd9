package notation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// csharpSyntax renders C# object and collection initializers.
type csharpSyntax struct {
	full bool
}

var csharpBuiltins = map[reflect.Kind]string{
	reflect.Bool:       "bool",
	reflect.String:     "string",
	reflect.Int:        "int",
	reflect.Int8:       "sbyte",
	reflect.Int16:      "short",
	reflect.Int32:      "int",
	reflect.Int64:      "long",
	reflect.Uint:       "uint",
	reflect.Uint8:      "byte",
	reflect.Uint16:     "ushort",
	reflect.Uint32:     "uint",
	reflect.Uint64:     "ulong",
	reflect.Uintptr:    "nuint",
	reflect.Float32:    "float",
	reflect.Float64:    "double",
	reflect.Complex64:  "Complex",
	reflect.Complex128: "Complex",
	reflect.Interface:  "object",
}

func (c csharpSyntax) rewrite(pkgPath, name string) string {
	if !c.full || pkgPath == "" {
		return name
	}
	return pkgPath + "." + name
}

func (c csharpSyntax) typeName(t reflect.Type) string {
	switch t {
	case timeType:
		return "DateTimeOffset"
	case durationType:
		return "TimeSpan"
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return namedType(t, c.rewrite, "<", ">")
	}

	switch t.Kind() {
	case reflect.Pointer:
		return c.typeName(t.Elem())
	case reflect.Slice, reflect.Array:
		return c.typeName(t.Elem()) + "[]"
	case reflect.Map:
		return "Dictionary<" + c.typeName(t.Key()) + ", " + c.typeName(t.Elem()) + ">"
	}
	if name, ok := csharpBuiltins[t.Kind()]; ok {
		return name
	}
	return qualifyAll(t.String(), c.rewrite)
}

func (csharpSyntax) null() string  { return "null" }
func (csharpSyntax) cycle() string { return "null /* cycle */" }

func (csharpSyntax) quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case 0:
			b.WriteString(`\0`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (csharpSyntax) float(f float64, bits int) string {
	kind, suffix := "double", "d"
	if bits == 32 {
		kind, suffix = "float", "f"
	}
	switch {
	case math.IsInf(f, 1):
		return kind + ".PositiveInfinity"
	case math.IsInf(f, -1):
		return kind + ".NegativeInfinity"
	case math.IsNaN(f):
		return kind + ".NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, bits) + suffix
}

func (c csharpSyntax) complexNum(v complex128, bits int) string {
	return fmt.Sprintf("new Complex(%s, %s)", c.float(real(v), 64), c.float(imag(v), 64))
}

func (csharpSyntax) convert(_ reflect.Type, lit string, _ bool) string {
	return lit
}

func (csharpSyntax) timestamp(t time.Time) string {
	return `DateTimeOffset.Parse("` + t.Format(time.RFC3339Nano) + `")`
}

func (csharpSyntax) duration(d time.Duration) string {
	return fmt.Sprintf("TimeSpan.FromTicks(%d)", int64(d)/100)
}

// enum always uses the qualified type name.
func (c csharpSyntax) enum(t reflect.Type, member string) string {
	return csharpSyntax{full: true}.typeName(t) + "." + member
}

func (c csharpSyntax) list(t reflect.Type, items []string, ind string) string {
	if len(items) == 0 {
		return "new " + c.typeName(t.Elem()) + "[0]"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = ind + indentUnit + item
	}
	return "new[] {\n" + strings.Join(lines, ",\n") + "\n" + ind + "}"
}

func (c csharpSyntax) dict(t reflect.Type, entries []entry, ind string) string {
	var b strings.Builder
	b.WriteString("new " + c.typeName(t) + "\n" + ind + "{\n")
	for _, e := range entries {
		b.WriteString(ind + indentUnit + "[" + e.key + "] = " + e.value + ",\n")
	}
	b.WriteString(ind + "}")
	return b.String()
}

func (c csharpSyntax) block(t reflect.Type, _ bool, fields []entry, ind string) string {
	var b strings.Builder
	b.WriteString("new " + c.typeName(t) + "\n" + ind + "{\n")
	for _, f := range fields {
		b.WriteString(ind + indentUnit + f.key + " = " + f.value + ",\n")
	}
	b.WriteString(ind + "}")
	return b.String()
}

func (c csharpSyntax) call(_ *constructor, t reflect.Type, _ bool, args []string) string {
	return "new " + c.typeName(t) + "(" + strings.Join(args, ", ") + ")"
}

func (csharpSyntax) namedArg(name, value string) string {
	return name + ": " + value
}

func (csharpSyntax) pointer(_ reflect.Type, expr string) string {
	return expr
}

func (csharpSyntax) binding(name, expr string) string {
	return "var " + name + " = " + expr + ";"
}

func (csharpSyntax) statement(expr string) string {
	return expr + ";"
}
