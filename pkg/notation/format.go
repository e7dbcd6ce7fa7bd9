package notation

import (
	"fmt"
	"path"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// syntax produces the tokens and layout of one target notation. The walker
// decides what to render; a syntax decides how it is spelled.
type syntax interface {
	// typeName renders the name of t as it appears in a declaration.
	typeName(t reflect.Type) string
	null() string
	cycle() string
	quote(s string) string
	float(f float64, bits int) string
	complexNum(c complex128, bits int) string
	// convert wraps a scalar literal of type t. typed is set when the value
	// was reached through an interface and its static type would otherwise
	// be lost.
	convert(t reflect.Type, lit string, typed bool) string
	timestamp(t time.Time) string
	duration(d time.Duration) string
	enum(t reflect.Type, member string) string
	list(t reflect.Type, items []string, ind string) string
	dict(t reflect.Type, entries []entry, ind string) string
	block(t reflect.Type, ptr bool, fields []entry, ind string) string
	call(c *constructor, t reflect.Type, ptr bool, args []string) string
	namedArg(name, value string) string
	pointer(elem reflect.Type, expr string) string
	binding(name, expr string) string
	statement(expr string) string
}

// entry is a rendered key/value pair: a map entry or a struct field.
type entry struct {
	key   string
	value string
}

// syntaxFactory creates a syntax for a configuration.
type syntaxFactory func(cfg Config) syntax

// formats maps target notations to their syntax factories.
var formats = make(map[Format]syntaxFactory)

func init() {
	register(FormatGo, func(cfg Config) syntax {
		return goSyntax{full: cfg.IncludeFullTypeNames}
	})
	register(FormatCSharp, func(cfg Config) syntax {
		return csharpSyntax{full: cfg.IncludeFullTypeNames}
	})
}

func register(format Format, factory syntaxFactory) {
	if factory == nil {
		panic(fmt.Sprintf("syntax factory for format %s cannot be nil", format))
	}
	formats[format] = factory
}

// ValidateFormat checks if the given format is supported.
func ValidateFormat(format string) bool {
	_, ok := formats[Format(format)]
	return ok
}

// ListFormats returns all supported formats in sorted order.
func ListFormats() []string {
	names := make([]string, 0, len(formats))
	for format := range formats {
		names = append(names, string(format))
	}
	sort.Strings(names)
	return names
}

const indentUnit = "  "

func indent(level int) string {
	return strings.Repeat(indentUnit, level)
}

// qualifiedIdent matches a package-qualified identifier as printed by
// reflect, e.g. "github.com/x/y.Foo" or "time.Time".
var qualifiedIdent = regexp.MustCompile(`((?:[\w.~-]+/)*[\w~-]+)\.([A-Za-z_]\w*)`)

// versionSuffix matches major-version path elements such as "v2".
var versionSuffix = regexp.MustCompile(`^v[0-9]+$`)

// packageName guesses the package identifier for an import path.
func packageName(importPath string) string {
	base := path.Base(importPath)
	if versionSuffix.MatchString(base) && strings.Contains(importPath, "/") {
		base = path.Base(path.Dir(importPath))
	}
	if i := strings.Index(base, ".v"); i > 0 {
		base = base[:i]
	}
	return strings.ReplaceAll(base, "-", "_")
}

// qualifyAll rewrites every package-qualified identifier in s with rewrite.
func qualifyAll(s string, rewrite func(pkgPath, name string) string) string {
	return qualifiedIdent.ReplaceAllStringFunc(s, func(m string) string {
		parts := qualifiedIdent.FindStringSubmatch(m)
		return rewrite(parts[1], parts[2])
	})
}

// splitTypeArgs splits a generic instantiation name such as
// "Pair[int,map[string]int]" into its base name and type arguments.
func splitTypeArgs(name string) (string, []string) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return name, nil
	}

	var (
		args  []string
		depth int
		start = open + 1
	)
	inner := name[:len(name)-1]
	for i := start; i < len(inner); i++ {
		switch inner[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, inner[start:i])
				start = i + 1
			}
		}
	}
	args = append(args, inner[start:])
	return name[:open], args
}

// namedType renders a defined type's name, rewriting its generic arguments
// with rewrite and wrapping them in open/close.
func namedType(t reflect.Type, rewrite func(pkgPath, name string) string, open, close string) string {
	base, args := splitTypeArgs(t.Name())
	name := rewrite(t.PkgPath(), base)
	if len(args) == 0 {
		return name
	}
	for i, arg := range args {
		args[i] = qualifyAll(arg, rewrite)
	}
	return name + open + strings.Join(args, ", ") + close
}
