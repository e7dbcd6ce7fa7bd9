// Package notation renders arbitrary Go values as source-code literals.
//
// It is used to print shrunk property counterexamples in a form that can be
// pasted back into a test. Two notations are supported: Go composite
// literals (the default) and C# object/collection initializers.
//
// Values are walked by reflection over exported struct fields. Types can
// describe their own members by implementing FieldLister, and constructors
// and enum members are declared explicitly in a Registry.
package notation

import (
	"fmt"
	"reflect"
)

// Format identifies a target notation.
type Format string

const (
	FormatGo     Format = "go"
	FormatCSharp Format = "csharp"
)

// Config controls how values are rendered. It is an immutable value:
// every modifier returns a new Config.
type Config struct {
	// Format selects the target notation. Unknown formats fall back to Go.
	Format Format

	// PreferObjectInitialization renders field blocks even when a
	// registered constructor matches the value's members.
	PreferObjectInitialization bool

	// IncludeParameterNames prefixes constructor arguments with the
	// parameter name.
	IncludeParameterNames bool

	// IncludeFullTypeNames renders package-qualified type names.
	IncludeFullTypeNames bool

	// SkipCreateAssignment omits the "data := " binding in front of each
	// rendered value.
	SkipCreateAssignment bool
}

// Option overrides a single Config field.
type Option func(*Config)

// Default returns the default configuration: Go notation, all flags off.
func Default() Config {
	return Config{Format: FormatGo}
}

// WithFormat sets the target notation.
func WithFormat(f Format) Option {
	return func(c *Config) { c.Format = f }
}

// WithPreferObjectInitialization sets PreferObjectInitialization.
func WithPreferObjectInitialization(v bool) Option {
	return func(c *Config) { c.PreferObjectInitialization = v }
}

// WithIncludeParameterNames sets IncludeParameterNames.
func WithIncludeParameterNames(v bool) Option {
	return func(c *Config) { c.IncludeParameterNames = v }
}

// WithIncludeFullTypeNames sets IncludeFullTypeNames.
func WithIncludeFullTypeNames(v bool) Option {
	return func(c *Config) { c.IncludeFullTypeNames = v }
}

// WithSkipCreateAssignment sets SkipCreateAssignment.
func WithSkipCreateAssignment(v bool) Option {
	return func(c *Config) { c.SkipCreateAssignment = v }
}

// With returns a copy of c with the given overrides applied.
func (c Config) With(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// As returns a copy of c rendering in format f.
func (c Config) As(f Format) Config {
	return c.With(WithFormat(f))
}

// PreferObjectInit returns a copy of c that always renders field blocks.
func (c Config) PreferObjectInit() Config {
	return c.With(WithPreferObjectInitialization(true))
}

// IncludeParamNames returns a copy of c that names constructor arguments.
func (c Config) IncludeParamNames() Config {
	return c.With(WithIncludeParameterNames(true))
}

// IncludeFullNames returns a copy of c that qualifies type names.
func (c Config) IncludeFullNames() Config {
	return c.With(WithIncludeFullTypeNames(true))
}

// SkipAssignment returns a copy of c without binding prefixes.
func (c Config) SkipAssignment() Config {
	return c.With(WithSkipCreateAssignment(true))
}

func (c Config) String() string {
	return fmt.Sprintf("notation(%s prefer_init=%t param_names=%t full_names=%t skip_assignment=%t)",
		c.Format, c.PreferObjectInitialization, c.IncludeParameterNames, c.IncludeFullTypeNames, c.SkipCreateAssignment)
}

// Field describes one member of a value that implements FieldLister.
type Field struct {
	Name  string
	Type  reflect.Type
	Value any
}

// FieldLister is implemented by values that describe their own members
// instead of being walked by reflection. Fields are rendered in the
// returned order.
type FieldLister interface {
	NotationFields() []Field
}

// Render renders a single value with the default registry.
func Render(value any, cfg Config) string {
	return NewRenderer(DefaultRegistry, cfg).Render(value)
}

// RenderEach renders each value on its own binding with the default registry.
func RenderEach(values []any, cfg Config) string {
	return NewRenderer(DefaultRegistry, cfg).RenderEach(values)
}
