package check

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/leanovate/gopter"
)

var (
	// ErrInvalidProperty is returned when a condition cannot be checked
	// against its generators.
	ErrInvalidProperty = errors.New("check: invalid property")

	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	propResultType = reflect.TypeOf((*gopter.PropResult)(nil))
)

// Property is a condition together with the generators of its arguments.
type Property struct {
	condition reflect.Value
	gens      []gopter.Gen
	err       error
}

// ForAll declares a property. condition takes one argument per generator
// and returns a bool, a string (empty means success) or a
// *gopter.PropResult, optionally followed by an error. A panic inside
// condition fails the trial with the panic as cause.
func ForAll(condition any, gens ...gopter.Gen) Property {
	p := Property{condition: reflect.ValueOf(condition), gens: gens}
	p.err = validate(p.condition, len(gens))
	return p
}

// Err reports why the property cannot be checked.
func (p Property) Err() error {
	return p.err
}

func validate(cv reflect.Value, numGens int) error {
	if cv.Kind() != reflect.Func || cv.IsNil() {
		return fmt.Errorf("%w: condition must be a function", ErrInvalidProperty)
	}
	ct := cv.Type()
	if ct.IsVariadic() {
		return fmt.Errorf("%w: condition must not be variadic", ErrInvalidProperty)
	}
	if ct.NumIn() != numGens {
		return fmt.Errorf("%w: condition takes %d arguments but %d generators were given", ErrInvalidProperty, ct.NumIn(), numGens)
	}
	switch {
	case ct.NumOut() == 0 || ct.NumOut() > 2:
		return fmt.Errorf("%w: condition must return one or two values", ErrInvalidProperty)
	case ct.NumOut() == 2 && !ct.Out(1).Implements(errorType):
		return fmt.Errorf("%w: second result of condition must be an error", ErrInvalidProperty)
	}
	switch out := ct.Out(0); {
	case out.Kind() == reflect.Bool, out.Kind() == reflect.String, out == propResultType:
		return nil
	default:
		return fmt.Errorf("%w: unsupported condition result %s", ErrInvalidProperty, out)
	}
}

// evaluate calls the condition and converts its outcome.
func (p Property) evaluate(args []reflect.Value) (result *gopter.PropResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &gopter.PropResult{
				Status:     gopter.PropError,
				Error:      fmt.Errorf("check panicked: %v", r),
				ErrorStack: debug.Stack(),
			}
		}
	}()

	out := p.condition.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return &gopter.PropResult{Status: gopter.PropError, Error: out[1].Interface().(error)}
	}

	switch v := out[0].Interface().(type) {
	case bool:
		if v {
			return &gopter.PropResult{Status: gopter.PropTrue}
		}
		return &gopter.PropResult{Status: gopter.PropFalse}
	case string:
		if v == "" {
			return &gopter.PropResult{Status: gopter.PropTrue}
		}
		return &gopter.PropResult{Status: gopter.PropFalse, Labels: []string{v}}
	case *gopter.PropResult:
		if v == nil {
			return &gopter.PropResult{Status: gopter.PropError, Error: errors.New("check returned a nil result")}
		}
		return v
	}
	return &gopter.PropResult{Status: gopter.PropError, Error: fmt.Errorf("invalid check result: %#v", out[0].Interface())}
}
