package notation

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var (
	// ErrNotFunc is returned when a constructor is not a function.
	ErrNotFunc = errors.New("notation: constructor must be a function")
	// ErrConstructorShape is returned when a constructor does not return exactly one struct or struct pointer.
	ErrConstructorShape = errors.New("notation: constructor must return a single struct or struct pointer")
	// ErrParamCount is returned when the declared parameter names do not match the constructor arity.
	ErrParamCount = errors.New("notation: parameter names do not match constructor arity")
	// ErrAnonymousConstructor is returned for closures and method values, which have no callable name.
	ErrAnonymousConstructor = errors.New("notation: constructor must be a named package-level function")
	// ErrNotComparable is returned when an enum member value cannot be used as a map key.
	ErrNotComparable = errors.New("notation: enum value is not comparable")
)

// DefaultRegistry is the process-wide registry used by Render and RenderEach.
var DefaultRegistry = NewRegistry()

// Registry holds explicit per-type rendering declarations: constructors
// and enum member names.
type Registry struct {
	mu           sync.RWMutex
	constructors map[reflect.Type][]*constructor
	enums        map[reflect.Type]map[any]string
}

type constructor struct {
	pkgPath    string
	name       string
	params     []param
	returnsPtr bool
}

type param struct {
	name string
	typ  reflect.Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[reflect.Type][]*constructor),
		enums:        make(map[reflect.Type]map[any]string),
	}
}

// RegisterConstructor declares fn as a constructor for the struct type it
// returns. paramNames name fn's parameters in order; a value is rendered as
// a call to fn when every parameter has a member with the same name and
// type. Constructors are tried in registration order.
func (r *Registry) RegisterConstructor(fn any, paramNames ...string) error {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return ErrNotFunc
	}
	ft := fv.Type()
	if ft.NumOut() != 1 || ft.IsVariadic() {
		return ErrConstructorShape
	}

	target := ft.Out(0)
	returnsPtr := false
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
		returnsPtr = true
	}
	if target.Kind() != reflect.Struct {
		return ErrConstructorShape
	}

	if ft.NumIn() != len(paramNames) {
		return fmt.Errorf("%w: %d names for %d parameters", ErrParamCount, len(paramNames), ft.NumIn())
	}

	pkgPath, name, err := funcName(fv)
	if err != nil {
		return err
	}

	c := &constructor{
		pkgPath:    pkgPath,
		name:       name,
		params:     make([]param, ft.NumIn()),
		returnsPtr: returnsPtr,
	}
	for i := range c.params {
		c.params[i] = param{name: paramNames[i], typ: ft.In(i)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[target] = append(r.constructors[target], c)
	return nil
}

// MustRegisterConstructor is like RegisterConstructor but panics on error.
// It is meant for package init blocks.
func (r *Registry) MustRegisterConstructor(fn any, paramNames ...string) {
	if err := r.RegisterConstructor(fn, paramNames...); err != nil {
		panic(err)
	}
}

// RegisterEnum declares member names for constant values. The dynamic type
// of each key identifies the enum type.
func (r *Registry) RegisterEnum(members map[any]string) error {
	for value := range members {
		if value == nil || !reflect.TypeOf(value).Comparable() {
			return fmt.Errorf("%w: %#v", ErrNotComparable, value)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for value, name := range members {
		t := reflect.TypeOf(value)
		if r.enums[t] == nil {
			r.enums[t] = make(map[any]string)
		}
		r.enums[t][value] = name
	}
	return nil
}

// RegisterEnumValues declares member names for the constants of one enum type.
func RegisterEnumValues[T comparable](r *Registry, members map[T]string) error {
	converted := make(map[any]string, len(members))
	for value, name := range members {
		converted[value] = name
	}
	return r.RegisterEnum(converted)
}

// RegisterConstructor registers fn with the DefaultRegistry.
func RegisterConstructor(fn any, paramNames ...string) error {
	return DefaultRegistry.RegisterConstructor(fn, paramNames...)
}

// match returns the first registered constructor of t whose parameters are
// all covered by a same-named, same-typed member.
func (r *Registry) match(t reflect.Type, members []member) (*constructor, bool) {
	r.mu.RLock()
	ctors := r.constructors[t]
	r.mu.RUnlock()

	for _, c := range ctors {
		if c.matches(members) {
			return c, true
		}
	}
	return nil, false
}

func (c *constructor) matches(members []member) bool {
	for _, p := range c.params {
		found := false
		for _, m := range members {
			if m.name == p.name && m.typ == p.typ {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// enumMember looks up the registered member name of v.
func (r *Registry) enumMember(v reflect.Value) (string, bool) {
	if !v.CanInterface() {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.enums[v.Type()]
	if !ok {
		return "", false
	}
	name, ok := members[v.Interface()]
	return name, ok
}

// funcName splits the runtime name of a function into its package path and
// identifier, e.g. "example.com/x/pkg.NewThing" -> ("example.com/x/pkg", "NewThing").
func funcName(fv reflect.Value) (string, string, error) {
	fn := runtime.FuncForPC(fv.Pointer())
	if fn == nil {
		return "", "", ErrAnonymousConstructor
	}
	full := fn.Name()
	if i := strings.IndexByte(full, '['); i >= 0 {
		full = full[:i]
	}

	slash := strings.LastIndexByte(full, '/')
	dot := strings.IndexByte(full[slash+1:], '.')
	if dot < 0 {
		return "", "", ErrAnonymousConstructor
	}
	pkgPath := full[:slash+1+dot]
	name := full[slash+1+dot+1:]
	if name == "" || strings.ContainsAny(name, ".-") {
		return "", "", fmt.Errorf("%w: %s", ErrAnonymousConstructor, full)
	}
	return pkgPath, name, nil
}
