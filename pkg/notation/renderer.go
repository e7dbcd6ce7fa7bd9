package notation

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// Renderer renders values with one registry and configuration. It is safe
// for concurrent use.
type Renderer struct {
	registry *Registry
	config   Config
	syntax   syntax
}

// NewRenderer creates a renderer. A nil registry means DefaultRegistry.
func NewRenderer(reg *Registry, cfg Config) *Renderer {
	if reg == nil {
		reg = DefaultRegistry
	}
	factory, ok := formats[cfg.Format]
	if !ok {
		factory = formats[FormatGo]
	}
	return &Renderer{registry: reg, config: cfg, syntax: factory(cfg)}
}

// Config returns the renderer's configuration.
func (r *Renderer) Config() Config {
	return r.config
}

// Expr renders value as a bare expression.
func (r *Renderer) Expr(value any) string {
	w := &walker{r: r, path: make(map[visit]struct{})}
	return w.render(reflect.ValueOf(value), 0, true)
}

// Render renders a single value bound to "data".
func (r *Renderer) Render(value any) string {
	return r.RenderEach([]any{value})
}

// RenderEach renders each value as its own line. A single value is bound
// to "data", several values to "data0", "data1", and so on.
func (r *Renderer) RenderEach(values []any) string {
	lines := make([]string, len(values))
	for i, value := range values {
		expr := r.Expr(value)
		switch {
		case r.config.SkipCreateAssignment:
			lines[i] = r.syntax.statement(expr)
		case len(values) == 1:
			lines[i] = r.syntax.binding("data", expr)
		default:
			lines[i] = r.syntax.binding("data"+strconv.Itoa(i), expr)
		}
	}
	return strings.Join(lines, "\n")
}

// visit identifies a reference currently being rendered.
type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type walker struct {
	r    *Renderer
	path map[visit]struct{}
}

type member struct {
	name  string
	typ   reflect.Type
	value reflect.Value
}

func (w *walker) render(v reflect.Value, level int, typed bool) string {
	s := w.r.syntax
	if !v.IsValid() {
		return s.null()
	}
	t := v.Type()

	if name, ok := w.r.registry.enumMember(v); ok {
		return s.enum(t, name)
	}

	switch t {
	case timeType:
		if !v.CanInterface() {
			return s.null()
		}
		return s.timestamp(v.Interface().(time.Time))
	case durationType:
		return s.duration(time.Duration(v.Int()))
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return s.null()
		}
		return w.render(v.Elem(), level, true)
	case reflect.Pointer:
		return w.pointer(v, level)
	case reflect.Bool:
		return s.convert(t, strconv.FormatBool(v.Bool()), typed)
	case reflect.String:
		return s.convert(t, s.quote(v.String()), typed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return s.convert(t, strconv.FormatInt(v.Int(), 10), typed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return s.convert(t, strconv.FormatUint(v.Uint(), 10), typed)
	case reflect.Float32, reflect.Float64:
		return s.convert(t, s.float(v.Float(), t.Bits()), typed)
	case reflect.Complex64, reflect.Complex128:
		return s.convert(t, s.complexNum(v.Complex(), t.Bits()), typed)
	case reflect.Slice:
		if v.IsNil() {
			return s.null()
		}
		return w.guard(v, func() string { return w.list(v, level) })
	case reflect.Array:
		return w.list(v, level)
	case reflect.Map:
		if v.IsNil() {
			return s.null()
		}
		return w.guard(v, func() string { return w.dict(v, level) })
	case reflect.Struct:
		return w.composite(v, reflect.Value{}, level)
	default:
		// Functions, channels and unsafe pointers have no literal form.
		return s.null()
	}
}

// guard renders a reference value unless it is already on the current
// path, in which case a cycle marker is emitted.
func (w *walker) guard(v reflect.Value, render func() string) string {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		key.n = v.Len()
		if key.n == 0 {
			return render()
		}
	}
	if _, seen := w.path[key]; seen {
		return w.r.syntax.cycle()
	}
	w.path[key] = struct{}{}
	defer delete(w.path, key)
	return render()
}

func (w *walker) pointer(v reflect.Value, level int) string {
	if v.IsNil() {
		return w.r.syntax.null()
	}
	return w.guard(v, func() string {
		elem := v.Elem()
		if elem.Kind() == reflect.Struct && elem.Type() != timeType {
			if _, ok := w.r.registry.enumMember(elem); !ok {
				return w.composite(elem, v, level)
			}
		}
		return w.r.syntax.pointer(elem.Type(), w.render(elem, level, false))
	})
}

func (w *walker) list(v reflect.Value, level int) string {
	items := make([]string, v.Len())
	for i := range items {
		items[i] = w.render(v.Index(i), level+1, false)
	}
	return w.r.syntax.list(v.Type(), items, indent(level))
}

// dict renders map entries sorted by their rendered key.
func (w *walker) dict(v reflect.Value, level int) string {
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		entries = append(entries, entry{
			key:   w.render(iter.Key(), level+1, false),
			value: w.render(iter.Value(), level+1, false),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return w.r.syntax.dict(v.Type(), entries, indent(level))
}

// composite renders a struct value either as a constructor call or as a
// field block. addr is the pointer the struct was reached through, if any.
func (w *walker) composite(v, addr reflect.Value, level int) string {
	s := w.r.syntax
	cfg := w.r.config
	t := v.Type()
	ptr := addr.IsValid()
	members := membersOf(v, addr)

	if !cfg.PreferObjectInitialization {
		if c, ok := w.r.registry.match(t, members); ok {
			args := make([]string, len(c.params))
			for i, p := range c.params {
				m := lookup(members, p.name)
				arg := w.render(m.value, level, isInterface(m.typ))
				if cfg.IncludeParameterNames {
					arg = s.namedArg(p.name, arg)
				}
				args[i] = arg
			}
			return s.call(c, t, ptr, args)
		}
	}

	fields := make([]entry, 0, len(members))
	for _, m := range members {
		if absent(m.value) {
			continue
		}
		fields = append(fields, entry{
			key:   m.name,
			value: w.render(m.value, level+1, isInterface(m.typ)),
		})
	}
	return s.block(t, ptr, fields, indent(level))
}

func lookup(members []member, name string) member {
	for _, m := range members {
		if m.name == name {
			return m
		}
	}
	return member{}
}

func isInterface(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface
}

// absent reports whether a member holds no value and is omitted from blocks.
func absent(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// membersOf enumerates the members of a struct value, preferring the
// value's own FieldLister description over reflection.
func membersOf(v, addr reflect.Value) []member {
	if lister, ok := asFieldLister(v, addr); ok {
		fields := lister.NotationFields()
		out := make([]member, len(fields))
		for i, f := range fields {
			val := reflect.ValueOf(f.Value)
			typ := f.Type
			if typ == nil && val.IsValid() {
				typ = val.Type()
			}
			out[i] = member{name: f.Name, typ: typ, value: val}
		}
		return out
	}

	infos := structFields(v.Type())
	out := make([]member, len(infos))
	for i, f := range infos {
		out[i] = member{name: f.name, typ: f.typ, value: v.Field(f.index)}
	}
	return out
}

func asFieldLister(v, addr reflect.Value) (FieldLister, bool) {
	if addr.IsValid() && addr.CanInterface() {
		if l, ok := addr.Interface().(FieldLister); ok {
			return l, true
		}
	}
	if v.CanInterface() {
		l, ok := v.Interface().(FieldLister)
		return l, ok
	}
	return nil, false
}

type fieldInfo struct {
	name  string
	index int
	typ   reflect.Type
}

// fieldCache maps a struct type to its exported fields in declaration order.
var fieldCache sync.Map

func structFields(t reflect.Type) []fieldInfo {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldInfo)
	}

	fields := make([]fieldInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fields = append(fields, fieldInfo{name: f.Name, index: i, typ: f.Type})
	}
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]fieldInfo)
}
