package descriptor

import (
	"math"
	"reflect"
	"strings"

	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/types"
)

// Option configures Reflect.
type Option func(*reflectConfig)

type reflectConfig struct {
	defaults map[string]any
	ctorCall func(args []any) (any, error)
	name     string
	parent   string
	params   []string
	hidden   bool
}

// WithName overrides the class name (default: the Go type name).
func WithName(name string) Option {
	return func(c *reflectConfig) { c.name = name }
}

// WithParent sets the parent class used for hierarchy depth.
func WithParent(parent string) Option {
	return func(c *reflectConfig) { c.parent = parent }
}

// WithConstructor declares an initializer taking the named fields as parameters.
func WithConstructor(params []string, call func(args []any) (any, error)) Option {
	return func(c *reflectConfig) {
		c.params = params
		c.ctorCall = call
	}
}

// WithDefault sets a default value for a constructor parameter.
func WithDefault(param string, value any) Option {
	return func(c *reflectConfig) {
		if c.defaults == nil {
			c.defaults = make(map[string]any)
		}
		c.defaults[param] = value
	}
}

// WithHiddenConstructor marks the declared initializer as inaccessible.
func WithHiddenConstructor() Option {
	return func(c *reflectConfig) { c.hidden = true }
}

// Reflect derives a class from the Go struct type of sample and registers it.
//
// Field names come from the json tag (or the Go field name); the jsongen tag
// accepts "type=<signature>", "groups=a,b" and "format=<service>" entries
// separated by ";". Instances are pointers to the struct.
func Reflect(t *Table, sample any, opts ...Option) error {
	rt := reflect.TypeOf(sample)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("reflect requires a struct, got %T", sample).
			Build()
	}

	cfg := reflectConfig{name: rt.Name()}
	for _, opt := range opts {
		opt(&cfg)
	}
	t.goNames[rt] = cfg.name

	var fields []Field
	index := make(map[string][]int)
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, skip := jsonName(sf)
		if skip {
			continue
		}
		f := Field{Name: name}
		if err := applyTag(&f, sf.Tag.Get("jsongen")); err != nil {
			return err
		}
		if f.Type == nil {
			ft, err := t.typeOf(sf.Type)
			if err != nil {
				return errors.WithPath(err, cfg.name, name)
			}
			f.Type = ft
		}
		fields = append(fields, f)
		index[name] = sf.Index
	}

	c := &Class{
		Name:   cfg.name,
		Parent: cfg.parent,
		Fields: fields,
		New:    func() any { return reflect.New(rt).Interface() },
		Is: func(v any) bool {
			vt := reflect.TypeOf(v)
			return vt == rt || (vt != nil && vt.Kind() == reflect.Pointer && vt.Elem() == rt)
		},
	}

	c.Get = func(obj any, field string) (any, error) {
		rv := reflect.ValueOf(obj)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, errors.New(errors.PhaseEncode, errors.KindUnexpectedValue).Type(cfg.name).Detail("nil instance").Build()
			}
			rv = rv.Elem()
		}
		if rv.Type() != rt {
			return nil, errors.New(errors.PhaseEncode, errors.KindUnexpectedType).
				Type(cfg.name).
				Detail("expected %s, got %T", rt, obj).
				Build()
		}
		idx, ok := index[field]
		if !ok {
			return nil, errors.NotFound(errors.PhaseEncode, "field", cfg.name+"."+field)
		}
		fv := rv.FieldByIndex(idx)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				return nil, nil
			}
			// Optional scalars, enums and collections are read through the
			// pointer; class instances stay pointers.
			if fv.Elem().Kind() != reflect.Struct {
				return fv.Elem().Interface(), nil
			}
		}
		return fv.Interface(), nil
	}

	c.Set = func(obj any, field string, value any) error {
		rv := reflect.ValueOf(obj)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != rt {
			return errors.UnexpectedType([]string{cfg.name}, cfg.name, obj)
		}
		idx, ok := index[field]
		if !ok {
			return errors.NotFound(errors.PhaseInstantiate, "field", cfg.name+"."+field)
		}
		f, _ := c.Field(field)
		if err := Assign(rv.Elem().FieldByIndex(idx), value); err != nil {
			return errors.UnexpectedType([]string{cfg.name, field}, f.Type.String(), value)
		}
		return nil
	}

	if cfg.ctorCall != nil {
		ctor := &Constructor{Call: cfg.ctorCall, Accessible: !cfg.hidden}
		for _, pname := range cfg.params {
			f, ok := c.Field(pname)
			if !ok {
				return errors.NotFound(errors.PhaseConfig, "constructor parameter", cfg.name+"."+pname)
			}
			p := Param{Name: pname, Type: f.Type}
			if d, ok := cfg.defaults[pname]; ok {
				p.Default, p.HasDefault = d, true
			}
			ctor.Params = append(ctor.Params, p)
		}
		c.Constructor = ctor
	}

	return t.Register(c)
}

// ReflectEnum registers a Go named type as an enum. Values are its members;
// the backing type follows the underlying kind (string or integer).
func ReflectEnum(t *Table, name string, values ...any) error {
	if len(values) == 0 {
		return errors.InvalidInput(errors.PhaseConfig, "enum "+name+" has no members")
	}
	rt := reflect.TypeOf(values[0])

	var backing *types.Type
	switch rt.Kind() {
	case reflect.String:
		backing = types.Scalar(types.String)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		backing = types.Scalar(types.Int)
	default:
		return errors.UnsupportedType(errors.PhaseConfig, rt.String(), "enum backing must be string or integer")
	}

	toBacking := func(member any) (any, bool) {
		rv := reflect.ValueOf(member)
		if rv.Type() != rt {
			return nil, false
		}
		switch rt.Kind() {
		case reflect.String:
			return rv.String(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return int64(rv.Uint()), true
		default:
			return rv.Int(), true
		}
	}

	t.goNames[rt] = name
	return t.RegisterEnum(&Enum{
		Name:    name,
		Backing: backing,
		Value:   toBacking,
		From: func(b any) (any, bool) {
			for _, v := range values {
				bv, _ := toBacking(v)
				if sameScalar(bv, b) {
					return v, true
				}
			}
			return nil, false
		},
		Is: func(v any) bool { return reflect.TypeOf(v) == rt },
	})
}

func (t *Table) typeOf(rt reflect.Type) (*types.Type, error) {
	if name, ok := t.goNames[rt]; ok {
		if e, isEnum := t.enums[name]; isEnum {
			return e.Type(), nil
		}
		return types.Object(name), nil
	}

	switch rt.Kind() {
	case reflect.Pointer:
		inner, err := t.typeOf(rt.Elem())
		if err != nil {
			return nil, err
		}
		return types.Nullable(inner), nil
	case reflect.Bool:
		return types.Scalar(types.Bool), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return types.Scalar(types.Int), nil
	case reflect.Float32, reflect.Float64:
		return types.Scalar(types.Float), nil
	case reflect.String:
		return types.Scalar(types.String), nil
	case reflect.Interface:
		return types.Scalar(types.Mixed), nil
	case reflect.Slice, reflect.Array:
		elem, err := t.typeOf(rt.Elem())
		if err != nil {
			return nil, err
		}
		return types.List(elem), nil
	case reflect.Map:
		key, err := t.typeOf(rt.Key())
		if err != nil {
			return nil, err
		}
		if !key.IsScalar() || (key.Name() != types.String && key.Name() != types.Int) {
			return nil, errors.UnsupportedType(errors.PhaseConfig, rt.String(), "map keys must be strings or integers")
		}
		elem, err := t.typeOf(rt.Elem())
		if err != nil {
			return nil, err
		}
		return types.Dict(key, elem), nil
	case reflect.Struct:
		return types.Object(rt.Name()), nil
	}
	return nil, errors.UnsupportedType(errors.PhaseConfig, rt.String(), "no type mapping for Go kind "+rt.Kind().String())
}

func jsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = sf.Name
	}
	return name, false
}

func applyTag(f *Field, tag string) error {
	if tag == "" {
		return nil
	}
	for _, entry := range strings.Split(tag, ";") {
		key, value, _ := strings.Cut(strings.TrimSpace(entry), "=")
		switch key {
		case "type":
			typ, err := types.Parse(value)
			if err != nil {
				return err
			}
			f.Type = typ
		case "groups":
			f.Groups = strings.Split(value, ",")
		case "format":
			f.Formatter = value
		case "wire":
			f.Wire = value
		case "":
		default:
			return errors.InvalidInput(errors.PhaseConfig, "unknown jsongen tag entry "+key)
		}
	}
	return nil
}

// Assign stores v into dst, converting decoded shapes ([]any, map[string]any,
// int64, float64, *Struct) into the destination Go type.
func Assign(dst reflect.Value, v any) error {
	if v == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return errors.InvalidInput(errors.PhaseInstantiate, "nil for "+dst.Type().String())
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}

	switch dst.Kind() {
	case reflect.Pointer:
		if rv.Kind() == reflect.Pointer && rv.Elem().Type().AssignableTo(dst.Type().Elem()) {
			dst.Set(rv)
			return nil
		}
		elem := reflect.New(dst.Type().Elem())
		if err := Assign(elem.Elem(), v); err != nil {
			return err
		}
		dst.Set(elem)
		return nil

	case reflect.Struct:
		if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type() == dst.Type() {
			dst.Set(rv.Elem())
			return nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if dst.OverflowInt(rv.Int()) {
				break
			}
			dst.SetInt(rv.Int())
			return nil
		case reflect.Float64, reflect.Float32:
			f := rv.Float()
			if f != math.Trunc(f) || dst.OverflowInt(int64(f)) {
				break
			}
			dst.SetInt(int64(f))
			return nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Int64 && rv.Int() >= 0 && !dst.OverflowUint(uint64(rv.Int())) {
			dst.SetUint(uint64(rv.Int()))
			return nil
		}

	case reflect.Float32, reflect.Float64:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(rv.Float())
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetFloat(float64(rv.Int()))
			return nil
		}

	case reflect.String, reflect.Bool:
		if rv.Kind() == dst.Kind() {
			dst.Set(rv.Convert(dst.Type()))
			return nil
		}

	case reflect.Slice:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := reflect.MakeSlice(dst.Type(), rv.Len(), rv.Len())
			for i := 0; i < rv.Len(); i++ {
				if err := Assign(out.Index(i), rv.Index(i).Interface()); err != nil {
					return err
				}
			}
			dst.Set(out)
			return nil
		}

	case reflect.Map:
		if rv.Kind() == reflect.Map {
			out := reflect.MakeMapWithSize(dst.Type(), rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				k := reflect.New(dst.Type().Key()).Elem()
				if err := Assign(k, iter.Key().Interface()); err != nil {
					return err
				}
				val := reflect.New(dst.Type().Elem()).Elem()
				if err := Assign(val, iter.Value().Interface()); err != nil {
					return err
				}
				out.SetMapIndex(k, val)
			}
			dst.Set(out)
			return nil
		}
	}

	return errors.New(errors.PhaseInstantiate, errors.KindUnexpectedType).
		Detail("cannot assign %T to %s", v, dst.Type()).
		Build()
}
