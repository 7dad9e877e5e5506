package compiler

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/ir"
)

func (l *linker) call(n *ir.Call) (exprFn, error) {
	args, err := l.args(n.Args)
	if err != nil {
		return nil, err
	}

	if id, ok := strings.CutPrefix(n.Func, ir.ServicePfx); ok {
		if l.rt.Services == nil {
			return nil, errors.NotFound(errors.PhaseLink, "service", id)
		}
		svc, err := l.rt.Services.Resolve(id)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, errors.InvalidInput(errors.PhaseLink, "service "+id+" takes one argument")
		}
		x := args[0]
		return func(f *frame) (any, error) {
			v, err := x(f)
			if err != nil {
				return nil, err
			}
			return svc(f.ctx, v)
		}, nil
	}

	switch n.Func {
	case ir.FnInt:
		return unary(n, args, encodeInt)
	case ir.FnFloat:
		return unary(n, args, encodeFloat)
	case ir.FnString:
		return unary(n, args, encodeString)
	case ir.FnBool:
		return unary(n, args, encodeBool)
	case ir.FnKey:
		return unary(n, args, encodeKey)
	case ir.FnEncode:
		return unary(n, args, encodeDynamic)
	case ir.FnLen:
		return unary(n, args, func(v any) (any, error) { return length(v), nil })
	case ir.FnIsNull:
		return predicate(n, args, isNil)
	case ir.FnIsInt:
		return predicate(n, args, isInt)
	case ir.FnIsFloat:
		return predicate(n, args, func(v any) bool { _, ok := toFloat(v); return ok })
	case ir.FnIsString:
		return predicate(n, args, func(v any) bool { _, ok := v.(string); return ok })
	case ir.FnIsBool:
		return predicate(n, args, func(v any) bool { _, ok := v.(bool); return ok })
	case ir.FnIsList:
		return predicate(n, args, isList)
	case ir.FnIsDict:
		return predicate(n, args, isDict)
	case ir.FnIsObject:
		return predicate(n, args, isObject)

	case ir.FnIsClass:
		name, x, err := named(n, args)
		if err != nil {
			return nil, err
		}
		class, err := l.class(name)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			v, err := x(f)
			if err != nil {
				return nil, err
			}
			return v != nil && class.Is != nil && class.Is(v), nil
		}, nil

	case ir.FnIsEnum, ir.FnEnumValue:
		name, x, err := named(n, args)
		if err != nil {
			return nil, err
		}
		enum, err := l.enum(name)
		if err != nil {
			return nil, err
		}
		if n.Func == ir.FnIsEnum {
			return func(f *frame) (any, error) {
				v, err := x(f)
				if err != nil {
					return nil, err
				}
				return v != nil && enum.Is(v), nil
			}, nil
		}
		return func(f *frame) (any, error) {
			v, err := x(f)
			if err != nil {
				return nil, err
			}
			b, ok := enum.Value(v)
			if !ok {
				return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, enum.Type().String(), v, "value is not a member of "+name)
			}
			return b, nil
		}, nil

	case ir.FnFail:
		msg, x, err := named(n, args)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			v, err := x(f)
			if err != nil {
				return nil, err
			}
			return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "", v, msg)
		}, nil
	}

	return nil, errors.NotFound(errors.PhaseLink, "builtin", n.Func)
}

func (l *linker) class(name string) (*descriptor.Class, error) {
	if l.rt.Provider == nil {
		return nil, errors.Logic(errors.PhaseLink, "no descriptor provider for class "+name)
	}
	return l.rt.Provider.Class(name)
}

func (l *linker) enum(name string) (*descriptor.Enum, error) {
	if l.rt.Provider != nil {
		if e, ok := l.rt.Provider.Enum(name); ok {
			return e, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseLink, "enum", name)
}

func unary(n *ir.Call, args []exprFn, fn func(any) (any, error)) (exprFn, error) {
	if len(args) != 1 {
		return nil, errors.InvalidInput(errors.PhaseLink, n.Func+" takes one argument")
	}
	x := args[0]
	return func(f *frame) (any, error) {
		v, err := x(f)
		if err != nil {
			return nil, err
		}
		return fn(v)
	}, nil
}

func predicate(n *ir.Call, args []exprFn, fn func(any) bool) (exprFn, error) {
	return unary(n, args, func(v any) (any, error) { return fn(v), nil })
}

// named splits (literal string, x) arguments.
func named(n *ir.Call, args []exprFn) (string, exprFn, error) {
	if len(n.Args) != 2 {
		return "", nil, errors.InvalidInput(errors.PhaseLink, n.Func+" takes two arguments")
	}
	lit, ok := n.Args[0].(*ir.Literal)
	if !ok {
		return "", nil, errors.InvalidInput(errors.PhaseLink, n.Func+" needs a constant first argument")
	}
	name, ok := lit.Value.(string)
	if !ok {
		return "", nil, errors.InvalidInput(errors.PhaseLink, n.Func+" needs a string first argument")
	}
	return name, args[1], nil
}

func nullValue(sig string) error {
	return errors.UnexpectedValue(errors.PhaseEncode, nil, sig, nil, "null where non-nullable")
}

func encodeInt(v any) (any, error) {
	if v == nil {
		return nil, nullValue("int")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	}
	return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "int", v, fmt.Sprintf("cannot encode %T as int", v))
}

func encodeFloat(v any) (any, error) {
	if v == nil {
		return nil, nullValue("float")
	}
	f, ok := toFloat(v)
	if !ok {
		return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "float", v, fmt.Sprintf("cannot encode %T as float", v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "float", v, "not representable in JSON")
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindUnexpectedValue, err, "encode float")
	}
	return string(b), nil
}

func encodeString(v any) (any, error) {
	if v == nil {
		return nil, nullValue("string")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "string", v, fmt.Sprintf("cannot encode %T as string", v))
	}
	return quote(rv.String())
}

func encodeBool(v any) (any, error) {
	if v == nil {
		return nil, nullValue("bool")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Bool {
		return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "bool", v, fmt.Sprintf("cannot encode %T as bool", v))
	}
	if rv.Bool() {
		return "true", nil
	}
	return "false", nil
}

func encodeKey(v any) (any, error) {
	switch k := v.(type) {
	case string:
		return quote(k)
	case nil:
		return nil, nullValue("key")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return quote(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return `"` + strconv.FormatInt(rv.Int(), 10) + `"`, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return `"` + strconv.FormatUint(rv.Uint(), 10) + `"`, nil
	}
	return nil, errors.UnexpectedValue(errors.PhaseEncode, nil, "key", v, fmt.Sprintf("cannot use %T as a key", v))
}

func quote(s string) (any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindUnexpectedValue, err, "encode string")
	}
	return string(b), nil
}

// encodeDynamic encodes a value without static type information.
func encodeDynamic(v any) (any, error) {
	plain, err := plainValue(v)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(plain)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindUnexpectedValue, err, "encode value")
	}
	return string(b), nil
}

// plainValue replaces records, enum members and sequences with values the
// JSON encoder understands.
func plainValue(v any) (any, error) {
	switch x := v.(type) {
	case *descriptor.Record:
		if x == nil {
			return nil, nil
		}
		return plainValue(x.Values)
	case descriptor.Member:
		return x.Value, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			p, err := plainValue(e)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			p, err := plainValue(e)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = p
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			p, err := plainValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case iter.Seq2[any, error]:
		out := []any{}
		for e, err := range x {
			if err != nil {
				return nil, err
			}
			p, err := plainValue(e)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case iter.Seq2[descriptor.Entry, error]:
		out := map[string]any{}
		for e, err := range x {
			if err != nil {
				return nil, err
			}
			p, err := plainValue(e.Value)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(e.Key)] = p
		}
		return out, nil
	}
	return v, nil
}

// each iterates a list or dict value in a deterministic order: sequences
// and slices in order, maps by sorted key.
func each(c any, fn func(k, v any) error) error {
	switch x := c.(type) {
	case nil:
		return nil
	case []any:
		for i, v := range x {
			if err := fn(int64(i), v); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(x)) {
			if err := fn(k, x[k]); err != nil {
				return err
			}
		}
		return nil
	case iter.Seq2[any, error]:
		i := int64(0)
		for v, err := range x {
			if err != nil {
				return err
			}
			if err := fn(i, v); err != nil {
				return err
			}
			i++
		}
		return nil
	case iter.Seq2[descriptor.Entry, error]:
		for e, err := range x {
			if err != nil {
				return err
			}
			if err := fn(e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(c)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := fn(int64(i), rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := rv.MapKeys()
		slices.SortFunc(keys, compareKeys)
		for _, k := range keys {
			if err := fn(k.Interface(), rv.MapIndex(k).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
	}
	return errors.New(errors.PhaseEncode, errors.KindUnexpectedValue).
		Value(c).
		Detail("cannot iterate %T", c).
		Build()
}

func compareKeys(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface {
		a, b = a.Elem(), b.Elem()
		if a.Kind() != b.Kind() {
			return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		}
	}
	switch a.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.String:
		return strings.Compare(a.String(), b.String())
	}
	return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func index(c, key any) (any, error) {
	switch x := c.(type) {
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("map key must be a string, got %T", key))
		}
		return x[k], nil
	case []any:
		i, ok := key.(int64)
		if !ok || i < 0 || i >= int64(len(x)) {
			return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("index %v out of range", key))
		}
		return x[i], nil
	case *descriptor.Record:
		k, _ := key.(string)
		return x.Values[k], nil
	}

	rv := reflect.ValueOf(c)
	switch rv.Kind() {
	case reflect.Map:
		kv := reflect.ValueOf(key)
		if !kv.IsValid() || !kv.Type().ConvertibleTo(rv.Type().Key()) {
			return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("bad key %T for %T", key, c))
		}
		v := rv.MapIndex(kv.Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Slice, reflect.Array:
		i, ok := key.(int64)
		if !ok || i < 0 || i >= int64(rv.Len()) {
			return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("index %v out of range", key))
		}
		return rv.Index(int(i)).Interface(), nil
	}
	return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("cannot index %T", c))
}

func length(v any) int64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return int64(rv.Len())
	}
	return 0
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func equal(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func isInt(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isList(v any) bool {
	if _, ok := v.(iter.Seq2[any, error]); ok {
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isDict(v any) bool {
	if _, ok := v.(iter.Seq2[descriptor.Entry, error]); ok {
		return true
	}
	return reflect.ValueOf(v).Kind() == reflect.Map
}

func isObject(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Pointer, reflect.Struct:
		return !isNil(v)
	}
	return false
}
