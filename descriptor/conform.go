package descriptor

import (
	"iter"
	"reflect"

	"github.com/wippyai/jsongen/types"
)

// Conforms reports whether v is a valid value of t.
// Object and enum checks use the provider's predicates; unknown classes never conform.
func Conforms(p Provider, t *types.Type, v any) bool {
	if v == nil {
		return t.IsNullable() || t.IsMixed()
	}

	switch t.Kind() {
	case types.KindNull:
		return false

	case types.KindScalar:
		return ScalarConforms(t.Name(), v)

	case types.KindObject:
		if t.IsAnyObject() {
			k := reflect.TypeOf(v).Kind()
			return k == reflect.Pointer || k == reflect.Struct || k == reflect.Map
		}
		if p == nil {
			return false
		}
		c, err := p.Class(t.Class())
		return err == nil && c.Is != nil && c.Is(v)

	case types.KindEnum:
		if p == nil {
			return false
		}
		e, ok := p.Enum(t.Class())
		return ok && e.Is != nil && e.Is(v)

	case types.KindList:
		if t.IsIterable() {
			if _, ok := v.(iter.Seq2[any, error]); ok {
				return true
			}
		}
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array

	case types.KindDict:
		if t.IsIterable() {
			if _, ok := v.(iter.Seq2[Entry, error]); ok {
				return true
			}
		}
		if _, ok := v.(map[string]any); ok {
			return true
		}
		return reflect.TypeOf(v).Kind() == reflect.Map

	case types.KindUnion:
		for _, m := range t.Members() {
			if Conforms(p, m, v) {
				return true
			}
		}
	}
	return false
}

// ScalarConforms reports whether v is a Go value of the named scalar.
// Integers conform to float; floats never conform to int.
func ScalarConforms(name string, v any) bool {
	switch name {
	case types.Mixed:
		return true
	case types.String:
		_, ok := v.(string)
		return ok
	case types.Bool:
		_, ok := v.(bool)
		return ok
	case types.Int:
		return isInt(v)
	case types.Float:
		if isInt(v) {
			return true
		}
		switch v.(type) {
		case float64, float32:
			return true
		}
	}
	return false
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// sameScalar compares scalars with numeric normalization.
func sameScalar(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
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
