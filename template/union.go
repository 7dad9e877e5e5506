package template

import (
	"cmp"
	"slices"

	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/types"
)

// OrderUnion sorts union members by specificity: non-object members first,
// then classes from the most derived to the root, then the generic object,
// then mixed. Two classes at the same hierarchy depth are a logic error.
func OrderUnion(members []*types.Type, p descriptor.Provider) ([]*types.Type, error) {
	h, _ := p.(descriptor.Hierarchy)
	depth := func(t *types.Type) int {
		if h == nil {
			return 0
		}
		return h.Depth(t.Class())
	}

	var plain, classes, tail []*types.Type
	for _, m := range members {
		switch {
		case m.IsObject() && !m.IsAnyObject():
			classes = append(classes, m)
		case m.IsAnyObject() || m.IsMixed():
			tail = append(tail, m)
		default:
			plain = append(plain, m)
		}
	}

	slices.SortStableFunc(plain, func(a, b *types.Type) int { return cmp.Compare(rank(a), rank(b)) })
	slices.SortStableFunc(tail, func(a, b *types.Type) int { return cmp.Compare(rank(a), rank(b)) })

	depths := make(map[*types.Type]int, len(classes))
	for _, c := range classes {
		depths[c] = depth(c)
	}
	slices.SortStableFunc(classes, func(a, b *types.Type) int { return cmp.Compare(depths[b], depths[a]) })
	for i := 1; i < len(classes); i++ {
		if depths[classes[i]] == depths[classes[i-1]] {
			return nil, errors.New(errors.PhaseBuild, errors.KindLogic).
				Type(classes[i-1].String()+"|"+classes[i].String()).
				Detail("classes at same hierarchy level (depth %d)", depths[classes[i]]).
				Build()
		}
	}

	out := make([]*types.Type, 0, len(members))
	out = append(out, plain...)
	out = append(out, classes...)
	return append(out, tail...), nil
}

func rank(t *types.Type) int {
	switch {
	case t.IsNull():
		return 0
	case t.IsScalar():
		switch t.Name() {
		case types.Bool:
			return 1
		case types.Int:
			return 2
		case types.Float:
			return 3
		case types.String:
			return 4
		}
		return 20
	case t.IsEnum():
		return 5
	case t.IsList():
		return 6
	case t.IsDict():
		return 7
	case t.IsAnyObject():
		return 10
	}
	return 15
}

// Condition returns the predicate selecting member t for the value at acc.
func Condition(t *types.Type, acc Accessor) ir.Expr {
	x := acc.Expr()
	switch t.NonNullable().Kind() {
	case types.KindNull:
		return ir.IsNil(x)
	case types.KindScalar:
		switch t.Name() {
		case types.Int:
			return ir.Fn(ir.FnIsInt, x)
		case types.Float:
			return ir.Fn(ir.FnIsFloat, x)
		case types.String:
			return ir.Fn(ir.FnIsString, x)
		case types.Bool:
			return ir.Fn(ir.FnIsBool, x)
		}
		return ir.Lit(true)
	case types.KindEnum:
		return ir.Fn(ir.FnIsEnum, ir.Lit(t.Class()), x)
	case types.KindList:
		return ir.Fn(ir.FnIsList, x)
	case types.KindDict:
		return ir.Fn(ir.FnIsDict, x)
	case types.KindObject:
		if t.IsAnyObject() {
			return ir.Fn(ir.FnIsObject, x)
		}
		return ir.Fn(ir.FnIsClass, ir.Lit(t.Class()), x)
	}
	return ir.Lit(false)
}
