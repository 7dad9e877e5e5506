package template

import (
	"github.com/goccy/go-json"

	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/types"
)

// NodeKind identifies a DataModelNode variant.
type NodeKind uint8

const (
	NodeScalar NodeKind = iota
	NodeCollection
	NodeObject
	NodeUnion
	NodeHooked
)

var nodeKindNames = [...]string{
	NodeScalar:     "scalar",
	NodeCollection: "collection",
	NodeObject:     "object",
	NodeUnion:      "union",
	NodeHooked:     "hooked",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// DataModelNode is a typed, accessor-decorated generation subtree.
type DataModelNode struct {
	Type     *types.Type
	Accessor Accessor

	// Item is the element node of a collection.
	Item *DataModelNode
	// Fields are the object fields in declaration order.
	Fields []FieldNode
	// Branches are the union members in dispatch order.
	Branches []*DataModelNode
	// Replacement is the hook-supplied program of a hooked node.
	Replacement *ir.Block

	// Sep, Key and Value name the loop variables of a collection.
	Sep   string
	Key   string
	Value string

	Kind NodeKind
	// Nullable wraps the node in a null check.
	Nullable bool
	// Strict adds a failing else to a union.
	Strict bool
}

// FieldNode is one object field.
type FieldNode struct {
	Node *DataModelNode
	Name string
	Wire string
}

// Model builds the data model of t read from the root variable.
func Model(t *types.Type, ctx Context) (*DataModelNode, error) {
	if t == nil {
		return nil, errors.MissingType(errors.PhaseBuild, nil)
	}
	return model(t, Variable(ir.Root), ctx.reset())
}

// Build models t and lowers it to an unoptimized program.
func Build(t *types.Type, ctx Context) (*ir.Block, error) {
	n, err := Model(t, ctx)
	if err != nil {
		return nil, err
	}
	return Lower(n), nil
}

func model(t *types.Type, acc Accessor, ctx Context) (*DataModelNode, error) {
	if h, _, ok := ctx.Hooks.ForType(t); ok {
		out, err := h(HookInput{Type: t, Accessor: acc, Context: ctx})
		if err != nil {
			return nil, errors.WithPath(err, ctx.path...)
		}
		if out.Replace != nil {
			return hooked(t, acc, out.Replace), nil
		}
		t, acc, ctx = apply(out, t, acc, ctx)
	}
	return dispatch(t, acc, ctx)
}

// hooked wraps a replacement program. A nullable type still emits null
// itself; the replacement only sees non-null values.
func hooked(t *types.Type, acc Accessor, replace *ir.Block) *DataModelNode {
	return &DataModelNode{
		Kind:        NodeHooked,
		Type:        t,
		Accessor:    acc,
		Replacement: replace,
		Nullable:    t.IsNullable() && !t.IsUnion() && !t.IsNull(),
	}
}

func apply(out HookOutput, t *types.Type, acc Accessor, ctx Context) (*types.Type, Accessor, Context) {
	if out.Type != nil {
		t = out.Type
	}
	if out.Accessor != nil {
		acc = *out.Accessor
	}
	if out.Context != nil {
		next := *out.Context
		next.generated, next.counters, next.path = ctx.generated, ctx.counters, ctx.path
		ctx = next
	}
	return t, acc, ctx
}

func dispatch(t *types.Type, acc Accessor, ctx Context) (*DataModelNode, error) {
	nullable := t.IsNullable() && !t.IsUnion() && !t.IsNull()
	inner := t.NonNullable()

	var (
		n   *DataModelNode
		err error
	)
	switch {
	case inner.IsUnion():
		n, err = modelUnion(inner, acc, ctx)
	case inner.IsObject() && !inner.IsAnyObject():
		n, err = modelObject(inner, acc, ctx)
	case inner.IsCollection():
		n, err = modelCollection(inner, acc, ctx)
	default:
		n = &DataModelNode{Kind: NodeScalar, Type: inner, Accessor: acc}
	}
	if err != nil {
		return nil, err
	}
	n.Type = t
	n.Nullable = nullable
	return n, nil
}

func modelObject(t *types.Type, acc Accessor, ctx Context) (*DataModelNode, error) {
	class := t.Class()
	if ctx.Generating(class) {
		return nil, errors.CircularReference(ctx.Path(), class)
	}
	if ctx.Provider == nil {
		return nil, errors.Logic(errors.PhaseBuild, "no descriptor provider for class "+class)
	}
	desc, err := ctx.Provider.Class(class)
	if err != nil {
		return nil, errors.WithPath(err, ctx.path...)
	}
	ctx = ctx.enter(class)

	n := &DataModelNode{Kind: NodeObject, Type: t, Accessor: acc}
	for _, f := range desc.Fields {
		if !f.InGroups(ctx.Groups) {
			continue
		}
		fctx := ctx.at(f.Name)
		if f.Type == nil {
			return nil, errors.MissingType(errors.PhaseBuild, fctx.Path())
		}

		ft := f.Type
		facc := acc.Property(class, f.Name)
		if f.Formatter != "" {
			facc = facc.Call(ir.ServicePfx + f.Formatter)
		}

		if h, _, ok := ctx.Hooks.ForField(class, f.Name); ok {
			field := f
			out, err := h(HookInput{Type: ft, Accessor: facc, Context: fctx, Field: &field, Class: class})
			if err != nil {
				return nil, errors.WithPath(err, fctx.path...)
			}
			if out.Skip {
				continue
			}
			if out.Replace != nil {
				n.Fields = append(n.Fields, FieldNode{
					Name: f.Name,
					Wire: f.WireName(),
					Node: hooked(ft, facc, out.Replace),
				})
				continue
			}
			ft, facc, fctx = apply(out, ft, facc, fctx)
		}

		child, err := model(ft, facc, fctx)
		if err != nil {
			return nil, err
		}
		n.Fields = append(n.Fields, FieldNode{Name: f.Name, Wire: f.WireName(), Node: child})
	}
	return n, nil
}

func modelCollection(t *types.Type, acc Accessor, ctx Context) (*DataModelNode, error) {
	n := &DataModelNode{Kind: NodeCollection, Type: t, Accessor: acc}
	n.Sep, ctx = ctx.fresh("sep")
	n.Value, ctx = ctx.fresh("item")
	if t.IsDict() {
		n.Key, ctx = ctx.fresh("key")
	}

	value, err := t.CollectionValueType()
	if err != nil {
		return nil, err
	}
	item, err := model(value, Variable(n.Value), ctx.at("[]"))
	if err != nil {
		return nil, err
	}
	n.Item = item
	return n, nil
}

func modelUnion(t *types.Type, acc Accessor, ctx Context) (*DataModelNode, error) {
	members, err := OrderUnion(t.Members(), ctx.Provider)
	if err != nil {
		return nil, errors.WithPath(err, ctx.path...)
	}
	n := &DataModelNode{Kind: NodeUnion, Type: t, Accessor: acc, Strict: ctx.StrictUnions}
	for _, m := range members {
		b, err := model(m, acc, ctx)
		if err != nil {
			return nil, err
		}
		n.Branches = append(n.Branches, b)
	}
	return n, nil
}

// quoteKey renders a field name as a JSON object key.
func quoteKey(name string) string {
	b, err := json.Marshal(name)
	if err != nil {
		return `"` + name + `"`
	}
	return string(b)
}
