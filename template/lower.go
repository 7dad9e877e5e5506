package template

import (
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/types"
)

// Lower turns a data model into IR statements.
func Lower(n *DataModelNode) *ir.Block {
	b := &ir.Block{}
	lower(b, n)
	return b
}

func lower(b *ir.Block, n *DataModelNode) {
	if !n.Nullable {
		lowerValue(b, n)
		return
	}
	inner := &ir.Block{}
	lowerValue(inner, n)
	b.Stmts = append(b.Stmts, &ir.If{
		Branches: []ir.Branch{{Cond: ir.IsNil(n.Accessor.Expr()), Body: ir.Seq(ir.Text("null"))}},
		Else:     inner,
	})
}

func lowerValue(b *ir.Block, n *DataModelNode) {
	switch n.Kind {
	case NodeHooked:
		b.Stmts = append(b.Stmts, n.Replacement.Stmts...)

	case NodeScalar:
		b.Stmts = append(b.Stmts, &ir.Emit{Value: encodeCall(n.Type.NonNullable(), n.Accessor.Expr())})

	case NodeObject:
		b.Stmts = append(b.Stmts, ir.Text("{"))
		for i, f := range n.Fields {
			if i > 0 {
				b.Stmts = append(b.Stmts, ir.Text(","))
			}
			b.Stmts = append(b.Stmts, ir.Text(quoteKey(f.Wire)), ir.Text(":"))
			lower(b, f.Node)
		}
		b.Stmts = append(b.Stmts, ir.Text("}"))

	case NodeCollection:
		start, end := "[", "]"
		if n.Type.NonNullable().IsDict() {
			start, end = "{", "}"
		}
		body := ir.Seq(
			&ir.Emit{Value: ir.V(n.Sep)},
			&ir.Assign{Name: n.Sep, Value: ir.Lit(",")},
		)
		if n.Key != "" {
			body.Stmts = append(body.Stmts, &ir.Emit{Value: ir.Fn(ir.FnKey, ir.V(n.Key))}, ir.Text(":"))
		}
		lower(body, n.Item)
		b.Stmts = append(b.Stmts,
			ir.Text(start),
			&ir.Assign{Name: n.Sep, Value: ir.Lit("")},
			&ir.ForEach{Collection: n.Accessor.Expr(), Key: n.Key, Value: n.Value, Body: body},
			ir.Text(end),
		)

	case NodeUnion:
		stmt := &ir.If{}
		last := len(n.Branches) - 1
		for i, br := range n.Branches {
			body := &ir.Block{}
			lower(body, br)
			if i == last && !n.Strict {
				stmt.Else = body
				break
			}
			stmt.Branches = append(stmt.Branches, ir.Branch{Cond: Condition(br.Type, n.Accessor), Body: body})
		}
		if n.Strict {
			stmt.Else = ir.Seq(&ir.ExprStmt{X: ir.Fn(ir.FnFail,
				ir.Lit("value matches no member of "+n.Type.String()),
				n.Accessor.Expr(),
			)})
		}
		b.Stmts = append(b.Stmts, stmt)
	}
}

// encodeCall returns the expression encoding a scalar, enum, null or
// generic object value.
func encodeCall(t *types.Type, x ir.Expr) ir.Expr {
	switch t.Kind() {
	case types.KindNull:
		return ir.Lit("null")
	case types.KindEnum:
		return encodeCall(t.Backing(), ir.Fn(ir.FnEnumValue, ir.Lit(t.Class()), x))
	case types.KindScalar:
		switch t.Name() {
		case types.Int:
			return ir.Fn(ir.FnInt, x)
		case types.Float:
			return ir.Fn(ir.FnFloat, x)
		case types.String:
			return ir.Fn(ir.FnString, x)
		case types.Bool:
			return ir.Fn(ir.FnBool, x)
		}
	}
	return ir.Fn(ir.FnEncode, x)
}
