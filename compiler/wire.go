package compiler

import (
	"fmt"

	"github.com/wippyai/jsongen/ir"
)

// Wire opcodes. Values are part of the artifact format; append only.
const (
	opLiteral uint8 = iota + 1
	opVar
	opBinary
	opUnary
	opCall
	opMethod
	opProperty
	opIndex
	opInterp
	opRaw
	opEmit
	opAssign
	opExprStmt
	opForEach
	opIf
	opBlock
)

// Literal tags.
const (
	litNil uint8 = iota
	litBool
	litInt
	litFloat
	litString
)

type wireNode struct {
	Lit  *wireLit
	Name string
	Aux  string
	Kids []wireNode
	Op   uint8
	Else bool
}

type wireLit struct {
	S   string
	I   int64
	F   float64
	Tag uint8
	B   bool
}

func toWire(n ir.Node) (wireNode, error) {
	switch x := n.(type) {
	case *ir.Literal:
		lit, err := toWireLit(x.Value)
		return wireNode{Op: opLiteral, Lit: lit}, err
	case *ir.Var:
		return wireNode{Op: opVar, Name: x.Name}, nil
	case *ir.Binary:
		return withKids(wireNode{Op: opBinary, Name: x.Op}, x.Left, x.Right)
	case *ir.Unary:
		return withKids(wireNode{Op: opUnary, Name: x.Op}, x.X)
	case *ir.Call:
		return withKids(wireNode{Op: opCall, Name: x.Func}, exprs(x.Args)...)
	case *ir.MethodCall:
		return withKids(wireNode{Op: opMethod, Name: x.Method}, append([]ir.Node{x.Recv}, exprs(x.Args)...)...)
	case *ir.Property:
		return withKids(wireNode{Op: opProperty, Name: x.Name, Aux: x.Class}, x.X)
	case *ir.Index:
		return withKids(wireNode{Op: opIndex}, x.X, x.Key)
	case *ir.Interpolated:
		return withKids(wireNode{Op: opInterp}, exprs(x.Parts)...)
	case *ir.Raw:
		return wireNode{Op: opRaw, Name: x.Code}, nil
	case *ir.Emit:
		return withKids(wireNode{Op: opEmit}, x.Value)
	case *ir.Assign:
		return withKids(wireNode{Op: opAssign, Name: x.Name}, x.Value)
	case *ir.ExprStmt:
		return withKids(wireNode{Op: opExprStmt}, x.X)
	case *ir.ForEach:
		return withKids(wireNode{Op: opForEach, Name: x.Key, Aux: x.Value}, x.Collection, x.Body)
	case *ir.If:
		kids := make([]ir.Node, 0, 2*len(x.Branches)+1)
		for _, br := range x.Branches {
			kids = append(kids, br.Cond, br.Body)
		}
		if x.Else != nil {
			kids = append(kids, x.Else)
		}
		return withKids(wireNode{Op: opIf, Else: x.Else != nil}, kids...)
	case *ir.Block:
		if x == nil {
			return wireNode{Op: opBlock}, nil
		}
		kids := make([]ir.Node, len(x.Stmts))
		for i, s := range x.Stmts {
			kids[i] = s
		}
		return withKids(wireNode{Op: opBlock}, kids...)
	}
	return wireNode{}, fmt.Errorf("unsupported node %T", n)
}

func exprs(es []ir.Expr) []ir.Node {
	out := make([]ir.Node, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

func withKids(w wireNode, kids ...ir.Node) (wireNode, error) {
	if len(kids) == 0 {
		return w, nil
	}
	w.Kids = make([]wireNode, len(kids))
	for i, k := range kids {
		kw, err := toWire(k)
		if err != nil {
			return wireNode{}, err
		}
		w.Kids[i] = kw
	}
	return w, nil
}

func toWireLit(v any) (*wireLit, error) {
	switch x := v.(type) {
	case nil:
		return &wireLit{Tag: litNil}, nil
	case bool:
		return &wireLit{Tag: litBool, B: x}, nil
	case int64:
		return &wireLit{Tag: litInt, I: x}, nil
	case int:
		return &wireLit{Tag: litInt, I: int64(x)}, nil
	case float64:
		return &wireLit{Tag: litFloat, F: x}, nil
	case string:
		return &wireLit{Tag: litString, S: x}, nil
	}
	return nil, fmt.Errorf("unsupported literal %T", v)
}

func fromWire(w wireNode) (ir.Node, error) {
	kids := make([]ir.Node, len(w.Kids))
	for i, k := range w.Kids {
		n, err := fromWire(k)
		if err != nil {
			return nil, err
		}
		kids[i] = n
	}

	expr := func(i int) (ir.Expr, error) {
		if i >= len(kids) {
			return nil, fmt.Errorf("opcode %d: missing operand %d", w.Op, i)
		}
		e, ok := kids[i].(ir.Expr)
		if !ok {
			return nil, fmt.Errorf("opcode %d: operand %d is %T, not an expression", w.Op, i, kids[i])
		}
		return e, nil
	}
	block := func(i int) (*ir.Block, error) {
		if i >= len(kids) {
			return nil, fmt.Errorf("opcode %d: missing block %d", w.Op, i)
		}
		b, ok := kids[i].(*ir.Block)
		if !ok {
			return nil, fmt.Errorf("opcode %d: operand %d is %T, not a block", w.Op, i, kids[i])
		}
		return b, nil
	}
	allExprs := func(from int) ([]ir.Expr, error) {
		var out []ir.Expr
		for i := from; i < len(kids); i++ {
			e, err := expr(i)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}

	switch w.Op {
	case opLiteral:
		if w.Lit == nil {
			return nil, fmt.Errorf("literal without value")
		}
		v, err := fromWireLit(w.Lit)
		return &ir.Literal{Value: v}, err
	case opVar:
		return &ir.Var{Name: w.Name}, nil
	case opBinary:
		l, err := expr(0)
		if err != nil {
			return nil, err
		}
		r, err := expr(1)
		return &ir.Binary{Op: w.Name, Left: l, Right: r}, err
	case opUnary:
		x, err := expr(0)
		return &ir.Unary{Op: w.Name, X: x}, err
	case opCall:
		args, err := allExprs(0)
		return &ir.Call{Func: w.Name, Args: args}, err
	case opMethod:
		recv, err := expr(0)
		if err != nil {
			return nil, err
		}
		args, err := allExprs(1)
		return &ir.MethodCall{Recv: recv, Method: w.Name, Args: args}, err
	case opProperty:
		x, err := expr(0)
		return &ir.Property{X: x, Class: w.Aux, Name: w.Name}, err
	case opIndex:
		x, err := expr(0)
		if err != nil {
			return nil, err
		}
		k, err := expr(1)
		return &ir.Index{X: x, Key: k}, err
	case opInterp:
		parts, err := allExprs(0)
		return &ir.Interpolated{Parts: parts}, err
	case opRaw:
		return &ir.Raw{Code: w.Name}, nil
	case opEmit:
		v, err := expr(0)
		return &ir.Emit{Value: v}, err
	case opAssign:
		v, err := expr(0)
		return &ir.Assign{Name: w.Name, Value: v}, err
	case opExprStmt:
		x, err := expr(0)
		return &ir.ExprStmt{X: x}, err
	case opForEach:
		coll, err := expr(0)
		if err != nil {
			return nil, err
		}
		body, err := block(1)
		return &ir.ForEach{Collection: coll, Key: w.Name, Value: w.Aux, Body: body}, err
	case opIf:
		n := &ir.If{}
		pairs := len(kids)
		if w.Else {
			pairs--
			b, err := block(pairs)
			if err != nil {
				return nil, err
			}
			n.Else = b
		}
		if pairs%2 != 0 {
			return nil, fmt.Errorf("if: odd branch operand count %d", pairs)
		}
		for i := 0; i < pairs; i += 2 {
			cond, err := expr(i)
			if err != nil {
				return nil, err
			}
			body, err := block(i + 1)
			if err != nil {
				return nil, err
			}
			n.Branches = append(n.Branches, ir.Branch{Cond: cond, Body: body})
		}
		return n, nil
	case opBlock:
		b := &ir.Block{Stmts: make([]ir.Stmt, len(kids))}
		for i, k := range kids {
			s, ok := k.(ir.Stmt)
			if !ok {
				return nil, fmt.Errorf("block: element %d is %T, not a statement", i, k)
			}
			b.Stmts[i] = s
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown opcode %d", w.Op)
}

func fromWireLit(l *wireLit) (any, error) {
	switch l.Tag {
	case litNil:
		return nil, nil
	case litBool:
		return l.B, nil
	case litInt:
		return l.I, nil
	case litFloat:
		return l.F, nil
	case litString:
		return l.S, nil
	}
	return nil, fmt.Errorf("unknown literal tag %d", l.Tag)
}
