package compiler

import (
	"context"
	"fmt"
	"io"
	"reflect"

	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/service"
)

// Runtime supplies the names a program refers to.
type Runtime struct {
	Provider descriptor.Provider
	Services service.Locator
}

// Program is a linked, executable program.
type Program struct {
	body  stmtFn
	slots int
	root  int
}

// Run executes the program against value, writing output fragments to w
// as they are produced.
func (p *Program) Run(ctx context.Context, w io.Writer, value any) error {
	f := &frame{ctx: ctx, w: w, vars: make([]any, p.slots)}
	f.vars[p.root] = value
	return p.body(f)
}

type frame struct {
	ctx  context.Context
	w    io.Writer
	vars []any
}

func (f *frame) emit(v any) error {
	var err error
	switch s := v.(type) {
	case string:
		_, err = io.WriteString(f.w, s)
	case []byte:
		_, err = f.w.Write(s)
	default:
		return errors.New(errors.PhaseEncode, errors.KindLogic).
			Value(v).
			Detail("cannot emit %T", v).
			Build()
	}
	if err != nil {
		return errors.Runtime(errors.PhaseEncode, "write output", err)
	}
	return nil
}

type (
	exprFn func(*frame) (any, error)
	stmtFn func(*frame) error
)

// Link resolves b against rt.
func Link(b *ir.Block, rt Runtime) (*Program, error) {
	l := &linker{rt: rt, slots: map[string]int{ir.Root: 0}}
	body, err := l.block(b)
	if err != nil {
		return nil, err
	}
	return &Program{body: body, slots: len(l.slots), root: 0}, nil
}

type linker struct {
	rt    Runtime
	slots map[string]int
}

func (l *linker) slot(name string) int {
	if i, ok := l.slots[name]; ok {
		return i
	}
	i := len(l.slots)
	l.slots[name] = i
	return i
}

func (l *linker) block(b *ir.Block) (stmtFn, error) {
	if b == nil || len(b.Stmts) == 0 {
		return func(*frame) error { return nil }, nil
	}
	stmts := make([]stmtFn, len(b.Stmts))
	for i, s := range b.Stmts {
		fn, err := l.stmt(s)
		if err != nil {
			return nil, err
		}
		stmts[i] = fn
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return func(f *frame) error {
		for _, s := range stmts {
			if err := s(f); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (l *linker) stmt(s ir.Stmt) (stmtFn, error) {
	switch n := s.(type) {
	case *ir.Emit:
		if text, ok := ir.ConstText(n); ok {
			return func(f *frame) error { return f.emit(text) }, nil
		}
		v, err := l.expr(n.Value)
		if err != nil {
			return nil, err
		}
		return func(f *frame) error {
			x, err := v(f)
			if err != nil {
				return err
			}
			return f.emit(x)
		}, nil

	case *ir.Assign:
		v, err := l.expr(n.Value)
		if err != nil {
			return nil, err
		}
		slot := l.slot(n.Name)
		return func(f *frame) error {
			x, err := v(f)
			if err != nil {
				return err
			}
			f.vars[slot] = x
			return nil
		}, nil

	case *ir.ExprStmt:
		v, err := l.expr(n.X)
		if err != nil {
			return nil, err
		}
		return func(f *frame) error {
			_, err := v(f)
			return err
		}, nil

	case *ir.ForEach:
		return l.forEach(n)

	case *ir.If:
		return l.ifStmt(n)

	case *ir.Block:
		return l.block(n)
	}
	return nil, errors.New(errors.PhaseLink, errors.KindUnsupportedType).
		Detail("statement %T", s).
		Build()
}

func (l *linker) forEach(n *ir.ForEach) (stmtFn, error) {
	coll, err := l.expr(n.Collection)
	if err != nil {
		return nil, err
	}
	key := -1
	if n.Key != "" {
		key = l.slot(n.Key)
	}
	value := l.slot(n.Value)
	body, err := l.block(n.Body)
	if err != nil {
		return nil, err
	}

	return func(f *frame) error {
		c, err := coll(f)
		if err != nil {
			return err
		}
		return each(c, func(k, v any) error {
			if err := f.ctx.Err(); err != nil {
				return err
			}
			if key >= 0 {
				f.vars[key] = k
			}
			f.vars[value] = v
			return body(f)
		})
	}, nil
}

func (l *linker) ifStmt(n *ir.If) (stmtFn, error) {
	conds := make([]exprFn, len(n.Branches))
	bodies := make([]stmtFn, len(n.Branches))
	for i, br := range n.Branches {
		c, err := l.expr(br.Cond)
		if err != nil {
			return nil, err
		}
		b, err := l.block(br.Body)
		if err != nil {
			return nil, err
		}
		conds[i], bodies[i] = c, b
	}
	var elseFn stmtFn
	if n.Else != nil {
		b, err := l.block(n.Else)
		if err != nil {
			return nil, err
		}
		elseFn = b
	}

	return func(f *frame) error {
		for i, c := range conds {
			v, err := c(f)
			if err != nil {
				return err
			}
			if truthy(v) {
				return bodies[i](f)
			}
		}
		if elseFn != nil {
			return elseFn(f)
		}
		return nil
	}, nil
}

func (l *linker) expr(e ir.Expr) (exprFn, error) {
	switch n := e.(type) {
	case *ir.Literal:
		v := n.Value
		return func(*frame) (any, error) { return v, nil }, nil

	case *ir.Var:
		slot := l.slot(n.Name)
		return func(f *frame) (any, error) { return f.vars[slot], nil }, nil

	case *ir.Raw:
		code := n.Code
		return func(*frame) (any, error) { return code, nil }, nil

	case *ir.Binary:
		return l.binary(n)

	case *ir.Unary:
		if n.Op != ir.OpNot {
			return nil, errors.New(errors.PhaseLink, errors.KindUnsupportedType).Detail("unary operator %q", n.Op).Build()
		}
		x, err := l.expr(n.X)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			v, err := x(f)
			if err != nil {
				return nil, err
			}
			return !truthy(v), nil
		}, nil

	case *ir.Call:
		return l.call(n)

	case *ir.MethodCall:
		return l.method(n)

	case *ir.Property:
		return l.property(n)

	case *ir.Index:
		x, err := l.expr(n.X)
		if err != nil {
			return nil, err
		}
		k, err := l.expr(n.Key)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			c, err := x(f)
			if err != nil {
				return nil, err
			}
			key, err := k(f)
			if err != nil {
				return nil, err
			}
			return index(c, key)
		}, nil

	case *ir.Interpolated:
		parts := make([]exprFn, len(n.Parts))
		for i, p := range n.Parts {
			fn, err := l.expr(p)
			if err != nil {
				return nil, err
			}
			parts[i] = fn
		}
		return func(f *frame) (any, error) {
			var out []byte
			for _, p := range parts {
				v, err := p(f)
				if err != nil {
					return nil, err
				}
				out = fmt.Append(out, v)
			}
			return string(out), nil
		}, nil
	}
	return nil, errors.New(errors.PhaseLink, errors.KindUnsupportedType).
		Detail("expression %T", e).
		Build()
}

func (l *linker) binary(n *ir.Binary) (exprFn, error) {
	left, err := l.expr(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := l.expr(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case ir.OpAnd, ir.OpOr:
		and := n.Op == ir.OpAnd
		return func(f *frame) (any, error) {
			a, err := left(f)
			if err != nil {
				return nil, err
			}
			if truthy(a) != and {
				return !and, nil
			}
			b, err := right(f)
			if err != nil {
				return nil, err
			}
			return truthy(b), nil
		}, nil

	case ir.OpEq, ir.OpNe:
		eq := n.Op == ir.OpEq
		return func(f *frame) (any, error) {
			a, err := left(f)
			if err != nil {
				return nil, err
			}
			b, err := right(f)
			if err != nil {
				return nil, err
			}
			return equal(a, b) == eq, nil
		}, nil
	}
	return nil, errors.New(errors.PhaseLink, errors.KindUnsupportedType).
		Detail("binary operator %q", n.Op).
		Build()
}

func (l *linker) property(n *ir.Property) (exprFn, error) {
	x, err := l.expr(n.X)
	if err != nil {
		return nil, err
	}
	name := n.Name

	if n.Class == "" {
		return func(f *frame) (any, error) {
			obj, err := x(f)
			if err != nil {
				return nil, err
			}
			return index(obj, name)
		}, nil
	}

	if l.rt.Provider == nil {
		return nil, errors.Logic(errors.PhaseLink, "no descriptor provider for class "+n.Class)
	}
	class, err := l.rt.Provider.Class(n.Class)
	if err != nil {
		return nil, errors.WithPath(err, n.Class)
	}
	return func(f *frame) (any, error) {
		obj, err := x(f)
		if err != nil {
			return nil, err
		}
		if isNil(obj) {
			return nil, errors.UnexpectedValue(errors.PhaseEncode, []string{class.Name}, class.Name, nil, "null where non-nullable")
		}
		return class.Get(obj, name)
	}, nil
}

func (l *linker) method(n *ir.MethodCall) (exprFn, error) {
	recv, err := l.expr(n.Recv)
	if err != nil {
		return nil, err
	}
	args, err := l.args(n.Args)
	if err != nil {
		return nil, err
	}
	name := n.Method

	return func(f *frame) (any, error) {
		r, err := recv(f)
		if err != nil {
			return nil, err
		}
		m := reflect.ValueOf(r).MethodByName(name)
		if !m.IsValid() {
			return nil, errors.NotFound(errors.PhaseEncode, "method", fmt.Sprintf("%T.%s", r, name))
		}
		if m.Type().NumIn() != len(args) {
			return nil, errors.InvalidInput(errors.PhaseEncode, fmt.Sprintf("method %s takes %d arguments", name, m.Type().NumIn()))
		}
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := a(f)
			if err != nil {
				return nil, err
			}
			if v == nil {
				in[i] = reflect.Zero(m.Type().In(i))
			} else {
				in[i] = reflect.ValueOf(v)
			}
		}
		out := m.Call(in)
		switch len(out) {
		case 0:
			return nil, nil
		case 1:
			return out[0].Interface(), nil
		}
		if e, ok := out[len(out)-1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return out[0].Interface(), nil
	}, nil
}

func (l *linker) args(es []ir.Expr) ([]exprFn, error) {
	out := make([]exprFn, len(es))
	for i, e := range es {
		fn, err := l.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
