package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Render prints b as Go-like source. The output is deterministic and is
// meant for inspection; it is not compiled.
func Render(name string, b *Block) string {
	r := &renderer{}
	r.line(0, fmt.Sprintf("func %s(w Writer, %s any) error {", name, Root))
	r.block(1, b)
	r.line(1, "return nil")
	r.line(0, "}")
	return r.sb.String()
}

type renderer struct {
	sb strings.Builder
}

func (r *renderer) line(depth int, s string) {
	for range depth {
		r.sb.WriteByte('\t')
	}
	r.sb.WriteString(s)
	r.sb.WriteByte('\n')
}

func (r *renderer) block(depth int, b *Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		r.stmt(depth, s)
	}
}

func (r *renderer) stmt(depth int, s Stmt) {
	switch n := s.(type) {
	case *Emit:
		r.line(depth, "emit("+RenderExpr(n.Value)+")")
	case *Assign:
		r.line(depth, n.Name+" = "+RenderExpr(n.Value))
	case *ExprStmt:
		r.line(depth, RenderExpr(n.X))
	case *ForEach:
		key := n.Key
		if key == "" {
			key = "_"
		}
		r.line(depth, fmt.Sprintf("for %s, %s := range %s {", key, n.Value, RenderExpr(n.Collection)))
		r.block(depth+1, n.Body)
		r.line(depth, "}")
	case *If:
		for i, br := range n.Branches {
			prefix := "if "
			if i > 0 {
				prefix = "} else if "
			}
			r.line(depth, prefix+RenderExpr(br.Cond)+" {")
			r.block(depth+1, br.Body)
		}
		if n.Else != nil {
			if len(n.Branches) == 0 {
				r.line(depth, "{")
			} else {
				r.line(depth, "} else {")
			}
			r.block(depth+1, n.Else)
		}
		r.line(depth, "}")
	case *Block:
		r.line(depth, "{")
		r.block(depth+1, n)
		r.line(depth, "}")
	default:
		r.line(depth, fmt.Sprintf("/* unknown %T */", s))
	}
}

// RenderExpr prints a single expression.
func RenderExpr(e Expr) string {
	switch n := e.(type) {
	case *Literal:
		return renderLiteral(n.Value)
	case *Var:
		return n.Name
	case *Binary:
		return renderOperand(n.Left) + " " + n.Op + " " + renderOperand(n.Right)
	case *Unary:
		return n.Op + renderOperand(n.X)
	case *Call:
		return n.Func + "(" + renderArgs(n.Args) + ")"
	case *MethodCall:
		return renderOperand(n.Recv) + "." + n.Method + "(" + renderArgs(n.Args) + ")"
	case *Property:
		if n.Class == "" {
			return RenderExpr(n.X) + "[" + strconv.Quote(n.Name) + "]"
		}
		return RenderExpr(n.X) + ".(" + n.Class + ")." + n.Name
	case *Index:
		return RenderExpr(n.X) + "[" + RenderExpr(n.Key) + "]"
	case *Interpolated:
		parts := make([]string, len(n.Parts))
		for i, p := range n.Parts {
			parts[i] = renderOperand(p)
		}
		return "concat(" + strings.Join(parts, ", ") + ")"
	case *Raw:
		return "raw(" + strconv.Quote(n.Code) + ")"
	case nil:
		return "nil"
	}
	return fmt.Sprintf("/* unknown %T */", e)
}

func renderOperand(e Expr) string {
	if _, ok := e.(*Binary); ok {
		return "(" + RenderExpr(e) + ")"
	}
	return RenderExpr(e)
}

func renderArgs(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = RenderExpr(a)
	}
	return strings.Join(parts, ", ")
}

func renderLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
