package ir

import "strings"

// Optimize returns a copy of b in which runs of adjacent constant-string
// emissions are merged into one. Nested loop and branch bodies are
// optimized too. The input is not modified.
func Optimize(b *Block) *Block {
	if b == nil {
		return nil
	}
	out := &Block{Stmts: make([]Stmt, 0, len(b.Stmts))}
	var run []string

	flush := func() {
		switch len(run) {
		case 0:
			return
		case 1:
			out.Stmts = append(out.Stmts, Text(run[0]))
		default:
			out.Stmts = append(out.Stmts, Text(strings.Join(run, "")))
		}
		run = run[:0]
	}

	for _, s := range b.Stmts {
		if text, ok := ConstText(s); ok {
			run = append(run, text)
			continue
		}
		flush()
		out.Stmts = append(out.Stmts, optimizeStmt(s))
	}
	flush()
	return out
}

func optimizeStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case *Block:
		return Optimize(n)
	case *ForEach:
		cp := *n
		cp.Body = Optimize(n.Body)
		return &cp
	case *If:
		cp := &If{Else: Optimize(n.Else), Branches: make([]Branch, len(n.Branches))}
		for i, br := range n.Branches {
			cp.Branches[i] = Branch{Cond: br.Cond, Body: Optimize(br.Body)}
		}
		return cp
	}
	return s
}

// ConstText reports whether s emits a constant string, and returns it.
func ConstText(s Stmt) (string, bool) {
	e, ok := s.(*Emit)
	if !ok {
		return "", false
	}
	lit, ok := e.Value.(*Literal)
	if !ok {
		return "", false
	}
	text, ok := lit.Value.(string)
	return text, ok
}

// CountEmits returns the number of Emit statements in the tree.
func CountEmits(b *Block) int {
	n := 0
	Walk(b, func(node Node) bool {
		if _, ok := node.(*Emit); ok {
			n++
		}
		return true
	})
	return n
}

// Walk visits node and its descendants depth-first in source order.
// Returning false from fn skips the children of the visited node.
func Walk(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	switch n := node.(type) {
	case *Block:
		if n == nil {
			return
		}
		for _, s := range n.Stmts {
			Walk(s, fn)
		}
	case *Emit:
		Walk(n.Value, fn)
	case *Assign:
		Walk(n.Value, fn)
	case *ExprStmt:
		Walk(n.X, fn)
	case *ForEach:
		Walk(n.Collection, fn)
		if n.Body != nil {
			Walk(n.Body, fn)
		}
	case *If:
		for _, br := range n.Branches {
			Walk(br.Cond, fn)
			if br.Body != nil {
				Walk(br.Body, fn)
			}
		}
		if n.Else != nil {
			Walk(n.Else, fn)
		}
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Unary:
		Walk(n.X, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *MethodCall:
		Walk(n.Recv, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *Property:
		Walk(n.X, fn)
	case *Index:
		Walk(n.X, fn)
		Walk(n.Key, fn)
	case *Interpolated:
		for _, p := range n.Parts {
			Walk(p, fn)
		}
	}
}
