package template

import "github.com/wippyai/jsongen/ir"

// Accessor is a symbolic reference to where a value comes from: a variable,
// a property path or a computed expression.
type Accessor struct {
	expr ir.Expr
	path string
}

// Variable returns an accessor reading a bound variable.
func Variable(name string) Accessor {
	return Accessor{expr: ir.V(name), path: name}
}

// Computed wraps an arbitrary expression. Label is used in error paths.
func Computed(e ir.Expr, label string) Accessor {
	return Accessor{expr: e, path: label}
}

// Property returns an accessor reading field of the object at a.
func (a Accessor) Property(class, field string) Accessor {
	return Accessor{
		expr: &ir.Property{X: a.expr, Class: class, Name: field},
		path: a.path + "." + field,
	}
}

// Call returns an accessor applying fn to the value at a.
func (a Accessor) Call(fn string) Accessor {
	return Accessor{expr: ir.Fn(fn, a.expr), path: fn + "(" + a.path + ")"}
}

// Expr returns the IR expression.
func (a Accessor) Expr() ir.Expr { return a.expr }

// String returns the readable path.
func (a Accessor) String() string { return a.path }

// IsZero reports whether a is unset.
func (a Accessor) IsZero() bool { return a.expr == nil }
