// Package ir is the intermediate representation produced by the template
// builder and consumed by the optimizer and compiler.
//
// A program is a *Block of statements. Expressions compute values from the
// root variable ($data) and loop bindings; statements emit fragments to the
// output sink, bind variables, branch and loop.
//
// # Builtins
//
// Call nodes reference functions by name. The compiler resolves every name
// at link time, so an unknown name is a link error rather than a runtime
// one. Names with the "service:" prefix are resolved through the service
// locator; the others are listed as Fn* constants.
package ir
