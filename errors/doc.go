// Package errors provides structured error types for the jsongen library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: value path, type signature, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindUnexpectedValue).
//		Path("user", "age").
//		Type("int").
//		Detail("cannot cast %q to int", "abc").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidType(errors.PhaseParse, "list<int", "unbalanced generic delimiters")
//	err := errors.CircularReference(path, "User")
//
// All errors implement the standard error interface and support errors.Is/As.
// A bare Kind is itself an error and matches any *Error of that kind:
//
//	if errors.Is(err, errors.KindCircularReference) { ... }
package errors
