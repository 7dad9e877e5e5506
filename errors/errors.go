package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseParse       Phase = "parse"       // type signature parsing
	PhaseBuild       Phase = "build"       // template generation
	PhaseCompile     Phase = "compile"     // artifact rendering
	PhaseLink        Phase = "link"        // artifact loading and linking
	PhaseCache       Phase = "cache"       // artifact persistence
	PhaseEncode      Phase = "encode"      // Go value to JSON
	PhaseDecode      Phase = "decode"      // JSON to Go value
	PhaseInstantiate Phase = "instantiate" // object construction
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedType            Kind = "unsupported_type"
	KindInvalidType                Kind = "invalid_type"
	KindMissingType                Kind = "missing_type"
	KindCircularReference          Kind = "circular_reference"
	KindLogic                      Kind = "logic_error"
	KindUnexpectedValue            Kind = "unexpected_value"
	KindUnexpectedType             Kind = "unexpected_type"
	KindInvalidConstructorArgument Kind = "invalid_constructor_argument"
	KindRuntime                    Kind = "runtime"
	KindNotFound                   Kind = "not_found"
	KindInvalidInput               Kind = "invalid_input"
)

// Error makes a bare Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return string(k)
}

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// An *Error target matches on phase and kind; a Kind target matches on kind only.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case *Error:
		return e.Phase == t.Phase && e.Kind == t.Kind
	case Kind:
		return e.Kind == t
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the type signature involved
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnsupportedType creates an error for a type construct without a strategy
func UnsupportedType(phase Phase, signature, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedType,
		Type:   signature,
		Detail: detail,
	}
}

// InvalidType creates an error for a malformed type signature
func InvalidType(phase Phase, signature, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidType,
		Type:   signature,
		Detail: detail,
	}
}

// MissingType creates an error for a field or parameter without a declared type
func MissingType(phase Phase, path []string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMissingType,
		Path:   path,
		Detail: "no declared type",
	}
}

// CircularReference creates an error for a class reappearing on one generation path
func CircularReference(path []string, class string) *Error {
	return &Error{
		Phase:  PhaseBuild,
		Kind:   KindCircularReference,
		Path:   path,
		Type:   class,
		Detail: fmt.Sprintf("class %q is already being generated on this path", class),
	}
}

// Logic creates a structural misuse error
func Logic(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindLogic,
		Detail: detail,
	}
}

// UnexpectedValue creates an error for a value that does not fit its type
func UnexpectedValue(phase Phase, path []string, signature string, value any, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnexpectedValue,
		Path:   path,
		Type:   signature,
		Value:  value,
		Detail: detail,
	}
}

// UnexpectedType creates an error for a late type check failure on assignment
func UnexpectedType(path []string, signature string, value any) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindUnexpectedType,
		Path:   path,
		Type:   signature,
		Value:  value,
		Detail: fmt.Sprintf("cannot assign %T", value),
	}
}

// InvalidConstructorArgument creates an error for an unresolved initializer parameter
func InvalidConstructorArgument(class, param string) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInvalidConstructorArgument,
		Path:   []string{class, param},
		Type:   class,
		Detail: fmt.Sprintf("parameter %q of %s has no value, no default and is not nullable", param, class),
	}
}

// Runtime creates a runtime failure error (malformed input, I/O)
func Runtime(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRuntime,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// WithPath returns a copy of err with path prepended, or err unchanged if it is not an *Error.
func WithPath(err error, path ...string) error {
	e, ok := err.(*Error)
	if !ok || len(path) == 0 {
		return err
	}
	cp := *e
	cp.Path = append(append([]string{}, path...), e.Path...)
	return &cp
}

// KindOf returns the kind of err if it is an *Error, or "" otherwise.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
