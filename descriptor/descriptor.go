package descriptor

import (
	"slices"

	"github.com/wippyai/jsongen/types"
)

// Provider supplies class and enum descriptors.
type Provider interface {
	// Class returns the descriptor for name or a not_found error.
	Class(name string) (*Class, error)
	// Enum returns the enum descriptor for name, if name is an enum.
	Enum(name string) (*Enum, bool)
}

// Hierarchy answers class ancestry questions.
type Hierarchy interface {
	// Depth is the number of ancestors of class (0 for a root class).
	Depth(class string) int
	// IsAncestor reports whether ancestor is a strict ancestor of class.
	IsAncestor(ancestor, class string) bool
}

// Field describes one serializable field.
type Field struct {
	Type *types.Type
	// Name is the logical name used by Get, Set and constructor parameters.
	Name string
	// Wire is the serialized name; empty means Name.
	Wire string
	// Formatter names a service applied to the value before encoding.
	Formatter string
	// Groups restricts the field to the listed groups; empty means always.
	Groups []string
}

// WireName returns the serialized field name.
func (f Field) WireName() string {
	if f.Wire != "" {
		return f.Wire
	}
	return f.Name
}

// InGroups reports whether the field is active for the given groups.
// Fields without groups are always active, and no active groups selects everything.
func (f Field) InGroups(active []string) bool {
	if len(active) == 0 || len(f.Groups) == 0 {
		return true
	}
	for _, g := range f.Groups {
		if slices.Contains(active, g) {
			return true
		}
	}
	return false
}

// Param describes one constructor parameter.
type Param struct {
	Default    any
	Type       *types.Type
	Name       string
	HasDefault bool
}

// Constructor describes a declared initializer.
type Constructor struct {
	Call       func(args []any) (any, error)
	Params     []Param
	Accessible bool
}

// Class describes an object type.
type Class struct {
	// New constructs an instance without invoking the constructor.
	New func() any
	// Get reads a field by logical name.
	Get func(obj any, field string) (any, error)
	// Set assigns a field by logical name, failing unexpected_type on mismatch.
	Set func(obj any, field string, value any) error
	// Is is the validity predicate used for union dispatch.
	Is func(v any) bool
	// Constructor is nil when no initializer is declared.
	Constructor *Constructor
	Name        string
	Parent      string
	Fields      []Field
}

// Field returns the field with the given logical name.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldByWire returns the field with the given serialized name.
func (c *Class) FieldByWire(wire string) (Field, bool) {
	for _, f := range c.Fields {
		if f.WireName() == wire {
			return f, true
		}
	}
	return Field{}, false
}

// Enum describes a backed enumeration.
type Enum struct {
	Backing *types.Type
	// Value converts a member to its backing value.
	Value func(member any) (any, bool)
	// From converts a backing value to its member.
	From func(backing any) (any, bool)
	// Is is the validity predicate used for union dispatch.
	Is   func(v any) bool
	Name string
}

// Type returns the enum as a type.
func (e *Enum) Type() *types.Type {
	return types.Enum(e.Name, e.Backing)
}
