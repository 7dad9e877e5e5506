package descriptor

import (
	"maps"

	"github.com/wippyai/jsongen/errors"
)

// Record is the instance representation for classes without a Go type.
type Record struct {
	Values map[string]any
	Class  string
}

// NewRecord creates an empty record of class.
func NewRecord(class string) *Record {
	return &Record{Class: class, Values: make(map[string]any)}
}

// Clone returns a shallow copy of r.
func (r *Record) Clone() *Record {
	return &Record{Class: r.Class, Values: maps.Clone(r.Values)}
}

// RecordClass builds a Class whose instances are *Record values.
// Set checks assigned values against the field types using p for nested classes.
// A record of a subclass satisfies the Is predicate of its ancestors when p is a Hierarchy.
func RecordClass(p Provider, name, parent string, fields []Field) *Class {
	c := &Class{
		Name:   name,
		Parent: parent,
		Fields: fields,
	}

	c.New = func() any { return NewRecord(name) }

	c.Get = func(obj any, field string) (any, error) {
		r, ok := obj.(*Record)
		if !ok {
			return nil, errors.New(errors.PhaseEncode, errors.KindUnexpectedType).
				Type(name).
				Detail("expected *Record, got %T", obj).
				Build()
		}
		return r.Values[field], nil
	}

	c.Set = func(obj any, field string, value any) error {
		r, ok := obj.(*Record)
		if !ok {
			return errors.UnexpectedType([]string{name}, name, obj)
		}
		if f, known := c.Field(field); known && !Conforms(p, f.Type, value) {
			return errors.UnexpectedType([]string{name, field}, f.Type.String(), value)
		}
		r.Values[field] = value
		return nil
	}

	c.Is = func(v any) bool {
		r, ok := v.(*Record)
		if !ok {
			return false
		}
		if r.Class == name {
			return true
		}
		h, ok := p.(Hierarchy)
		return ok && h.IsAncestor(name, r.Class)
	}

	return c
}

// Entry is one element of a keyed sequence, the lazy form of a dict.
type Entry struct {
	Key   any
	Value any
}
