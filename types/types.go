package types

import (
	"slices"
	"strings"
	"sync"

	"github.com/wippyai/jsongen/errors"
)

type Kind uint8

const (
	KindScalar Kind = iota
	KindNull
	KindObject
	KindList
	KindDict
	KindEnum
	KindUnion
)

var kindNames = [...]string{
	KindScalar: "scalar",
	KindNull:   "null",
	KindObject: "object",
	KindList:   "list",
	KindDict:   "dict",
	KindEnum:   "enum",
	KindUnion:  "union",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scalar names.
const (
	Int    = "int"
	Float  = "float"
	String = "string"
	Bool   = "bool"
	Mixed  = "mixed"
)

// AnyObject is the class name of the generic-free "any object" type.
const AnyObject = "object"

// Type is an immutable semantic type. Instances are interned; compare with ==.
type Type struct {
	key      *Type
	value    *Type
	backing  *Type
	name     string
	sig      string
	params   []*Type
	members  []*Type
	kind     Kind
	nullable bool
	iterable bool
}

var interned sync.Map // signature -> *Type

func intern(t *Type) *Type {
	t.sig = t.render()
	if existing, ok := interned.Load(t.sig); ok {
		return existing.(*Type)
	}
	actual, _ := interned.LoadOrStore(t.sig, t)
	return actual.(*Type)
}

// Scalar returns the scalar type with the given name.
// Aliases integer, double and boolean are normalized.
func Scalar(name string) *Type {
	return intern(&Type{kind: KindScalar, name: normalizeScalar(name)})
}

// Null returns the null type.
func Null() *Type {
	return intern(&Type{kind: KindNull, name: "null", nullable: true})
}

// Object returns an object type for class with optional generic parameters.
func Object(class string, params ...*Type) *Type {
	return intern(&Type{kind: KindObject, name: class, params: slices.Clone(params)})
}

// List returns a list of value with an int key.
func List(value *Type) *Type {
	return intern(&Type{kind: KindList, key: Scalar(Int), value: value})
}

// Dict returns a dict from key to value.
func Dict(key, value *Type) *Type {
	return intern(&Type{kind: KindDict, key: key, value: value})
}

// Iterable marks a collection type as iterable-only. Non-collections are returned unchanged.
func Iterable(t *Type) *Type {
	if !t.IsCollection() || t.iterable {
		return t
	}
	cp := t.clone()
	cp.iterable = true
	return intern(cp)
}

// Enum returns an enum type for class backed by a scalar type.
func Enum(class string, backing *Type) *Type {
	return intern(&Type{kind: KindEnum, name: class, backing: backing})
}

// Union returns a union of members. Nested unions are flattened, duplicates
// removed, and nullable members are split into their non-null form plus null.
// A union that collapses to a single member returns that member.
func Union(members ...*Type) *Type {
	var flat []*Type
	seen := make(map[*Type]bool)
	add := func(m *Type) {
		if !seen[m] {
			seen[m] = true
			flat = append(flat, m)
		}
	}
	for _, m := range members {
		if m == nil {
			continue
		}
		if m.kind == KindUnion {
			for _, inner := range m.members {
				add(inner)
			}
			continue
		}
		if m.nullable && m.kind != KindNull {
			add(m.NonNullable())
			add(Null())
			continue
		}
		add(m)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	slices.SortFunc(flat, func(a, b *Type) int { return strings.Compare(a.sig, b.sig) })
	return intern(&Type{kind: KindUnion, members: flat})
}

// Nullable returns t marked nullable. Unions gain a null member.
func Nullable(t *Type) *Type {
	switch {
	case t.nullable:
		return t
	case t.kind == KindUnion:
		return Union(t, Null())
	}
	cp := t.clone()
	cp.nullable = true
	return intern(cp)
}

// NonNullable returns t without nullability. Unions lose their null member.
func (t *Type) NonNullable() *Type {
	switch t.kind {
	case KindNull:
		return t
	case KindUnion:
		var rest []*Type
		for _, m := range t.members {
			if m.kind != KindNull {
				rest = append(rest, m)
			}
		}
		return Union(rest...)
	}
	if !t.nullable {
		return t
	}
	cp := t.clone()
	cp.nullable = false
	return intern(cp)
}

func (t *Type) clone() *Type {
	cp := *t
	cp.sig = ""
	return &cp
}

func (t *Type) Kind() Kind { return t.kind }

// String returns the canonical signature.
func (t *Type) String() string { return t.sig }

func (t *Type) IsScalar() bool { return t.kind == KindScalar }
func (t *Type) IsNull() bool   { return t.kind == KindNull }
func (t *Type) IsObject() bool { return t.kind == KindObject }
func (t *Type) IsList() bool   { return t.kind == KindList }
func (t *Type) IsDict() bool   { return t.kind == KindDict }
func (t *Type) IsEnum() bool   { return t.kind == KindEnum }
func (t *Type) IsUnion() bool  { return t.kind == KindUnion }

// IsCollection reports whether t is a list or dict.
func (t *Type) IsCollection() bool { return t.kind == KindList || t.kind == KindDict }

// IsIterable reports whether t is an iterable-only collection.
func (t *Type) IsIterable() bool { return t.iterable }

// IsMixed reports whether t is the mixed scalar.
func (t *Type) IsMixed() bool { return t.kind == KindScalar && t.name == Mixed }

// IsAnyObject reports whether t is the generic-free "any object" type.
func (t *Type) IsAnyObject() bool { return t.kind == KindObject && t.name == AnyObject }

// IsNullable reports whether null is a valid value. For unions this is true
// iff a null member is present.
func (t *Type) IsNullable() bool {
	if t.kind == KindUnion {
		return slices.ContainsFunc(t.members, (*Type).IsNull)
	}
	return t.nullable
}

// Name returns the scalar name, or "" for non-scalars.
func (t *Type) Name() string {
	if t.kind == KindScalar {
		return t.name
	}
	return ""
}

// Class returns the class identity of an object or enum type.
func (t *Type) Class() string {
	if t.kind == KindObject || t.kind == KindEnum {
		return t.name
	}
	return ""
}

// GenericParams returns the generic parameters of an object type.
func (t *Type) GenericParams() []*Type { return slices.Clone(t.params) }

// Members returns the members of a union type.
func (t *Type) Members() []*Type { return slices.Clone(t.members) }

// Backing returns the backing scalar of an enum type.
func (t *Type) Backing() *Type { return t.backing }

// CollectionKeyType returns the key type of a list or dict.
func (t *Type) CollectionKeyType() (*Type, error) {
	if !t.IsCollection() {
		return nil, errors.Logic(errors.PhaseBuild, "collection key type requested on "+t.sig)
	}
	return t.key, nil
}

// CollectionValueType returns the value type of a list or dict.
func (t *Type) CollectionValueType() (*Type, error) {
	if !t.IsCollection() {
		return nil, errors.Logic(errors.PhaseBuild, "collection value type requested on "+t.sig)
	}
	return t.value, nil
}

// Category returns the structural category used by hook lookup.
func (t *Type) Category() string {
	return t.kind.String()
}

func (t *Type) render() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Type) write(b *strings.Builder) {
	if t.nullable && t.kind != KindNull {
		b.WriteByte('?')
	}
	switch t.kind {
	case KindScalar, KindNull:
		b.WriteString(t.name)
	case KindObject:
		b.WriteString(t.name)
		writeParams(b, t.params...)
	case KindList:
		if t.iterable {
			b.WriteString("iterable")
		} else {
			b.WriteString("list")
		}
		writeParams(b, t.value)
	case KindDict:
		if t.iterable {
			b.WriteString("iterable")
		} else {
			b.WriteString("dict")
		}
		writeParams(b, t.key, t.value)
	case KindEnum:
		b.WriteString("enum<")
		b.WriteString(t.name)
		b.WriteString(", ")
		b.WriteString(t.backing.sig)
		b.WriteByte('>')
	case KindUnion:
		for i, m := range t.members {
			if i > 0 {
				b.WriteByte('|')
			}
			b.WriteString(m.sig)
		}
	}
}

func writeParams(b *strings.Builder, params ...*Type) {
	if len(params) == 0 {
		return
	}
	b.WriteByte('<')
	for i, p := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.sig)
	}
	b.WriteByte('>')
}

func normalizeScalar(name string) string {
	switch name {
	case "integer":
		return Int
	case "double":
		return Float
	case "boolean":
		return Bool
	}
	return name
}

// IsScalarName reports whether name denotes a scalar (aliases included).
func IsScalarName(name string) bool {
	switch normalizeScalar(name) {
	case Int, Float, String, Bool, Mixed:
		return true
	}
	return false
}
