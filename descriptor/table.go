package descriptor

import (
	"reflect"
	"sort"
	"sync"

	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/types"
)

// Table is a static Provider and Hierarchy.
type Table struct {
	classes map[string]*Class
	enums   map[string]*Enum
	goNames map[reflect.Type]string
	depths  sync.Map // class -> int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		classes: make(map[string]*Class),
		enums:   make(map[string]*Enum),
		goNames: make(map[reflect.Type]string),
	}
}

// Register adds a class. Registering the same name twice fails.
func (t *Table) Register(c *Class) error {
	if c == nil || c.Name == "" {
		return errors.InvalidInput(errors.PhaseConfig, "class must have a name")
	}
	if _, exists := t.classes[c.Name]; exists {
		return errors.New(errors.PhaseConfig, errors.KindLogic).
			Type(c.Name).
			Detail("class %q registered twice", c.Name).
			Build()
	}
	if _, exists := t.enums[c.Name]; exists {
		return errors.New(errors.PhaseConfig, errors.KindLogic).
			Type(c.Name).
			Detail("%q is already registered as an enum", c.Name).
			Build()
	}
	if c.New == nil || c.Get == nil || c.Set == nil {
		return errors.InvalidInput(errors.PhaseConfig, "class "+c.Name+" is missing accessors")
	}
	t.classes[c.Name] = c
	t.depths.Clear()
	return nil
}

// RegisterEnum adds an enum.
func (t *Table) RegisterEnum(e *Enum) error {
	if e == nil || e.Name == "" {
		return errors.InvalidInput(errors.PhaseConfig, "enum must have a name")
	}
	if e.Backing == nil || !e.Backing.IsScalar() {
		return errors.InvalidType(errors.PhaseConfig, e.Name, "enum backing must be a scalar")
	}
	if _, exists := t.classes[e.Name]; exists {
		return errors.New(errors.PhaseConfig, errors.KindLogic).
			Type(e.Name).
			Detail("%q is already registered as a class", e.Name).
			Build()
	}
	t.enums[e.Name] = e
	return nil
}

// Class implements Provider.
func (t *Table) Class(name string) (*Class, error) {
	c, ok := t.classes[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseBuild, "class", name)
	}
	return c, nil
}

// Enum implements Provider.
func (t *Table) Enum(name string) (*Enum, bool) {
	e, ok := t.enums[name]
	return e, ok
}

// Names returns the registered class and enum names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.classes)+len(t.enums))
	for n := range t.classes {
		names = append(names, n)
	}
	for n := range t.enums {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Depth implements Hierarchy. Unknown classes and broken parent chains stop counting.
func (t *Table) Depth(class string) int {
	if d, ok := t.depths.Load(class); ok {
		return d.(int)
	}
	depth := 0
	seen := map[string]bool{class: true}
	for c, ok := t.classes[class]; ok && c.Parent != ""; c, ok = t.classes[c.Parent] {
		if seen[c.Parent] {
			break
		}
		seen[c.Parent] = true
		depth++
	}
	t.depths.Store(class, depth)
	return depth
}

// IsAncestor implements Hierarchy.
func (t *Table) IsAncestor(ancestor, class string) bool {
	seen := map[string]bool{class: true}
	for c, ok := t.classes[class]; ok && c.Parent != ""; c, ok = t.classes[c.Parent] {
		if c.Parent == ancestor {
			return true
		}
		if seen[c.Parent] {
			return false
		}
		seen[c.Parent] = true
	}
	return false
}

// Member is an enum member for enums declared without a Go type.
type Member struct {
	Value any
	Enum  string
	Name  string
}

// NewEnum builds an enum whose members are Member values.
// Cases maps member names to backing values.
func NewEnum(name string, backing *types.Type, cases map[string]any) *Enum {
	members := make([]Member, 0, len(cases))
	for n, v := range cases {
		members = append(members, Member{Enum: name, Name: n, Value: v})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	return &Enum{
		Name:    name,
		Backing: backing,
		Value: func(member any) (any, bool) {
			m, ok := member.(Member)
			if !ok || m.Enum != name {
				return nil, false
			}
			return m.Value, true
		},
		From: func(b any) (any, bool) {
			for _, m := range members {
				if sameScalar(m.Value, b) {
					return m, true
				}
			}
			return nil, false
		},
		Is: func(v any) bool {
			m, ok := v.(Member)
			return ok && m.Enum == name
		},
	}
}
