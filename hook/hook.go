// Package hook is a strategy registry for generation overrides.
//
// Strategies are registered under a selector from a small closed set of
// kinds and looked up in priority order. The registry is generic over the
// strategy type so the encode builder and the decoder each keep their own
// hook signatures.
//
// Type lookup order:
//   - Exact(signature)
//   - Class("?Name") for nullable objects and enums
//   - Class("Name")
//   - Category(kind), e.g. "object", "scalar", "list", "dict", "union"
//   - AnyType()
//
// Field lookup order:
//   - Field(class, field)
//   - AnyField()
package hook

import (
	"strings"

	"github.com/wippyai/jsongen/types"
)

// SelectorKind identifies how a selector matches.
type SelectorKind uint8

const (
	SelectExact SelectorKind = iota
	SelectClass
	SelectCategory
	SelectAnyType
	SelectField
	SelectAnyField
)

var selectorNames = [...]string{
	SelectExact:    "exact",
	SelectClass:    "class",
	SelectCategory: "category",
	SelectAnyType:  "type",
	SelectField:    "field",
	SelectAnyField: "any-field",
}

func (k SelectorKind) String() string {
	if int(k) < len(selectorNames) {
		return selectorNames[k]
	}
	return "unknown"
}

// Selector is a registry key.
type Selector struct {
	Key  string
	Kind SelectorKind
}

func (s Selector) String() string {
	if s.Key == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + ":" + s.Key
}

// Exact selects a canonical type signature. The signature is normalized
// through the type parser when it parses.
func Exact(signature string) Selector {
	if t, err := types.Parse(signature); err == nil {
		signature = t.String()
	}
	return Selector{Kind: SelectExact, Key: signature}
}

// Class selects a class or enum name. A leading "?" selects only the
// nullable form.
func Class(name string) Selector {
	return Selector{Kind: SelectClass, Key: strings.TrimPrefix(name, "\\")}
}

// Category selects a structural category.
func Category(name string) Selector {
	return Selector{Kind: SelectCategory, Key: name}
}

// AnyType is the catch-all type selector.
func AnyType() Selector {
	return Selector{Kind: SelectAnyType}
}

// Field selects one field of a class.
func Field(class, field string) Selector {
	return Selector{Kind: SelectField, Key: class + "." + field}
}

// AnyField is the catch-all field selector.
func AnyField() Selector {
	return Selector{Kind: SelectAnyField}
}

// Registry maps selectors to strategies of type H.
// A nil *Registry is valid and empty.
type Registry[H any] struct {
	hooks map[Selector]H
	order []Selector
}

// New creates an empty registry.
func New[H any]() *Registry[H] {
	return &Registry[H]{hooks: make(map[Selector]H)}
}

// Register adds h under sel. The first registration for a selector wins;
// Register reports false when sel was already taken.
func (r *Registry[H]) Register(sel Selector, h H) bool {
	if _, exists := r.hooks[sel]; exists {
		return false
	}
	r.hooks[sel] = h
	r.order = append(r.order, sel)
	return true
}

// Len returns the number of registered strategies.
func (r *Registry[H]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Selectors returns the registered selectors in registration order.
func (r *Registry[H]) Selectors() []Selector {
	if r == nil {
		return nil
	}
	return append([]Selector(nil), r.order...)
}

// Get returns the strategy registered under exactly sel.
func (r *Registry[H]) Get(sel Selector) (H, bool) {
	var zero H
	if r == nil {
		return zero, false
	}
	h, ok := r.hooks[sel]
	return h, ok
}

// ForType returns the highest-priority strategy matching t.
func (r *Registry[H]) ForType(t *types.Type) (H, Selector, bool) {
	var zero H
	if r == nil || len(r.hooks) == 0 {
		return zero, Selector{}, false
	}
	for _, sel := range TypeSelectors(t) {
		if h, ok := r.hooks[sel]; ok {
			return h, sel, true
		}
	}
	return zero, Selector{}, false
}

// ForField returns the highest-priority strategy for class.field.
func (r *Registry[H]) ForField(class, field string) (H, Selector, bool) {
	var zero H
	if r == nil || len(r.hooks) == 0 {
		return zero, Selector{}, false
	}
	for _, sel := range []Selector{Field(class, field), AnyField()} {
		if h, ok := r.hooks[sel]; ok {
			return h, sel, true
		}
	}
	return zero, Selector{}, false
}

// TypeSelectors lists the selectors consulted for t, highest priority first.
func TypeSelectors(t *types.Type) []Selector {
	sels := []Selector{{Kind: SelectExact, Key: t.String()}}
	if t.IsObject() || t.IsEnum() {
		if t.IsNullable() {
			sels = append(sels, Class("?"+t.Class()))
		}
		sels = append(sels, Class(t.Class()))
	}
	return append(sels, Category(t.Category()), AnyType())
}
