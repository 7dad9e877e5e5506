package template

import (
	"maps"
	"strconv"

	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/hook"
)

// Context is threaded through generation by value. Every branch receives a
// copy, so counters and the generated-class set flow down a path but never
// across siblings.
type Context struct {
	Provider descriptor.Provider
	Hooks    *hook.Registry[Hook]
	// Groups restricts objects to fields in these groups.
	Groups []string
	// StrictUnions makes the last union branch conditional, with a failing else.
	StrictUnions bool

	generated map[string]bool
	counters  map[string]int
	path      []string
}

// NewContext returns a context for one independent generation call.
func NewContext(p descriptor.Provider, hooks *hook.Registry[Hook]) Context {
	return Context{Provider: p, Hooks: hooks}
}

// Generating reports whether class is already being generated on this path.
func (c Context) Generating(class string) bool {
	return c.generated[class]
}

// Path returns the field path of the current node.
func (c Context) Path() []string {
	return append([]string(nil), c.path...)
}

func (c Context) enter(class string) Context {
	c.generated = maps.Clone(c.generated)
	if c.generated == nil {
		c.generated = make(map[string]bool)
	}
	c.generated[class] = true
	return c
}

func (c Context) at(segment string) Context {
	c.path = append(append([]string(nil), c.path...), segment)
	return c
}

// fresh returns a new variable name and the context that reserved it.
func (c Context) fresh(prefix string) (string, Context) {
	c.counters = maps.Clone(c.counters)
	if c.counters == nil {
		c.counters = make(map[string]int)
	}
	c.counters[prefix]++
	return "$" + prefix + strconv.Itoa(c.counters[prefix]), c
}

func (c Context) reset() Context {
	c.generated = nil
	c.counters = nil
	c.path = nil
	return c
}
