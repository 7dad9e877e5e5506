package decode

import (
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/instantiate"
	"github.com/wippyai/jsongen/types"
)

// Context carries the per-call options of a decode. Decoders read it and
// never modify it; collected errors go to the shared Errors collector.
type Context struct {
	// Instantiator builds objects. Nil uses the compiler's own.
	Instantiator *instantiate.Instantiator
	// Errors, when set, collects object construction and assignment errors
	// instead of failing the decode.
	Errors *instantiate.Collector
	// UseNumber keeps numbers of mixed values as json.Number.
	UseNumber bool
}

// CollectErrors reports whether errors are being collected.
func (c Context) CollectErrors() bool {
	return c.Errors.Collecting()
}

// Hook intercepts decoding for a matched selector.
type Hook func(in HookInput) (HookOutput, error)

// HookInput describes the type or field being compiled.
type HookInput struct {
	Type *types.Type
	// Field is set for field hooks; nil for undeclared keys.
	Field *descriptor.Field
	// Class and Key are set for field hooks.
	Class string
	Key   string
}

// HookOutput rewrites decoding. A zero HookOutput changes nothing.
type HookOutput struct {
	// Type decodes the value as this type instead.
	Type *types.Type
	// Transform is applied to the decoded value.
	Transform func(v any) (any, error)
	// Skip ignores the key. Only meaningful for field hooks.
	Skip bool
}
