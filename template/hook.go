package template

import (
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/types"
)

// Hook intercepts generation for a matched selector.
type Hook func(in HookInput) (HookOutput, error)

// HookInput describes the node being generated.
type HookInput struct {
	Type     *types.Type
	Accessor Accessor
	Context  Context
	// Field is set for field hooks.
	Field *descriptor.Field
	// Class is the owning class for field hooks.
	Class string
}

// HookOutput rewrites generation. A zero HookOutput changes nothing.
type HookOutput struct {
	// Type replaces the node type, including its nullability.
	Type *types.Type
	// Accessor replaces where the value is read from.
	Accessor *Accessor
	// Context replaces the generation context for the subtree.
	Context *Context
	// Replace, when set, is emitted instead of the generated subtree.
	Replace *ir.Block
	// Skip drops a field entirely. Only meaningful for field hooks.
	Skip bool
}
