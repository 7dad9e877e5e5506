// Package descriptor provides the field descriptor tables consumed by
// generation and decoding.
//
// Field discovery happens once, ahead of generation: a Provider answers
// "which fields does class X have, in which order, with which types" and
// hands out accessors (New, Get, Set, Is) so generated code never inspects
// live values beyond what the table already resolved.
//
// # Key Types
//
//	Provider   - class and enum lookup
//	Hierarchy  - ancestor and depth queries used to order union members
//	Table      - static Provider + Hierarchy populated at startup
//	Class      - ordered fields, optional constructor, accessors
//	Enum       - backed enumeration with member <-> backing conversion
//	Record     - map-backed instance for classes without a Go type
//
// # Populating a Table
//
// Classes can be registered by hand, derived from Go structs with Reflect,
// loaded from HCL schema files (descriptor/hclschema) or adapted from WIT
// records (descriptor/witschema).
//
//	table := descriptor.NewTable()
//	err := descriptor.Reflect(table, User{},
//		descriptor.WithConstructor([]string{"id"}, func(args []any) (any, error) {
//			return &User{ID: args[0].(int64)}, nil
//		}))
//
// # Thread Safety
//
// A Table is safe for concurrent reads once registration is complete.
// Registration is not synchronized with lookups.
package descriptor
