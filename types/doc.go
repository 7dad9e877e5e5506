// Package types implements the semantic type model used by generation and decoding.
//
// A Type is an immutable tagged variant:
//
//	Kind      Example signature          Notes
//	─────────────────────────────────────────────────────────────
//	scalar    int, ?string, mixed        int, float, string, bool, mixed
//	null      null                       always nullable
//	object    User, Box<int>, object     class identity + generic params
//	list      list<int>                  key is always int
//	dict      dict<string, User>         key is int or string
//	enum      enum<Suit, string>         class + backing scalar
//	union     int|string|null            ≥ 2 members, flattened, sorted
//
// Every Type has a canonical String() form. Types are interned process-wide
// by that form, so two Types with the same signature are the same pointer and
// the signature doubles as a memoization and cache key.
//
// # Parsing
//
// Parse accepts the signature grammar:
//
//	type       ::= nullable? base | union
//	nullable   ::= "?"
//	base       ::= scalar | "null" | class-name | generic
//	generic    ::= base "<" type ("," type)? ">"
//	union      ::= type ("|" type)+
//
// Generic containers (list, array, iterable, dict) always normalize to a key
// and a value type. A single parameter becomes the value; the key defaults to
// int for list/array/iterable and to string for dict. array<string, V> is a
// dict. iterable<...> marks the collection as iterable-only, which decoders
// return as a lazy sequence.
package types
