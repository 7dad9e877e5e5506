// Package jsongen generates type-directed JSON encoders and decoders.
//
// A value is described by a type signature such as "?list<User>" or
// "int|string". The engine turns a signature into an encode program once,
// persists the program as a content-addressed artifact and reuses it for
// every value of that type. Decoding walks the input lazily: collections are
// split into element ranges and only the ranges a caller reads are decoded.
//
// # Architecture Overview
//
//	jsongen/             Engine: build, cache, link and run programs
//	├── types/           Signature parser and canonical Type model
//	├── descriptor/      Class, field and enum descriptors
//	│   ├── hclschema/   Descriptors declared in HCL files
//	│   └── witschema/   Descriptors derived from WIT type definitions
//	├── hook/            Selector registry for generation overrides
//	├── template/        Type -> data model -> IR (encode builder)
//	├── ir/              IR nodes, optimizer and text renderer
//	├── compiler/        IR <-> artifact bytes, artifact -> linked Program
//	├── cache/           On-disk and in-memory artifact cache with metrics
//	├── service/         Named formatters, including wasm exports
//	├── decode/          Type-directed decoder (lazy and eager)
//	│   ├── lexer/       Offset-tagged JSON tokens over io.ReaderAt ranges
//	│   └── split/       List and dict element boundaries
//	├── instantiate/     Object construction from value providers
//	├── config/          HCL engine configuration
//	└── errors/          Structured error types
//
// # Quick Start
//
// Describe a type and encode a value:
//
//	tbl := descriptor.NewTable()
//	if err := descriptor.Reflect(tbl, User{}, descriptor.WithName("User")); err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := jsongen.New(jsongen.WithProvider(tbl), jsongen.WithCacheDir(".jsongen"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	out, err := eng.EncodeBytes(ctx, "list<User>", users)
//
// Decode it back:
//
//	v, err := eng.Decode("list<User>", out)
//	users := v.([]any) // each element is a *User
//
// # Artifacts
//
// Encode programs are stored as {hash}.json.encode files in the cache
// directory. The hash covers the canonical signature, the direction, the
// format and the variant (active field groups and strict union mode), so
// changing any of them produces a different artifact. Artifacts are written
// to a temporary file and renamed into place; a partially written artifact
// is never visible. Use WithForce to rebuild artifacts that already exist.
//
// # Thread Safety
//
// Engine is safe for concurrent use once built. Linked programs are shared
// between callers; each run has its own frame. Lazily decoded iterables
// read from their source while being consumed, so the source must stay
// valid until iteration ends.
package jsongen
