// Package template turns a type into an encode program.
//
// Generation runs in two steps. Model walks the type, consulting hooks and
// the descriptor provider, and produces a tree of DataModelNodes, each
// carrying the originating type and an Accessor describing where the value
// is read from. Lower then turns the model into IR statements. Build does
// both.
//
// Generation errors are always fatal: no partial program is returned.
package template
