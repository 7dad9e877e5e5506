// Package compiler turns optimized IR into persisted artifacts and links
// artifacts into executable programs.
//
// An artifact is a versioned binary encoding of the program tree.
// Compiling the same tree always yields the same bytes, so artifacts can be
// compared and content-addressed. Linking resolves every class, enum,
// builtin and service name once and produces a tree of closures; running a
// program performs no name lookups.
package compiler

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/ir"
)

// Version is the artifact format version.
const Version byte = 1

var magic = []byte("JSGN")

// Artifact is a compiled program with its identity.
type Artifact struct {
	Program   *ir.Block
	Signature string
	Direction string
}

type wireArtifact struct {
	Signature string
	Direction string
	Program   wireNode
}

// Compile encodes an artifact. Output is deterministic.
func Compile(a *Artifact) ([]byte, error) {
	if a == nil || a.Program == nil {
		return nil, errors.InvalidInput(errors.PhaseCompile, "nil program")
	}
	root, err := toWire(a.Program)
	if err != nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnsupportedType).
			Type(a.Signature).
			Cause(err).
			Detail("program cannot be encoded").
			Build()
	}

	var buf bytes.Buffer
	buf.Write(magic)
	buf.WriteByte(Version)

	enc := msgpack.NewEncoder(&buf)
	enc.UseArrayEncodedStructs(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(wireArtifact{Signature: a.Signature, Direction: a.Direction, Program: root}); err != nil {
		return nil, errors.Runtime(errors.PhaseCompile, "encode artifact", err)
	}
	return buf.Bytes(), nil
}

// Load decodes an artifact produced by Compile.
func Load(data []byte) (*Artifact, error) {
	if len(data) < len(magic)+1 || !bytes.Equal(data[:len(magic)], magic) {
		return nil, errors.New(errors.PhaseLink, errors.KindInvalidInput).
			Detail("not an artifact").
			Build()
	}
	if v := data[len(magic)]; v != Version {
		return nil, errors.New(errors.PhaseLink, errors.KindInvalidInput).
			Detail("artifact version %d, want %d", v, Version).
			Build()
	}

	var w wireArtifact
	if err := msgpack.Unmarshal(data[len(magic)+1:], &w); err != nil {
		return nil, errors.Runtime(errors.PhaseLink, "decode artifact", err)
	}
	node, err := fromWire(w.Program)
	if err != nil {
		return nil, errors.Runtime(errors.PhaseLink, "decode artifact program", err)
	}
	prog, ok := node.(*ir.Block)
	if !ok {
		return nil, errors.Runtime(errors.PhaseLink, fmt.Sprintf("artifact root is %T", node), nil)
	}
	return &Artifact{Program: prog, Signature: w.Signature, Direction: w.Direction}, nil
}

// Render prints an artifact as readable source.
func Render(a *Artifact) string {
	name := a.Direction
	if name == "" {
		name = "run"
	}
	return "// " + a.Signature + "\n" + ir.Render(name, a.Program)
}
