package decode

import (
	"bytes"
	"io"
	"iter"
	"slices"

	"github.com/goccy/go-json"

	"github.com/wippyai/jsongen/decode/lexer"
	"github.com/wippyai/jsongen/decode/split"
	"github.com/wippyai/jsongen/errors"
)

// value is one JSON value addressed either by a byte range or by a node of
// an already parsed tree.
type value interface {
	kind() lexer.Kind
	// decoded returns the value as plain Go values with json.Number numbers.
	decoded() (any, error)
	list() (iter.Seq2[value, error], error)
	dict() (iter.Seq2[member, error], error)
}

type member struct {
	val value
	key string
}

// rangeValue is a value held in src[b.Offset:b.End()].
type rangeValue struct {
	src io.ReaderAt
	b   split.Boundary
	k   lexer.Kind
}

func newRangeValue(src io.ReaderAt, b split.Boundary) (rangeValue, error) {
	if b.Length <= 0 {
		return rangeValue{}, errors.New(errors.PhaseDecode, errors.KindRuntime).
			Detail("offset %d: empty value", b.Offset).
			Build()
	}
	var first [1]byte
	if _, err := src.ReadAt(first[:], b.Offset); err != nil && err != io.EOF {
		return rangeValue{}, errors.Runtime(errors.PhaseDecode, "read value", err)
	}
	return rangeValue{src: src, b: b, k: kindOf(first[0])}, nil
}

// rootValue locates the first token of a range. Trailing content is checked
// by whichever reader consumes the value.
func rootValue(src io.ReaderAt, offset, length int64) (rangeValue, error) {
	for tok, err := range lexer.Tokens(src, offset, length) {
		if err != nil {
			return rangeValue{}, err
		}
		return rangeValue{
			src: src,
			b:   split.Boundary{Offset: tok.Offset, Length: offset + length - tok.Offset},
			k:   tok.Kind,
		}, nil
	}
	return rangeValue{}, errors.New(errors.PhaseDecode, errors.KindRuntime).
		Detail("offset %d: unexpected end of input", offset).
		Build()
}

func kindOf(b byte) lexer.Kind {
	switch b {
	case '{':
		return lexer.LBrace
	case '[':
		return lexer.LBracket
	case '"':
		return lexer.String
	case 't':
		return lexer.True
	case 'f':
		return lexer.False
	case 'n':
		return lexer.Null
	}
	return lexer.Number
}

func (r rangeValue) kind() lexer.Kind { return r.k }

func (r rangeValue) raw() ([]byte, error) {
	buf := make([]byte, r.b.Length)
	n, err := r.src.ReadAt(buf, r.b.Offset)
	if err != nil && !(err == io.EOF && int64(n) == r.b.Length) {
		return nil, errors.Runtime(errors.PhaseDecode, "read value", err)
	}
	return buf, nil
}

func (r rangeValue) decoded() (any, error) {
	raw, err := r.raw()
	if err != nil {
		return nil, err
	}
	return decodeRaw(raw, r.b.Offset, true)
}

func (r rangeValue) list() (iter.Seq2[value, error], error) {
	seq, ok, err := split.List(r.src, r.b.Offset, r.b.Length)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNull
	}
	return func(yield func(value, error) bool) {
		for b, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			v, err := newRangeValue(r.src, b)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}, nil
}

func (r rangeValue) dict() (iter.Seq2[member, error], error) {
	seq, ok, err := split.Dict(r.src, r.b.Offset, r.b.Length)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNull
	}
	return func(yield func(member, error) bool) {
		for f, err := range seq {
			if err != nil {
				yield(member{}, err)
				return
			}
			v, err := newRangeValue(r.src, f.Value)
			if !yield(member{key: f.Key, val: v}, err) || err != nil {
				return
			}
		}
	}, nil
}

// treeValue is a node of a document parsed up front.
type treeValue struct {
	v any
}

func (t treeValue) kind() lexer.Kind {
	switch x := t.v.(type) {
	case nil:
		return lexer.Null
	case bool:
		if x {
			return lexer.True
		}
		return lexer.False
	case string:
		return lexer.String
	case []any:
		return lexer.LBracket
	case map[string]any:
		return lexer.LBrace
	}
	return lexer.Number
}

func (t treeValue) decoded() (any, error) { return t.v, nil }

func (t treeValue) list() (iter.Seq2[value, error], error) {
	if t.v == nil {
		return nil, errNull
	}
	items, ok := t.v.([]any)
	if !ok {
		return nil, errShape(t.kind(), "list")
	}
	return func(yield func(value, error) bool) {
		for _, it := range items {
			if !yield(treeValue{it}, nil) {
				return
			}
		}
	}, nil
}

// dict iterates keys in sorted order; a parsed tree does not keep input order.
func (t treeValue) dict() (iter.Seq2[member, error], error) {
	if t.v == nil {
		return nil, errNull
	}
	m, ok := t.v.(map[string]any)
	if !ok {
		return nil, errShape(t.kind(), "dict")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return func(yield func(member, error) bool) {
		for _, k := range keys {
			if !yield(member{key: k, val: treeValue{m[k]}}, nil) {
				return
			}
		}
	}, nil
}

// parseTree parses a whole document for eager decoding.
func parseTree(data []byte) (treeValue, error) {
	v, err := decodeRaw(data, 0, true)
	if err != nil {
		return treeValue{}, err
	}
	return treeValue{v}, nil
}

// decodeRaw decodes one complete JSON text.
func decodeRaw(raw []byte, at int64, useNumber bool) (any, error) {
	if !json.Valid(raw) {
		return nil, errors.New(errors.PhaseDecode, errors.KindRuntime).
			Value(at).
			Detail("offset %d: invalid JSON", at).
			Build()
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindRuntime).
			Cause(err).
			Detail("offset %d: invalid JSON", at).
			Build()
	}
	return v, nil
}

var errNull = errors.New(errors.PhaseDecode, errors.KindUnexpectedValue).
	Detail("null for non-nullable value").
	Build()

func errShape(k lexer.Kind, want string) error {
	return errors.New(errors.PhaseDecode, errors.KindUnexpectedValue).
		Detail("expected %s, got %s", want, k).
		Build()
}
