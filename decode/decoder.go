// Package decode turns JSON into Go values, directed by a Type.
//
// A Compiler turns each Type into a tree of closures once, the same way the
// encode side compiles a program once per signature. The compiled Decoder
// then runs in one of two modes:
//
//   - lazy: the input stays in an io.ReaderAt and each value is addressed
//     by a byte range. Collections are split into element ranges and only
//     decoded when reached; iterable types come back as sequences.
//   - eager: the whole input is parsed into a generic tree first and the
//     same closures walk the tree.
//
// Values follow the engine's Go model: int64, float64, string, bool, nil,
// []any, map[string]any (map[any]any for int-keyed dicts), objects built by
// the Instantiator, enum members, and iter.Seq2 sequences for iterable types.
package decode

import (
	"bytes"
	"io"
	"iter"
	"strconv"
	"strings"
	"sync"

	"github.com/wippyai/jsongen/decode/lexer"
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/hook"
	"github.com/wippyai/jsongen/instantiate"
	"github.com/wippyai/jsongen/template"
	"github.com/wippyai/jsongen/types"
)

type decodeFn func(v value, ctx *Context) (any, error)

// Decoder is a compiled decoder for one Type.
type Decoder struct {
	typ      *types.Type
	fn       decodeFn
	compiler *Compiler
}

// Type returns the decoded type.
func (d *Decoder) Type() *types.Type {
	return d.typ
}

// Decode lazily decodes src[offset:offset+length].
func (d *Decoder) Decode(src io.ReaderAt, offset, length int64, ctx Context) (any, error) {
	v, err := rootValue(src, offset, length)
	if err != nil {
		return nil, err
	}
	return d.run(v, ctx)
}

// DecodeBytes lazily decodes data.
func (d *Decoder) DecodeBytes(data []byte, ctx Context) (any, error) {
	return d.Decode(bytes.NewReader(data), 0, int64(len(data)), ctx)
}

// DecodeEager parses data completely, then decodes the parsed tree.
func (d *Decoder) DecodeEager(data []byte, ctx Context) (any, error) {
	v, err := parseTree(data)
	if err != nil {
		return nil, err
	}
	return d.run(v, ctx)
}

func (d *Decoder) run(v value, ctx Context) (any, error) {
	if ctx.Instantiator == nil {
		ctx.Instantiator = d.compiler.instantiator
	}
	return d.fn(v, &ctx)
}

// Compiler compiles and memoizes decoders for one provider and hook set.
type Compiler struct {
	provider     descriptor.Provider
	hooks        *hook.Registry[Hook]
	instantiator *instantiate.Instantiator

	mu       sync.Mutex
	decoders map[string]*Decoder
}

// NewCompiler creates a compiler. hooks may be nil.
func NewCompiler(p descriptor.Provider, hooks *hook.Registry[Hook]) *Compiler {
	return &Compiler{
		provider:     p,
		hooks:        hooks,
		instantiator: instantiate.New(p),
		decoders:     make(map[string]*Decoder),
	}
}

// Instantiator returns the instantiator used when a Context carries none.
func (c *Compiler) Instantiator() *instantiate.Instantiator {
	return c.instantiator
}

// Compile returns the decoder for t, compiling it on first use.
// Recursive types are supported: a class may contain itself.
func (c *Compiler) Compile(t *types.Type) (*Decoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var added []string
	d, err := c.compile(t, &added)
	if err != nil {
		for _, sig := range added {
			delete(c.decoders, sig)
		}
		return nil, err
	}
	return d, nil
}

// Reset drops compiled decoders and instantiation plans.
func (c *Compiler) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decoders = make(map[string]*Decoder)
	c.instantiator.Reset()
}

func (c *Compiler) compile(t *types.Type, added *[]string) (*Decoder, error) {
	sig := t.String()
	if d, ok := c.decoders[sig]; ok {
		return d, nil
	}
	d := &Decoder{typ: t, compiler: c}
	c.decoders[sig] = d
	*added = append(*added, sig)

	fn, err := c.hooked(t, added)
	if err != nil {
		return nil, err
	}
	d.fn = fn
	return d, nil
}

// ref defers to d at run time so a decoder can refer to one still being
// compiled.
func ref(d *Decoder) decodeFn {
	return func(v value, ctx *Context) (any, error) {
		return d.fn(v, ctx)
	}
}

func (c *Compiler) hooked(t *types.Type, added *[]string) (decodeFn, error) {
	h, _, ok := c.hooks.ForType(t)
	if !ok {
		return c.build(t, added)
	}
	out, err := h(HookInput{Type: t})
	if err != nil {
		return nil, errors.WithPath(err, t.String())
	}

	var fn decodeFn
	if out.Type != nil && out.Type != t {
		d, err := c.compile(out.Type, added)
		if err != nil {
			return nil, err
		}
		fn = ref(d)
	} else {
		fn, err = c.build(t, added)
		if err != nil {
			return nil, err
		}
	}
	return transformed(fn, out.Transform), nil
}

func transformed(fn decodeFn, tf func(any) (any, error)) decodeFn {
	if tf == nil {
		return fn
	}
	return func(v value, ctx *Context) (any, error) {
		x, err := fn(v, ctx)
		if err != nil {
			return nil, err
		}
		return tf(x)
	}
}

func (c *Compiler) build(t *types.Type, added *[]string) (decodeFn, error) {
	var (
		fn  decodeFn
		err error
	)
	switch t.Kind() {
	case types.KindNull:
		return decodeNull(t), nil
	case types.KindScalar:
		fn = c.scalar(t)
	case types.KindEnum:
		fn, err = c.enum(t)
	case types.KindList:
		fn, err = c.list(t, added)
	case types.KindDict:
		fn, err = c.dict(t, added)
	case types.KindObject:
		fn, err = c.object(t, added)
	case types.KindUnion:
		return c.union(t, added)
	default:
		return nil, errors.UnsupportedType(errors.PhaseDecode, t.String(), "no decode strategy")
	}
	if err != nil {
		return nil, err
	}
	if t.IsNullable() || t.IsMixed() {
		return nullable(fn), nil
	}
	return nonNull(t, fn), nil
}

func nullable(fn decodeFn) decodeFn {
	return func(v value, ctx *Context) (any, error) {
		if v.kind() == lexer.Null {
			return nil, nil
		}
		return fn(v, ctx)
	}
}

func nonNull(t *types.Type, fn decodeFn) decodeFn {
	return func(v value, ctx *Context) (any, error) {
		if v.kind() == lexer.Null {
			return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, t.String(), nil, "null for non-nullable value")
		}
		return fn(v, ctx)
	}
}

func decodeNull(t *types.Type) decodeFn {
	return func(v value, _ *Context) (any, error) {
		if v.kind() != lexer.Null {
			return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, t.String(), v.kind().String(), "expected null")
		}
		return nil, nil
	}
}

func (c *Compiler) scalar(t *types.Type) decodeFn {
	name := t.Name()
	sig := t.String()
	return func(v value, ctx *Context) (any, error) {
		if name != types.Mixed {
			switch v.kind() {
			case lexer.LBrace, lexer.LBracket:
				return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, sig, v.kind().String(), "expected a scalar")
			}
		}
		raw, err := v.decoded()
		if err != nil {
			return nil, err
		}
		out, ok := cast(name, raw, ctx.UseNumber)
		if !ok {
			return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, sig, raw, "cannot cast to "+name)
		}
		return out, nil
	}
}

func (c *Compiler) enum(t *types.Type) (decodeFn, error) {
	e, ok := c.provider.Enum(t.Class())
	if !ok {
		return nil, errors.NotFound(errors.PhaseDecode, "enum", t.Class())
	}
	backing := c.scalar(e.Backing.NonNullable())
	sig := t.String()
	return func(v value, ctx *Context) (any, error) {
		b, err := backing(v, ctx)
		if err != nil {
			return nil, err
		}
		m, ok := e.From(b)
		if !ok {
			return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, sig, b, "no enum member with this value")
		}
		return m, nil
	}, nil
}

func (c *Compiler) list(t *types.Type, added *[]string) (decodeFn, error) {
	vt, err := t.CollectionValueType()
	if err != nil {
		return nil, err
	}
	d, err := c.compile(vt, added)
	if err != nil {
		return nil, err
	}
	item := ref(d)

	if t.IsIterable() {
		return func(v value, ctx *Context) (any, error) {
			items, err := v.list()
			if err != nil {
				return nil, err
			}
			var seq iter.Seq2[any, error] = func(yield func(any, error) bool) {
				i := 0
				for it, err := range items {
					if err != nil {
						yield(nil, err)
						return
					}
					x, err := item(it, ctx)
					if err != nil {
						yield(nil, errors.WithPath(err, strconv.Itoa(i)))
						return
					}
					if !yield(x, nil) {
						return
					}
					i++
				}
			}
			return seq, nil
		}, nil
	}

	return func(v value, ctx *Context) (any, error) {
		items, err := v.list()
		if err != nil {
			return nil, err
		}
		out := []any{}
		for it, err := range items {
			if err != nil {
				return nil, err
			}
			x, err := item(it, ctx)
			if err != nil {
				return nil, errors.WithPath(err, strconv.Itoa(len(out)))
			}
			out = append(out, x)
		}
		return out, nil
	}, nil
}

func (c *Compiler) dict(t *types.Type, added *[]string) (decodeFn, error) {
	kt, err := t.CollectionKeyType()
	if err != nil {
		return nil, err
	}
	vt, err := t.CollectionValueType()
	if err != nil {
		return nil, err
	}
	d, err := c.compile(vt, added)
	if err != nil {
		return nil, err
	}
	item := ref(d)
	keyName := kt.NonNullable().Name()

	// Non-string keys keep their cast value; the result is then map[any]any.
	stringKeys := keyName == types.String || keyName == types.Mixed || keyName == ""
	key := func(k string) (any, error) {
		if stringKeys {
			return k, nil
		}
		out, ok := cast(keyName, k, false)
		if !ok {
			return nil, errors.UnexpectedValue(errors.PhaseDecode, []string{k}, kt.String(), k, "invalid dict key")
		}
		return out, nil
	}

	if t.IsIterable() {
		return func(v value, ctx *Context) (any, error) {
			members, err := v.dict()
			if err != nil {
				return nil, err
			}
			var seq iter.Seq2[descriptor.Entry, error] = func(yield func(descriptor.Entry, error) bool) {
				for m, err := range members {
					if err != nil {
						yield(descriptor.Entry{}, err)
						return
					}
					k, err := key(m.key)
					if err != nil {
						yield(descriptor.Entry{}, err)
						return
					}
					x, err := item(m.val, ctx)
					if err != nil {
						yield(descriptor.Entry{}, errors.WithPath(err, m.key))
						return
					}
					if !yield(descriptor.Entry{Key: k, Value: x}, nil) {
						return
					}
				}
			}
			return seq, nil
		}, nil
	}

	return func(v value, ctx *Context) (any, error) {
		members, err := v.dict()
		if err != nil {
			return nil, err
		}
		var (
			out   map[string]any
			typed map[any]any
		)
		if stringKeys {
			out = map[string]any{}
		} else {
			typed = map[any]any{}
		}
		for m, err := range members {
			if err != nil {
				return nil, err
			}
			k, err := key(m.key)
			if err != nil {
				return nil, err
			}
			x, err := item(m.val, ctx)
			if err != nil {
				return nil, errors.WithPath(err, m.key)
			}
			if !stringKeys {
				typed[k] = x
				continue
			}
			out[m.key] = x
		}
		if !stringKeys {
			return typed, nil
		}
		return out, nil
	}, nil
}

type fieldDecoder struct {
	fn   decodeFn
	name string
}

func (c *Compiler) object(t *types.Type, added *[]string) (decodeFn, error) {
	if t.IsAnyObject() {
		return func(v value, ctx *Context) (any, error) {
			if v.kind() != lexer.LBrace {
				return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, t.String(), v.kind().String(), "expected an object")
			}
			raw, err := v.decoded()
			if err != nil {
				return nil, err
			}
			return normalize(raw, ctx.UseNumber), nil
		}, nil
	}

	class, err := c.provider.Class(t.Class())
	if err != nil {
		return nil, err
	}
	fields, err := c.fields(class, added)
	if err != nil {
		return nil, err
	}
	name := class.Name
	sig := t.String()

	return func(v value, ctx *Context) (any, error) {
		if v.kind() != lexer.LBrace {
			return nil, errors.UnexpectedValue(errors.PhaseDecode, nil, sig, v.kind().String(), "expected an object")
		}
		members, err := v.dict()
		if err != nil {
			return nil, err
		}
		providers := make(map[string]instantiate.Provider, len(fields))
		for m, err := range members {
			if err != nil {
				return nil, err
			}
			fd, ok := fields[m.key]
			if !ok {
				continue
			}
			providers[fd.name] = provide(fd.fn, m.val, ctx, m.key)
		}
		obj, err := ctx.Instantiator.Instantiate(name, providers, ctx.Errors)
		if err != nil {
			return nil, err
		}
		return obj, nil
	}, nil
}

func provide(fn decodeFn, v value, ctx *Context, key string) instantiate.Provider {
	return func() (any, error) {
		x, err := fn(v, ctx)
		if err != nil {
			return nil, errors.WithPath(err, key)
		}
		return x, nil
	}
}

// fields compiles the field decoders of class keyed by serialized name.
// Field hooks registered for undeclared keys add decoders for those keys.
func (c *Compiler) fields(class *descriptor.Class, added *[]string) (map[string]fieldDecoder, error) {
	out := make(map[string]fieldDecoder, len(class.Fields))
	for i := range class.Fields {
		f := &class.Fields[i]
		ft := f.Type
		if ft == nil {
			return nil, errors.MissingType(errors.PhaseDecode, []string{class.Name, f.Name})
		}

		var tf func(any) (any, error)
		if h, _, ok := c.hooks.ForField(class.Name, f.Name); ok {
			o, err := h(HookInput{Type: ft, Field: f, Class: class.Name, Key: f.WireName()})
			if err != nil {
				return nil, errors.WithPath(err, class.Name, f.Name)
			}
			if o.Skip {
				continue
			}
			if o.Type != nil {
				ft = o.Type
			}
			tf = o.Transform
		}

		d, err := c.compile(ft, added)
		if err != nil {
			return nil, errors.WithPath(err, class.Name, f.Name)
		}
		out[f.WireName()] = fieldDecoder{name: f.Name, fn: transformed(ref(d), tf)}
	}

	prefix := class.Name + "."
	for _, sel := range c.hooks.Selectors() {
		key, ok := strings.CutPrefix(sel.Key, prefix)
		if sel.Kind != hook.SelectField || !ok || key == "" {
			continue
		}
		if _, declared := class.Field(key); declared {
			continue
		}
		h, _ := c.hooks.Get(sel)
		o, err := h(HookInput{Type: types.Scalar(types.Mixed), Class: class.Name, Key: key})
		if err != nil {
			return nil, errors.WithPath(err, class.Name, key)
		}
		if o.Skip {
			continue
		}
		ft := o.Type
		if ft == nil {
			ft = types.Scalar(types.Mixed)
		}
		d, err := c.compile(ft, added)
		if err != nil {
			return nil, errors.WithPath(err, class.Name, key)
		}
		out[key] = fieldDecoder{name: key, fn: transformed(ref(d), o.Transform)}
	}
	return out, nil
}

type branch struct {
	t   *types.Type
	fn  decodeFn
	fit func(v value) bool
}

// union tries members in specificity order. A member is tried only when
// the value's JSON kind fits it; the first member that decodes wins.
func (c *Compiler) union(t *types.Type, added *[]string) (decodeFn, error) {
	ordered, err := template.OrderUnion(t.Members(), c.provider)
	if err != nil {
		return nil, errors.WithPath(err, t.String())
	}

	branches := make([]branch, 0, len(ordered))
	for _, m := range ordered {
		d, err := c.compile(m, added)
		if err != nil {
			return nil, err
		}
		branches = append(branches, branch{t: m, fn: ref(d), fit: c.fits(m)})
	}

	sig := t.String()
	return func(v value, ctx *Context) (any, error) {
		trial := *ctx
		trial.Errors = nil
		var last error
		for _, b := range branches {
			if !b.fit(v) {
				continue
			}
			x, err := b.fn(v, &trial)
			if err == nil {
				return x, nil
			}
			last = err
		}
		return nil, errors.New(errors.PhaseDecode, errors.KindUnexpectedValue).
			Type(sig).
			Value(v.kind().String()).
			Cause(last).
			Detail("no union member matches").
			Build()
	}, nil
}

func (c *Compiler) fits(t *types.Type) func(v value) bool {
	kinds := func(ks ...lexer.Kind) func(v value) bool {
		return func(v value) bool {
			k := v.kind()
			if k == lexer.Null && t.IsNullable() {
				return true
			}
			for _, want := range ks {
				if k == want {
					return true
				}
			}
			return false
		}
	}

	switch t.Kind() {
	case types.KindNull:
		return kinds(lexer.Null)
	case types.KindScalar:
		switch t.Name() {
		case types.Bool:
			return kinds(lexer.True, lexer.False)
		case types.Int:
			num := kinds(lexer.Number)
			return func(v value) bool {
				if !num(v) {
					return false
				}
				if v.kind() == lexer.Null {
					return true
				}
				raw, err := v.decoded()
				return err == nil && isIntText(raw)
			}
		case types.Float:
			return kinds(lexer.Number)
		case types.String:
			return kinds(lexer.String)
		}
		return func(value) bool { return true }
	case types.KindEnum:
		if e, ok := c.provider.Enum(t.Class()); ok {
			return c.fits(e.Backing)
		}
	case types.KindList:
		return kinds(lexer.LBracket)
	case types.KindDict, types.KindObject:
		return kinds(lexer.LBrace)
	}
	return func(value) bool { return false }
}
