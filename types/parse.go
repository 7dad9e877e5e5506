package types

import (
	"strings"
	"sync"

	"github.com/wippyai/jsongen/errors"
)

var parsed sync.Map // raw signature -> *Type

// Parse parses a type signature into an interned Type.
func Parse(signature string) (*Type, error) {
	if cached, ok := parsed.Load(signature); ok {
		return cached.(*Type), nil
	}

	p := &parser{src: signature}
	if err := p.lex(); err != nil {
		return nil, err
	}
	t, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		if tok.text == ">" {
			return nil, errors.InvalidType(errors.PhaseParse, signature, "unbalanced generic delimiters")
		}
		return nil, errors.InvalidType(errors.PhaseParse, signature, "unexpected "+quote(tok.text))
	}

	parsed.Store(signature, t)
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for tests and static tables.
func MustParse(signature string) *Type {
	t, err := Parse(signature)
	if err != nil {
		panic(err)
	}
	return t
}

// Declaration is the reflection-like output of a field descriptor provider.
type Declaration struct {
	// Declared is the native declared type signature.
	Declared string
	// Generic is an optional richer signature overriding Declared (e.g. from a doc comment).
	Generic string
	// Nullable marks the declaration as accepting null.
	Nullable bool
}

// FromDeclaration builds a Type from a provider declaration.
func FromDeclaration(d Declaration) (*Type, error) {
	sig := d.Generic
	if sig == "" {
		sig = d.Declared
	}
	if strings.TrimSpace(sig) == "" {
		return nil, errors.MissingType(errors.PhaseParse, nil)
	}
	t, err := Parse(sig)
	if err != nil {
		return nil, err
	}
	if d.Nullable {
		t = Nullable(t)
	}
	return t, nil
}

type sigToken struct {
	text string
	pos  int
}

type parser struct {
	src  string
	toks []sigToken
	pos  int
}

func (p *parser) lex() error {
	s := p.src
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '?' || c == '<' || c == '>' || c == ',' || c == '|':
			p.toks = append(p.toks, sigToken{text: string(c), pos: i})
			i++
		case c == '&':
			return errors.UnsupportedType(errors.PhaseParse, p.src, "intersection types are not supported")
		case isIdentStart(c):
			start := i
			for i < len(s) && isIdentPart(s[i]) {
				i++
			}
			p.toks = append(p.toks, sigToken{text: s[start:i], pos: start})
		default:
			return errors.UnsupportedType(errors.PhaseParse, p.src, "unexpected character "+quote(string(c)))
		}
	}
	if len(p.toks) == 0 {
		return errors.InvalidType(errors.PhaseParse, p.src, "empty signature")
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '\\' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '.' || (c >= '0' && c <= '9')
}

func (p *parser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos].text
	}
	return ""
}

func (p *parser) accept(text string) bool {
	if p.peek() == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseUnion() (*Type, error) {
	first, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.peek() != "|" {
		return first, nil
	}
	members := []*Type{first}
	for p.accept("|") {
		m, err := p.parseType()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return Union(members...), nil
}

func (p *parser) parseType() (*Type, error) {
	nullable := p.accept("?")
	base, err := p.parseBase()
	if err != nil {
		return nil, err
	}
	if nullable {
		return Nullable(base), nil
	}
	return base, nil
}

func (p *parser) parseBase() (*Type, error) {
	if p.pos >= len(p.toks) {
		return nil, errors.InvalidType(errors.PhaseParse, p.src, "unexpected end of signature")
	}
	name := p.toks[p.pos].text
	if !isIdentStart(name[0]) {
		return nil, errors.InvalidType(errors.PhaseParse, p.src, "expected type name, got "+quote(name))
	}
	p.pos++

	var params []*Type
	hasParams := false
	if p.accept("<") {
		hasParams = true
		for {
			if p.peek() == ">" && len(params) == 0 {
				break
			}
			param, err := p.parseUnion()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if !p.accept(",") {
				break
			}
		}
		if !p.accept(">") {
			return nil, errors.InvalidType(errors.PhaseParse, p.src, "unbalanced generic delimiters")
		}
	}

	return p.build(strings.TrimPrefix(name, "\\"), params, hasParams)
}

func (p *parser) build(name string, params []*Type, hasParams bool) (*Type, error) {
	lower := strings.ToLower(name)
	switch {
	case lower == "null":
		if hasParams {
			return nil, errors.InvalidType(errors.PhaseParse, p.src, "null takes no generic parameters")
		}
		return Null(), nil

	case IsScalarName(lower):
		if hasParams {
			return nil, errors.InvalidType(errors.PhaseParse, p.src, lower+" takes no generic parameters")
		}
		return Scalar(lower), nil

	case lower == "list" || lower == "array" || lower == "iterable" || lower == "dict":
		return p.buildCollection(lower, params)

	case lower == "enum":
		if len(params) != 2 || !params[0].IsObject() || !params[1].IsScalar() {
			return nil, errors.InvalidType(errors.PhaseParse, p.src, "enum requires a class and a backing scalar")
		}
		return Enum(params[0].Class(), params[1]), nil

	case lower == AnyObject:
		if hasParams {
			return nil, errors.InvalidType(errors.PhaseParse, p.src, "object takes no generic parameters")
		}
		return Object(AnyObject), nil
	}

	if hasParams && len(params) == 0 {
		return nil, errors.InvalidType(errors.PhaseParse, p.src, name+" has empty generic parameters")
	}
	return Object(name, params...), nil
}

func (p *parser) buildCollection(name string, params []*Type) (*Type, error) {
	var key, value *Type
	switch len(params) {
	case 0:
		return nil, errors.InvalidType(errors.PhaseParse, p.src, name+" requires generic parameters")
	case 1:
		value = params[0]
		if name == "dict" {
			key = Scalar(String)
		} else {
			key = Scalar(Int)
		}
	case 2:
		key, value = params[0], params[1]
	default:
		return nil, errors.InvalidType(errors.PhaseParse, p.src, name+" takes at most 2 generic parameters")
	}

	if key.Kind() != KindScalar || (key.Name() != Int && key.Name() != String) {
		return nil, errors.InvalidType(errors.PhaseParse, p.src, "collection key must be int or string, got "+key.String())
	}

	var t *Type
	switch {
	case name == "list" && key.Name() != Int:
		return nil, errors.InvalidType(errors.PhaseParse, p.src, "list key must be int")
	case name == "dict" || key.Name() == String:
		t = Dict(key, value)
	default:
		t = List(value)
	}
	if name == "iterable" {
		t = Iterable(t)
	}
	return t, nil
}

func quote(s string) string {
	return "\"" + s + "\""
}
