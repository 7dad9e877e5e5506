// Package instantiate builds objects from decoded field values.
//
// Field values arrive as providers, deferred computations evaluated only
// when the value is consumed. A class with an accessible constructor is
// built by resolving each parameter from a provider, its default, or nil
// when nullable. Providers the constructor did not consume are assigned
// afterwards through the class setter.
package instantiate

import (
	"slices"
	"sync"

	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/types"
)

// Provider yields one field value.
type Provider func() (any, error)

// Value returns a provider for an already decoded value.
func Value(v any) Provider {
	return func() (any, error) { return v, nil }
}

// Instantiator constructs objects for a descriptor provider. It caches the
// constructor plan of each class; instances are never shared.
type Instantiator struct {
	classes descriptor.Provider
	plans   sync.Map // class name -> *plan
}

// New creates an instantiator.
func New(p descriptor.Provider) *Instantiator {
	return &Instantiator{classes: p}
}

// Reset drops cached plans.
func (in *Instantiator) Reset() {
	in.plans.Clear()
}

type param struct {
	def      any
	typ      *types.Type
	name     string
	hasDef   bool
	nullable bool
}

type plan struct {
	class  *descriptor.Class
	params []param
	// useCtor is false when there is no constructor or it is inaccessible.
	useCtor bool
	// order lists declared field names; assignment follows it.
	order []string
}

func (in *Instantiator) plan(class string) (*plan, error) {
	if p, ok := in.plans.Load(class); ok {
		return p.(*plan), nil
	}
	c, err := in.classes.Class(class)
	if err != nil {
		return nil, errors.WithPath(err, class)
	}

	p := &plan{class: c}
	for _, f := range c.Fields {
		p.order = append(p.order, f.Name)
	}
	if ctor := c.Constructor; ctor != nil && ctor.Accessible && ctor.Call != nil {
		p.useCtor = true
		for _, cp := range ctor.Params {
			p.params = append(p.params, param{
				name:     cp.Name,
				typ:      cp.Type,
				def:      cp.Default,
				hasDef:   cp.HasDefault,
				nullable: cp.Type == nil || cp.Type.IsNullable() || cp.Type.IsMixed(),
			})
		}
	}

	actual, _ := in.plans.LoadOrStore(class, p)
	return actual.(*plan), nil
}

// Instantiate builds an instance of class from providers. With a non-nil
// collector, constructor and assignment failures are recorded and a best
// effort instance is returned.
func (in *Instantiator) Instantiate(class string, providers map[string]Provider, errs *Collector) (any, error) {
	p, err := in.plan(class)
	if err != nil {
		return nil, err
	}
	providers = memoize(providers)

	var (
		obj      any
		consumed map[string]bool
	)
	if p.useCtor {
		obj, consumed, err = in.construct(p, providers, errs)
		if err != nil {
			return nil, err
		}
	}
	if obj == nil {
		obj = p.class.New()
	}

	for _, name := range assignOrder(p.order, providers) {
		if consumed[name] {
			continue
		}
		if err := assign(p.class, obj, name, providers[name]); err != nil {
			if err := errs.Record(err); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

// construct calls the constructor. A nil object with a nil error means a
// failure was recorded and the caller falls back to the plain constructor;
// the returned set then names the providers whose failure was recorded.
func (in *Instantiator) construct(p *plan, providers map[string]Provider, errs *Collector) (any, map[string]bool, error) {
	args := make([]any, len(p.params))
	consumed := make(map[string]bool, len(p.params))
	rejected := make(map[string]bool)

	for i, prm := range p.params {
		v, err := in.argument(p.class, prm, providers)
		if err != nil {
			if err := errs.Record(err); err != nil {
				return nil, nil, err
			}
			rejected[prm.name] = true
			continue
		}
		args[i] = v
		if _, ok := providers[prm.name]; ok {
			consumed[prm.name] = true
		}
	}
	if len(rejected) > 0 {
		return nil, rejected, nil
	}

	obj, err := p.class.Constructor.Call(args)
	if err != nil {
		err = errors.New(errors.PhaseInstantiate, errors.KindRuntime).
			Type(p.class.Name).
			Cause(err).
			Detail("constructor failed").
			Build()
		if err := errs.Record(err); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	return obj, consumed, nil
}

func (in *Instantiator) argument(c *descriptor.Class, prm param, providers map[string]Provider) (any, error) {
	if prov, ok := providers[prm.name]; ok {
		v, err := prov()
		if err != nil {
			return nil, err
		}
		if v == nil && !prm.nullable {
			return nil, errors.InvalidConstructorArgument(c.Name, prm.name)
		}
		if prm.typ != nil && !descriptor.Conforms(in.classes, prm.typ, v) {
			return nil, errors.UnexpectedType([]string{c.Name, prm.name}, prm.typ.String(), v)
		}
		return v, nil
	}
	if prm.hasDef {
		return prm.def, nil
	}
	if prm.nullable {
		return nil, nil
	}
	return nil, errors.InvalidConstructorArgument(c.Name, prm.name)
}

func assign(c *descriptor.Class, obj any, name string, prov Provider) error {
	v, err := prov()
	if err != nil {
		return err
	}
	if err := c.Set(obj, name, v); err != nil {
		if errors.KindOf(err) != "" {
			return err
		}
		return errors.New(errors.PhaseInstantiate, errors.KindUnexpectedType).
			Path(c.Name, name).
			Type(fieldType(c, name)).
			Value(v).
			Cause(err).
			Build()
	}
	return nil
}

// memoize makes each provider evaluate at most once.
func memoize(providers map[string]Provider) map[string]Provider {
	out := make(map[string]Provider, len(providers))
	for name, prov := range providers {
		var (
			once sync.Once
			v    any
			err  error
		)
		out[name] = func() (any, error) {
			once.Do(func() { v, err = prov() })
			return v, err
		}
	}
	return out
}

func fieldType(c *descriptor.Class, name string) string {
	if f, ok := c.Field(name); ok && f.Type != nil {
		return f.Type.String()
	}
	return "unknown"
}

// assignOrder lists provider names in declaration order, then undeclared
// names sorted.
func assignOrder(declared []string, providers map[string]Provider) []string {
	out := make([]string, 0, len(providers))
	for _, name := range declared {
		if _, ok := providers[name]; ok {
			out = append(out, name)
		}
	}
	var extra []string
	for name := range providers {
		if !slices.Contains(declared, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
