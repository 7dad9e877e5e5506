// Package hclschema declares classes and enums in HCL and registers them on
// a descriptor table. Instances of declared classes are descriptor.Record
// values.
//
//	class "Point" {
//	  parent = "Shape"
//
//	  field "x" {
//	    type = "int"
//	  }
//	  field "label" {
//	    type   = "?string"
//	    wire   = "name"
//	    groups = ["public"]
//	    format = "upper"
//	  }
//
//	  constructor {
//	    param "x" {}
//	    param "label" {
//	      default = "origin"
//	    }
//	  }
//	}
//
//	enum "Level" {
//	  backing = "int"
//	  cases   = { low = 1, high = 2 }
//	}
//
// A param without a type takes the type of the field with the same name.
package hclschema

import (
	"math/big"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/wippyai/jsongen/config"
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/types"
)

type fileSchema struct {
	Classes []classBlock `hcl:"class,block"`
	Enums   []enumBlock  `hcl:"enum,block"`
}

type classBlock struct {
	Constructor *ctorBlock   `hcl:"constructor,block"`
	Name        string       `hcl:"name,label"`
	Parent      string       `hcl:"parent,optional"`
	Fields      []fieldBlock `hcl:"field,block"`
}

type fieldBlock struct {
	Name   string   `hcl:"name,label"`
	Type   string   `hcl:"type"`
	Wire   string   `hcl:"wire,optional"`
	Format string   `hcl:"format,optional"`
	Groups []string `hcl:"groups,optional"`
}

type ctorBlock struct {
	Hidden *bool        `hcl:"hidden,optional"`
	Params []paramBlock `hcl:"param,block"`
}

type paramBlock struct {
	Default hcl.Expression `hcl:"default,optional"`
	Name    string         `hcl:"name,label"`
	Type    string         `hcl:"type,optional"`
}

type enumBlock struct {
	Cases   hcl.Expression `hcl:"cases"`
	Name    string         `hcl:"name,label"`
	Backing string         `hcl:"backing"`
}

// Load reads a schema file and registers its declarations on tbl.
func Load(tbl *descriptor.Table, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Runtime(errors.PhaseConfig, "read "+path, err)
	}
	return Parse(tbl, src, path)
}

// Parse registers the declarations in src on tbl. Enums are registered
// before classes so fields may refer to them by name.
func Parse(tbl *descriptor.Table, src []byte, filename string) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return config.Diagnostics(diags)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return config.Diagnostics(diags)
	}

	for _, eb := range schema.Enums {
		e, err := buildEnum(eb)
		if err != nil {
			return err
		}
		if err := tbl.RegisterEnum(e); err != nil {
			return err
		}
	}
	for _, cb := range schema.Classes {
		c, err := buildClass(tbl, cb)
		if err != nil {
			return err
		}
		if err := tbl.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func buildEnum(eb enumBlock) (*descriptor.Enum, error) {
	backing, err := types.Parse(eb.Backing)
	if err != nil {
		return nil, errors.WithPath(err, eb.Name)
	}
	val, diags := eb.Cases.Value(nil)
	if diags.HasErrors() {
		return nil, config.Diagnostics(diags)
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, errors.InvalidInput(errors.PhaseConfig, "enum "+eb.Name+": cases must be an object")
	}

	cases := make(map[string]any)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		gv, err := toGo(v, backing)
		if err != nil {
			return nil, errors.WithPath(err, eb.Name, k.AsString())
		}
		if !descriptor.ScalarConforms(backing.Name(), gv) {
			return nil, errors.InvalidType(errors.PhaseConfig, backing.String(), "enum "+eb.Name+" case "+k.AsString()+" does not match its backing type")
		}
		cases[k.AsString()] = gv
	}
	return descriptor.NewEnum(eb.Name, backing, cases), nil
}

func buildClass(tbl *descriptor.Table, cb classBlock) (*descriptor.Class, error) {
	fields := make([]descriptor.Field, 0, len(cb.Fields))
	for _, fb := range cb.Fields {
		ft, err := fieldType(tbl, fb.Type)
		if err != nil {
			return nil, errors.WithPath(err, cb.Name, fb.Name)
		}
		fields = append(fields, descriptor.Field{
			Name:      fb.Name,
			Type:      ft,
			Wire:      fb.Wire,
			Formatter: fb.Format,
			Groups:    fb.Groups,
		})
	}

	c := descriptor.RecordClass(tbl, cb.Name, cb.Parent, fields)
	if cb.Constructor == nil {
		return c, nil
	}

	ctor := &descriptor.Constructor{Accessible: cb.Constructor.Hidden == nil || !*cb.Constructor.Hidden}
	for _, pb := range cb.Constructor.Params {
		p, err := buildParam(tbl, c, pb)
		if err != nil {
			return nil, errors.WithPath(err, cb.Name, pb.Name)
		}
		ctor.Params = append(ctor.Params, p)
	}
	params := ctor.Params
	ctor.Call = func(args []any) (any, error) {
		r := descriptor.NewRecord(cb.Name)
		for i, p := range params {
			if err := c.Set(r, p.Name, args[i]); err != nil {
				return nil, err
			}
		}
		return r, nil
	}
	c.Constructor = ctor
	return c, nil
}

func buildParam(tbl *descriptor.Table, c *descriptor.Class, pb paramBlock) (descriptor.Param, error) {
	p := descriptor.Param{Name: pb.Name}
	switch {
	case pb.Type != "":
		t, err := fieldType(tbl, pb.Type)
		if err != nil {
			return p, err
		}
		p.Type = t
	default:
		f, ok := c.Field(pb.Name)
		if !ok {
			return p, errors.MissingType(errors.PhaseConfig, nil)
		}
		p.Type = f.Type
	}

	if pb.Default == nil {
		return p, nil
	}
	// An omitted default decodes as a null expression.
	val, diags := pb.Default.Value(nil)
	if diags.HasErrors() {
		return p, config.Diagnostics(diags)
	}
	if val.IsNull() {
		return p, nil
	}
	v, err := toGo(val, p.Type)
	if err != nil {
		return p, err
	}
	p.Default = v
	p.HasDefault = true
	return p, nil
}

// fieldType parses a signature and marks names registered as enums.
func fieldType(tbl *descriptor.Table, sig string) (*types.Type, error) {
	t, err := types.Parse(sig)
	if err != nil {
		return nil, err
	}
	return resolveEnums(tbl, t), nil
}

func resolveEnums(tbl *descriptor.Table, t *types.Type) *types.Type {
	switch t.Kind() {
	case types.KindObject:
		if e, ok := tbl.Enum(t.Class()); ok {
			et := e.Type()
			if t.IsNullable() {
				return types.Nullable(et)
			}
			return et
		}
	case types.KindList:
		vt, _ := t.CollectionValueType()
		out := types.List(resolveEnums(tbl, vt))
		return rewrap(t, out)
	case types.KindDict:
		kt, _ := t.CollectionKeyType()
		vt, _ := t.CollectionValueType()
		return rewrap(t, types.Dict(kt, resolveEnums(tbl, vt)))
	case types.KindUnion:
		members := t.Members()
		for i, m := range members {
			members[i] = resolveEnums(tbl, m)
		}
		return types.Union(members...)
	}
	return t
}

func rewrap(orig, t *types.Type) *types.Type {
	if orig.IsIterable() {
		t = types.Iterable(t)
	}
	if orig.IsNullable() {
		t = types.Nullable(t)
	}
	return t
}

// toGo converts a literal HCL value to the engine's Go value model,
// guided by the declared type where it has one.
func toGo(v cty.Value, t *types.Type) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, errors.InvalidInput(errors.PhaseConfig, "value is not known")
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if t != nil && t.NonNullable().Name() == types.Float {
			f, _ := bf.Float64()
			return f, nil
		}
		if bf.IsInt() {
			if n, acc := bf.Int64(); acc == big.Exact {
				return n, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsObjectType() || ty.IsMapType():
		var elem *types.Type
		if t != nil && t.IsDict() {
			elem, _ = t.CollectionValueType()
		}
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			gv, err := toGo(ev, elem)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = gv
		}
		return out, nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var elem *types.Type
		if t != nil && t.IsList() {
			elem, _ = t.CollectionValueType()
		}
		out := []any{}
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			gv, err := toGo(ev, elem)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	}
	return nil, errors.UnsupportedType(errors.PhaseConfig, ty.FriendlyName(), "no Go conversion")
}
