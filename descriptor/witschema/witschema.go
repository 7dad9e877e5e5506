// Package witschema registers WebAssembly interface (WIT) types on a
// descriptor table, so values exchanged with components can be encoded and
// decoded as JSON.
//
// Records become classes, enums become string-backed enums, options become
// nullable types. Variants and results become dicts keyed by case name, and
// flags become lists of set flag names. Anonymous records and enums nested
// in a record are named "<record>.<field>". Named definitions keep their
// WIT name with '-' replaced by '_'.
package witschema

import (
	"io"
	"os"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/types"
)

// Adapter converts WIT types and registers the classes and enums they need.
type Adapter struct {
	tbl   *descriptor.Table
	named map[*wit.TypeDef]*types.Type
}

// New creates an adapter registering on tbl.
func New(tbl *descriptor.Table) *Adapter {
	return &Adapter{tbl: tbl, named: make(map[*wit.TypeDef]*types.Type)}
}

// Register converts td, registering it under name when it is a record or an
// enum, and returns its type.
func (a *Adapter) Register(name string, td *wit.TypeDef) (*types.Type, error) {
	if td == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "nil type definition")
	}
	return a.typeDef(name, td)
}

// Load reads a WIT resolve in JSON form, as printed by
// "wasm-tools component wit --json", and registers its named records and
// enums on tbl.
func Load(tbl *descriptor.Table, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Runtime(errors.PhaseConfig, "read "+path, err)
	}
	defer f.Close()
	return Parse(tbl, f)
}

// Parse decodes a JSON WIT resolve from r and registers it on tbl.
func Parse(tbl *descriptor.Table, r io.Reader) error {
	res, err := wit.DecodeJSON(r)
	if err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode WIT resolve")
	}
	return New(tbl).Resolve(res)
}

// Resolve registers every named record and enum of res.
func (a *Adapter) Resolve(res *wit.Resolve) error {
	for _, td := range res.TypeDefs {
		if td == nil || td.Name == nil {
			continue
		}
		switch td.Kind.(type) {
		case *wit.Record, *wit.Enum:
		default:
			continue
		}
		name := ClassName(*td.Name)
		if _, err := a.Register(name, td); err != nil {
			return errors.WithPath(err, name)
		}
	}
	return nil
}

// ClassName turns a WIT identifier into a class name.
func ClassName(witName string) string {
	return strings.ReplaceAll(witName, "-", "_")
}

// Type converts a WIT type. Records and enums inside it are registered
// under names derived from hint.
func (a *Adapter) Type(hint string, t wit.Type) (*types.Type, error) {
	switch v := t.(type) {
	case nil:
		return nil, errors.MissingType(errors.PhaseConfig, []string{hint})
	case wit.Bool:
		return types.Scalar(types.Bool), nil
	case wit.U8, wit.U16, wit.U32, wit.U64, wit.S8, wit.S16, wit.S32, wit.S64:
		return types.Scalar(types.Int), nil
	case wit.F32, wit.F64:
		return types.Scalar(types.Float), nil
	case wit.Char, wit.String:
		return types.Scalar(types.String), nil
	case *wit.TypeDef:
		if v.Name != nil {
			hint = ClassName(*v.Name)
		}
		return a.typeDef(hint, v)
	}
	return nil, errors.UnsupportedType(errors.PhaseConfig, hint, "unsupported WIT type")
}

func (a *Adapter) typeDef(name string, td *wit.TypeDef) (*types.Type, error) {
	if t, ok := a.named[td]; ok {
		return t, nil
	}

	var (
		t   *types.Type
		err error
	)
	switch k := td.Kind.(type) {
	case *wit.Record:
		t, err = a.record(name, k)
	case *wit.Enum:
		t, err = a.enum(name, k)
	case *wit.List:
		var elem *types.Type
		if elem, err = a.Type(name, k.Type); err == nil {
			t = types.List(elem)
		}
	case *wit.Option:
		var elem *types.Type
		if elem, err = a.Type(name, k.Type); err == nil {
			t = types.Nullable(elem)
		}
	case *wit.Tuple:
		t, err = a.tuple(name, k)
	case *wit.Variant, *wit.Result:
		t = types.Dict(types.Scalar(types.String), types.Scalar(types.Mixed))
	case *wit.Flags:
		t = types.List(types.Scalar(types.String))
	case *wit.Own, *wit.Borrow:
		err = errors.UnsupportedType(errors.PhaseConfig, name, "resource handles have no JSON form")
	case wit.Type:
		t, err = a.Type(name, k)
	default:
		err = errors.UnsupportedType(errors.PhaseConfig, name, "unsupported WIT type definition")
	}
	if err != nil {
		return nil, err
	}
	a.named[td] = t
	return t, nil
}

func (a *Adapter) record(name string, r *wit.Record) (*types.Type, error) {
	fields := make([]descriptor.Field, 0, len(r.Fields))
	for _, f := range r.Fields {
		ft, err := a.Type(name+"."+f.Name, f.Type)
		if err != nil {
			return nil, errors.WithPath(err, name, f.Name)
		}
		fields = append(fields, descriptor.Field{Name: f.Name, Type: ft})
	}
	if err := a.tbl.Register(descriptor.RecordClass(a.tbl, name, "", fields)); err != nil {
		return nil, err
	}
	return types.Object(name), nil
}

func (a *Adapter) enum(name string, e *wit.Enum) (*types.Type, error) {
	cases := make(map[string]any, len(e.Cases))
	for _, c := range e.Cases {
		cases[c.Name] = c.Name
	}
	en := descriptor.NewEnum(name, types.Scalar(types.String), cases)
	if err := a.tbl.RegisterEnum(en); err != nil {
		return nil, err
	}
	return en.Type(), nil
}

// tuple maps to a list of the single element type when all elements agree,
// otherwise to a list of their union.
func (a *Adapter) tuple(name string, tp *wit.Tuple) (*types.Type, error) {
	var members []*types.Type
	for _, et := range tp.Types {
		t, err := a.Type(name, et)
		if err != nil {
			return nil, err
		}
		members = append(members, t)
	}
	switch len(members) {
	case 0:
		return types.List(types.Scalar(types.Mixed)), nil
	case 1:
		return types.List(members[0]), nil
	}
	u := types.Union(members...)
	return types.List(u), nil
}
