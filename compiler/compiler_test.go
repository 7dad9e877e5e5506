package compiler

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/jsongen/descriptor"
	jerrors "github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/service"
	"github.com/wippyai/jsongen/template"
	"github.com/wippyai/jsongen/types"
)

type level int

const (
	low  level = 1
	high level = 2
)

func fixtures(t *testing.T) *descriptor.Table {
	t.Helper()
	tbl := descriptor.NewTable()
	str := types.Scalar(types.String)
	integer := types.Scalar(types.Int)

	require.NoError(t, descriptor.ReflectEnum(tbl, "Level", low, high))
	for _, c := range []*descriptor.Class{
		descriptor.RecordClass(tbl, "User", "", []descriptor.Field{
			{Name: "id", Type: integer},
			{Name: "name", Type: str},
		}),
		descriptor.RecordClass(tbl, "Profile", "", []descriptor.Field{
			{Name: "nick", Type: str, Formatter: "upper"},
			{Name: "level", Type: types.Enum("Level", integer)},
			{Name: "tags", Type: types.Nullable(types.List(str))},
		}),
		descriptor.RecordClass(tbl, "Animal", "", []descriptor.Field{{Name: "name", Type: str}}),
		descriptor.RecordClass(tbl, "Dog", "Animal", []descriptor.Field{
			{Name: "name", Type: str},
			{Name: "good", Type: types.Scalar(types.Bool)},
		}),
	} {
		require.NoError(t, tbl.Register(c))
	}
	return tbl
}

func record(class string, kv ...any) *descriptor.Record {
	r := descriptor.NewRecord(class)
	for i := 0; i < len(kv); i += 2 {
		r.Values[kv[i].(string)] = kv[i+1]
	}
	return r
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

type env struct {
	tbl      *descriptor.Table
	services service.Locator
	strict   bool
}

func (e env) program(t *testing.T, sig string, optimize bool) *Program {
	t.Helper()
	ctx := template.NewContext(e.tbl, nil)
	ctx.StrictUnions = e.strict
	block, err := template.Build(types.MustParse(sig), ctx)
	require.NoError(t, err)
	if optimize {
		block = ir.Optimize(block)
	}

	data, err := Compile(&Artifact{Program: block, Signature: sig, Direction: "encode"})
	require.NoError(t, err)
	art, err := Load(data)
	require.NoError(t, err)

	prog, err := Link(art.Program, Runtime{Provider: e.tbl, Services: e.services})
	require.NoError(t, err)
	return prog
}

func (e env) encode(t *testing.T, sig string, v any) (string, error) {
	t.Helper()
	var sb strings.Builder
	err := e.program(t, sig, true).Run(context.Background(), &sb, v)
	return sb.String(), err
}

func TestRun_Encode(t *testing.T) {
	seq := iter.Seq2[any, error](func(yield func(any, error) bool) {
		for _, v := range []any{int64(1), int64(2)} {
			if !yield(v, nil) {
				return
			}
		}
	})

	e := env{tbl: fixtures(t), services: service.Map{"upper": service.Strings(strings.ToUpper)}}
	tests := []struct {
		name string
		sig  string
		in   any
		want string
	}{
		{"object", "User", record("User", "id", int64(10), "name", "dummy"), `{"id":10,"name":"dummy"}`},
		{"int", "int", 42, "42"},
		{"negative", "int", int64(-7), "-7"},
		{"float", "float", 1.5, "1.5"},
		{"float from int", "float", int64(3), "3"},
		{"string escaping", "string", "a\"b\n<", `"a\"b\n<"`},
		{"bool", "bool", false, "false"},
		{"nullable null", "?int", nil, "null"},
		{"nullable value", "?int", int64(5), "5"},
		{"nullable list null", "?list<int>", nil, "null"},
		{"typed nil slice", "?list<int>", []int(nil), "null"},
		{"list", "list<int>", []any{int64(1), int64(2), int64(3)}, "[1,2,3]"},
		{"empty list", "list<int>", []any{}, "[]"},
		{"go slice", "list<string>", []string{"a", "b"}, `["a","b"]`},
		{"dict sorted", "dict<string, int>", map[string]any{"b": int64(2), "a": int64(1)}, `{"a":1,"b":2}`},
		{"int keys", "dict<int, bool>", map[int]bool{2: true, 10: false}, `{"2":true,"10":false}`},
		{"nested", "list<list<int>>", []any{[]any{int64(1)}, []any{}}, "[[1],[]]"},
		{"iterable", "iterable<int>", seq, "[1,2]"},
		{"mixed", "mixed", map[string]any{"k": []any{1, "x", nil}}, `{"k":[1,"x",null]}`},
		{"mixed record", "mixed", record("User", "id", int64(1)), `{"id":1}`},
		{"union string", "int|string", "abc", `"abc"`},
		{"union int", "int|string", int64(3), "3"},
		{"union null", "?int|string", nil, "null"},
		{"union classes", "Animal|Dog", record("Dog", "name", "rex", "good", true), `{"name":"rex","good":true}`},
		{"union base", "Animal|Dog", record("Animal", "name", "cat"), `{"name":"cat"}`},
		{"enum", "enum<Level, int>", high, "2"},
		{"formatter and enum", "Profile", record("Profile", "nick", "bob", "level", low, "tags", nil), `{"nick":"BOB","level":1,"tags":null}`},
		{"list of objects", "list<?User>", []any{nil, record("User", "id", int64(1), "name", "a")}, `[null,{"id":1,"name":"a"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.encode(t, tt.sig, tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRun_Errors(t *testing.T) {
	e := env{tbl: fixtures(t)}
	tests := []struct {
		name string
		sig  string
		in   any
		kind jerrors.Kind
	}{
		{"null for int", "int", nil, jerrors.KindUnexpectedValue},
		{"string for int", "int", "1", jerrors.KindUnexpectedValue},
		{"float for int", "int", 1.5, jerrors.KindUnexpectedValue},
		{"nan", "float", math.NaN(), jerrors.KindUnexpectedValue},
		{"null object", "User", nil, jerrors.KindUnexpectedValue},
		{"not an enum member", "enum<Level, int>", 2, jerrors.KindUnexpectedValue},
		{"not iterable", "list<int>", 5, jerrors.KindUnexpectedValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.encode(t, tt.sig, tt.in)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}

	strict := env{tbl: fixtures(t), strict: true}
	_, err := strict.encode(t, "int|string", true)
	require.True(t, errors.Is(err, jerrors.KindUnexpectedValue), "got %v", err)

	out, err := strict.encode(t, "int|string", "ok")
	require.NoError(t, err)
	require.Equal(t, `"ok"`, out)
}

func TestRun_OptimizerNeutral(t *testing.T) {
	e := env{tbl: fixtures(t), services: service.Map{"upper": service.Strings(strings.ToUpper)}}
	value := []any{
		record("Profile", "nick", "a", "level", high, "tags", []any{"x", "y"}),
		record("Profile", "nick", "b", "level", low, "tags", nil),
	}

	var plain, opt countingWriter
	require.NoError(t, e.program(t, "list<Profile>", false).Run(context.Background(), &plain, value))
	require.NoError(t, e.program(t, "list<Profile>", true).Run(context.Background(), &opt, value))

	require.Equal(t, plain.String(), opt.String())
	require.Less(t, opt.writes, plain.writes)
}

func TestCompile_Deterministic(t *testing.T) {
	ctx := template.NewContext(fixtures(t), nil)
	block, err := template.Build(types.MustParse("list<Profile|User>|null"), ctx)
	if err == nil {
		t.Fatal("expected same-depth union to fail")
	}

	block, err = template.Build(types.MustParse("?dict<string, Animal|Dog>"), ctx)
	require.NoError(t, err)
	block = ir.Optimize(block)

	a := &Artifact{Program: block, Signature: "?dict<string, Animal|Dog>", Direction: "encode"}
	first, err := Compile(a)
	require.NoError(t, err)
	second, err := Compile(a)
	require.NoError(t, err)
	require.Equal(t, first, second)

	loaded, err := Load(first)
	require.NoError(t, err)
	require.Equal(t, a.Signature, loaded.Signature)
	require.Equal(t, Render(a), Render(loaded))

	again, err := Compile(loaded)
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestCompile_AllNodes(t *testing.T) {
	prog := ir.Seq(
		&ir.Assign{Name: "x", Value: &ir.Interpolated{Parts: []ir.Expr{ir.Lit("a"), ir.Lit(int64(1)), ir.Lit(2.5), ir.Lit(true)}}},
		&ir.If{
			Branches: []ir.Branch{{
				Cond: &ir.Binary{Op: ir.OpAnd, Left: &ir.Unary{Op: ir.OpNot, X: ir.IsNil(ir.V("x"))}, Right: &ir.Binary{Op: ir.OpNe, Left: ir.V("x"), Right: ir.Lit("")}},
				Body: ir.Seq(&ir.Emit{Value: ir.V("x")}),
			}},
		},
		&ir.Emit{Value: &ir.Raw{Code: "|"}},
		&ir.Emit{Value: ir.Fn(ir.FnInt, &ir.Index{X: ir.V(ir.Root), Key: ir.Lit("n")})},
		&ir.Emit{Value: ir.Fn(ir.FnInt, ir.Fn(ir.FnLen, &ir.Property{X: ir.V(ir.Root), Name: "list"}))},
		&ir.ExprStmt{X: ir.Fn(ir.FnIsNull, ir.V(ir.Root))},
		&ir.Emit{Value: &ir.MethodCall{Recv: ir.Lit("abc"), Method: "Error"}},
	)

	data, err := Compile(&Artifact{Program: prog})
	require.NoError(t, err)
	loaded, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, ir.Render("f", prog), ir.Render("f", loaded.Program))

	p, err := Link(ir.Seq(loaded.Program.Stmts[:6]...), Runtime{})
	require.NoError(t, err)
	var sb strings.Builder
	require.NoError(t, p.Run(context.Background(), &sb, map[string]any{"n": int64(7), "list": []any{1, 2}}))
	require.Equal(t, "a12.5true|72", sb.String())

	p, err = Link(ir.Seq(loaded.Program.Stmts[6]), Runtime{})
	require.NoError(t, err)
	err = p.Run(context.Background(), &sb, nil)
	require.True(t, errors.Is(err, jerrors.KindNotFound), "got %v", err)
}

func TestLoad_Rejects(t *testing.T) {
	_, err := Load([]byte("nope"))
	require.True(t, errors.Is(err, jerrors.KindInvalidInput))

	data, err := Compile(&Artifact{Program: ir.Seq(ir.Text("x"))})
	require.NoError(t, err)
	data[len(magic)] = Version + 1
	_, err = Load(data)
	require.True(t, errors.Is(err, jerrors.KindInvalidInput))

	data[len(magic)] = Version
	_, err = Load(data[:len(data)-1])
	require.True(t, errors.Is(err, jerrors.KindRuntime))

	_, err = Compile(&Artifact{Program: ir.Seq(ir.Text("x"), &ir.Emit{Value: ir.Lit([]int{1})})})
	require.True(t, errors.Is(err, jerrors.KindUnsupportedType))
}

func TestLink_ResolvesNames(t *testing.T) {
	tbl := fixtures(t)
	tests := []struct {
		name string
		prog *ir.Block
		rt   Runtime
	}{
		{"unknown builtin", ir.Seq(&ir.Emit{Value: ir.Fn("json.nope", ir.V(ir.Root))}), Runtime{Provider: tbl}},
		{"unknown service", ir.Seq(&ir.Emit{Value: ir.Fn("service:nope", ir.V(ir.Root))}), Runtime{Provider: tbl, Services: service.Map{}}},
		{"no locator", ir.Seq(&ir.Emit{Value: ir.Fn("service:nope", ir.V(ir.Root))}), Runtime{Provider: tbl}},
		{"unknown class", ir.Seq(&ir.Emit{Value: &ir.Property{X: ir.V(ir.Root), Class: "Ghost", Name: "x"}}), Runtime{Provider: tbl}},
		{"unknown enum", ir.Seq(&ir.Emit{Value: ir.Fn(ir.FnEnumValue, ir.Lit("Ghost"), ir.V(ir.Root))}), Runtime{Provider: tbl}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Link(tt.prog, tt.rt)
			require.True(t, errors.Is(err, jerrors.KindNotFound), "got %v", err)
		})
	}
}

func TestRun_StopsOnWriterError(t *testing.T) {
	e := env{tbl: fixtures(t)}
	prog := e.program(t, "list<int>", true)
	err := prog.Run(context.Background(), failingWriter{}, []any{int64(1)})
	require.True(t, errors.Is(err, jerrors.KindRuntime), "got %v", err)
	require.ErrorIs(t, err, errWrite)
}

var errWrite = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestRun_Cancelled(t *testing.T) {
	e := env{tbl: fixtures(t)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var sb strings.Builder
	err := e.program(t, "list<int>", true).Run(ctx, &sb, []any{int64(1)})
	require.ErrorIs(t, err, context.Canceled)
}
