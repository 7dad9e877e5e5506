package decode

import (
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/jsongen/descriptor"
	jerrors "github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/hook"
	"github.com/wippyai/jsongen/instantiate"
	"github.com/wippyai/jsongen/types"
)

var (
	intT = types.Scalar(types.Int)
	strT = types.Scalar(types.String)
)

// fixtures registers:
//   - Item{id int, name string (wire "label")}
//   - Animal{name string} <- Dog{name string, barks bool}
//   - Cat{name string} (a root class at Animal's depth)
//   - Node{value int, next ?Node}
//   - Point with constructor(x int)
//   - enum Level: low=1, high=2
func fixtures(t *testing.T) *descriptor.Table {
	t.Helper()
	tbl := descriptor.NewTable()
	reg := func(c *descriptor.Class) {
		require.NoError(t, tbl.Register(c))
	}

	reg(descriptor.RecordClass(tbl, "Item", "", []descriptor.Field{
		{Name: "id", Type: intT},
		{Name: "name", Wire: "label", Type: strT},
	}))
	reg(descriptor.RecordClass(tbl, "Animal", "", []descriptor.Field{{Name: "name", Type: strT}}))
	reg(descriptor.RecordClass(tbl, "Dog", "Animal", []descriptor.Field{
		{Name: "name", Type: strT},
		{Name: "barks", Type: types.Scalar(types.Bool)},
	}))
	reg(descriptor.RecordClass(tbl, "Cat", "", []descriptor.Field{{Name: "name", Type: strT}}))
	reg(descriptor.RecordClass(tbl, "Node", "", []descriptor.Field{
		{Name: "value", Type: intT},
		{Name: "next", Type: types.Nullable(types.Object("Node"))},
	}))

	point := descriptor.RecordClass(tbl, "Point", "", []descriptor.Field{{Name: "x", Type: intT}})
	point.Constructor = &descriptor.Constructor{
		Accessible: true,
		Params:     []descriptor.Param{{Name: "x", Type: intT}},
		Call: func(args []any) (any, error) {
			r := descriptor.NewRecord("Point")
			r.Values["x"] = args[0]
			return r, nil
		},
	}
	reg(point)

	require.NoError(t, tbl.RegisterEnum(descriptor.NewEnum("Level", intT, map[string]any{
		"low":  int64(1),
		"high": int64(2),
	})))
	return tbl
}

func record(class string, kv ...any) *descriptor.Record {
	r := descriptor.NewRecord(class)
	for i := 0; i < len(kv); i += 2 {
		r.Values[kv[i].(string)] = kv[i+1]
	}
	return r
}

type mode struct {
	name string
	run  func(d *Decoder, input string, ctx Context) (any, error)
}

var modes = []mode{
	{"lazy", func(d *Decoder, input string, ctx Context) (any, error) {
		return d.Decode(strings.NewReader(input), 0, int64(len(input)), ctx)
	}},
	{"eager", func(d *Decoder, input string, ctx Context) (any, error) {
		return d.DecodeEager([]byte(input), ctx)
	}},
}

func TestDecode(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)

	tests := []struct {
		name  string
		sig   string
		input string
		want  any
	}{
		{"int", "int", `10`, int64(10)},
		{"int from string", "int", `"10"`, int64(10)},
		{"int from integral float", "int", `3.0`, int64(3)},
		{"float", "float", `1.5`, 1.5},
		{"float from int", "float", `2`, 2.0},
		{"string", "string", `"a\"b"`, `a"b`},
		{"string from number", "string", `12`, "12"},
		{"bool", "bool", `true`, true},
		{"bool from string", "bool", `"false"`, false},
		{"nullable null", "?int", `null`, nil},
		{"nullable value", "?int", `4`, int64(4)},
		{"null", "null", `null`, nil},
		{"mixed", "mixed", `{"a": [1, 2.5, "x"]}`, map[string]any{"a": []any{int64(1), 2.5, "x"}}},
		{"list", "list<int>", `[1, 2, 3]`, []any{int64(1), int64(2), int64(3)}},
		{"empty list", "list<int>", `[]`, []any{}},
		{"nested list", "list<list<string>>", `[["a"], []]`, []any{[]any{"a"}, []any{}}},
		{"dict", "dict<string, int>", `{"a": 1, "b": 2}`, map[string]any{"a": int64(1), "b": int64(2)}},
		{"nullable list null", "?list<int>", `null`, nil},
		{"enum", "enum<Level, int>", `2`, descriptor.Member{Enum: "Level", Name: "high", Value: int64(2)}},
		{"union string", "int|string", `"abc"`, "abc"},
		{"union int", "int|string", `7`, int64(7)},
		{"union float", "int|float", `7.5`, 7.5},
		{"union list", "list<int>|string", `[1]`, []any{int64(1)}},
		{"nullable union", "?int|string", `null`, nil},
		{"any object", "object", `{"k": 1}`, map[string]any{"k": int64(1)}},
		{
			"object",
			"Item",
			`{"id": 10, "label": "dummy name"}`,
			record("Item", "id", int64(10), "name", "dummy name"),
		},
		{
			"object casts field",
			"Item",
			`{"id": "10", "extra": [1, {"deep": true}]}`,
			record("Item", "id", int64(10)),
		},
		{
			"recursive",
			"Node",
			`{"value": 1, "next": {"value": 2, "next": null}}`,
			record("Node", "value", int64(1), "next", record("Node", "value", int64(2), "next", nil)),
		},
		{
			"union deepest class first",
			"Animal|Dog",
			`{"name": "rex", "barks": true}`,
			record("Dog", "name", "rex", "barks", true),
		},
		{
			"union parent fields decode as deepest class",
			"Animal|Dog",
			`{"name": "rex"}`,
			record("Dog", "name", "rex"),
		},
		{
			"constructor",
			"Point",
			`{"x": 3}`,
			record("Point", "x", int64(3)),
		},
	}
	for _, m := range modes {
		for _, tt := range tests {
			t.Run(m.name+"/"+tt.name, func(t *testing.T) {
				d, err := c.Compile(types.MustParse(tt.sig))
				require.NoError(t, err)
				got, err := m.run(d, tt.input, Context{})
				require.NoError(t, err)
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("decode mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)

	tests := []struct {
		name  string
		sig   string
		input string
		kind  jerrors.Kind
		path  []string
	}{
		{"null for non-nullable", "int", `null`, jerrors.KindUnexpectedValue, nil},
		{"bad cast", "int", `"ten"`, jerrors.KindUnexpectedValue, nil},
		{"fraction for int", "int", `1.5`, jerrors.KindUnexpectedValue, nil},
		{"object for scalar", "string", `{}`, jerrors.KindUnexpectedValue, nil},
		{"null list", "list<int>", `null`, jerrors.KindUnexpectedValue, nil},
		{"list element", "list<int>", `[1, "x"]`, jerrors.KindUnexpectedValue, []string{"1"}},
		{"dict value", "dict<string, int>", `{"a": true}`, jerrors.KindUnexpectedValue, []string{"a"}},
		{"bad dict key", "dict<int, int>", `{"a": 1}`, jerrors.KindUnexpectedValue, []string{"a"}},
		{"enum miss", "enum<Level, int>", `9`, jerrors.KindUnexpectedValue, nil},
		{"union miss", "int|string", `true`, jerrors.KindUnexpectedValue, nil},
		{"object field", "Item", `{"id": [1]}`, jerrors.KindUnexpectedValue, []string{"id"}},
		{"list for object", "Item", `[1]`, jerrors.KindUnexpectedValue, nil},
		{"missing constructor arg", "Point", `{}`, jerrors.KindInvalidConstructorArgument, []string{"Point", "x"}},
	}
	for _, m := range modes {
		for _, tt := range tests {
			t.Run(m.name+"/"+tt.name, func(t *testing.T) {
				d, err := c.Compile(types.MustParse(tt.sig))
				require.NoError(t, err)
				_, err = m.run(d, tt.input, Context{})
				require.Error(t, err)
				require.Equal(t, tt.kind, jerrors.KindOf(err), "error: %v", err)
				if tt.path != nil {
					var je *jerrors.Error
					require.True(t, errors.As(err, &je))
					require.Equal(t, tt.path, je.Path)
				}
			})
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	tests := []struct {
		sig   string
		input string
	}{
		{"list<int>", `[1, 2`},
		{"Item", `{"id": 1,}`},
		{"int", `1 2`},
		{"string", `"abc`},
		{"int", ``},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := c.Compile(types.MustParse(tt.sig))
			require.NoError(t, err)
			_, err = d.DecodeBytes([]byte(tt.input), Context{})
			require.True(t, errors.Is(err, jerrors.KindRuntime), "error: %v", err)
		})
	}
}

func TestDecode_SameDepthUnion(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	_, err := c.Compile(types.MustParse("Animal|Cat"))
	require.True(t, errors.Is(err, jerrors.KindLogic))

	// A failed compile leaves nothing behind.
	_, ok := c.decoders["Animal|Cat"]
	require.False(t, ok)
}

func TestDecode_Iterable(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)

	d, err := c.Compile(types.Iterable(types.List(intT)))
	require.NoError(t, err)

	input := `[1, 2, "x", @@@`
	got, err := d.DecodeBytes([]byte(input), Context{})
	require.NoError(t, err)
	seq, ok := got.(iter.Seq2[any, error])
	require.True(t, ok, "got %T", got)

	var items []any
	for v, err := range seq {
		require.NoError(t, err)
		items = append(items, v)
		if len(items) == 2 {
			break
		}
	}
	require.Equal(t, []any{int64(1), int64(2)}, items)

	var last error
	for _, err := range seq {
		last = err
	}
	require.Error(t, last)
}

func TestDecode_IterableDict(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	d, err := c.Compile(types.Iterable(types.Dict(intT, strT)))
	require.NoError(t, err)

	got, err := d.DecodeBytes([]byte(`{"3": "c", "1": "a", "2": "b"}`), Context{})
	require.NoError(t, err)
	seq := got.(iter.Seq2[descriptor.Entry, error])

	var entries []descriptor.Entry
	for e, err := range seq {
		require.NoError(t, err)
		entries = append(entries, e)
	}
	require.Equal(t, []descriptor.Entry{
		{Key: int64(3), Value: "c"},
		{Key: int64(1), Value: "a"},
		{Key: int64(2), Value: "b"},
	}, entries)
}

func TestDecode_CollectErrors(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	d, err := c.Compile(types.MustParse("list<Point>"))
	require.NoError(t, err)

	errs := instantiate.NewCollector()
	got, err := d.DecodeBytes([]byte(`[{"x": 1}, {}, {"x": "no"}]`), Context{Errors: errs})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 2, errs.Len())
	require.True(t, errors.Is(errs.Errors()[0], jerrors.KindInvalidConstructorArgument))

	ctx := Context{Errors: errs}
	require.True(t, ctx.CollectErrors())
	require.False(t, Context{}.CollectErrors())
}

func TestDecode_Hooks(t *testing.T) {
	hooks := hook.New[Hook]()
	hooks.Register(hook.Exact("string"), func(in HookInput) (HookOutput, error) {
		return HookOutput{Transform: func(v any) (any, error) {
			return strings.ToUpper(v.(string)), nil
		}}, nil
	})
	hooks.Register(hook.Field("Item", "id"), func(in HookInput) (HookOutput, error) {
		require.Equal(t, "id", in.Field.Name)
		return HookOutput{
			Type:      types.Scalar(types.Float),
			Transform: func(v any) (any, error) { return int64(v.(float64) * 10), nil },
		}, nil
	})
	hooks.Register(hook.Field("Animal", "name"), func(HookInput) (HookOutput, error) {
		return HookOutput{Skip: true}, nil
	})
	hooks.Register(hook.Field("Animal", "legs"), func(in HookInput) (HookOutput, error) {
		require.Nil(t, in.Field)
		return HookOutput{Type: intT}, nil
	})

	c := NewCompiler(fixtures(t), hooks)

	d, err := c.Compile(types.MustParse("Item"))
	require.NoError(t, err)
	got, err := d.DecodeBytes([]byte(`{"id": 0.5, "label": "x"}`), Context{})
	require.NoError(t, err)
	require.Equal(t, record("Item", "id", int64(5), "name", "X"), got)

	d, err = c.Compile(types.MustParse("Animal"))
	require.NoError(t, err)
	got, err = d.DecodeBytes([]byte(`{"name": "rex", "legs": 4}`), Context{})
	require.NoError(t, err)
	require.Equal(t, record("Animal", "legs", int64(4)), got)
}

func TestDecode_HookError(t *testing.T) {
	boom := errors.New("boom")
	hooks := hook.New[Hook]()
	hooks.Register(hook.Category("list"), func(HookInput) (HookOutput, error) {
		return HookOutput{}, boom
	})
	c := NewCompiler(fixtures(t), hooks)
	_, err := c.Compile(types.MustParse("list<int>"))
	require.ErrorIs(t, err, boom)
}

func TestDecode_UseNumber(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	d, err := c.Compile(types.MustParse("mixed"))
	require.NoError(t, err)

	got, err := d.DecodeBytes([]byte(`[1, 2.5]`), Context{UseNumber: true})
	require.NoError(t, err)
	require.Equal(t, []any{json.Number("1"), json.Number("2.5")}, got)
}

func TestDecode_Subrange(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	d, err := c.Compile(types.MustParse("list<int>"))
	require.NoError(t, err)

	input := `{"items": [4, 5]}`
	got, err := d.Decode(strings.NewReader(input), 10, 6, Context{})
	require.NoError(t, err)
	require.Equal(t, []any{int64(4), int64(5)}, got)
}

func TestCompiler_Memoizes(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	a, err := c.Compile(types.MustParse("list<int>"))
	require.NoError(t, err)
	b, err := c.Compile(types.MustParse("list<int>"))
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, "list<int>", a.Type().String())

	c.Reset()
	b, err = c.Compile(types.MustParse("list<int>"))
	require.NoError(t, err)
	require.NotSame(t, a, b)
}

func TestCompiler_UnknownClass(t *testing.T) {
	c := NewCompiler(fixtures(t), nil)
	_, err := c.Compile(types.MustParse("Missing"))
	require.True(t, errors.Is(err, jerrors.KindNotFound))
}

func TestScalar(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ctx   Context
		want  any
	}{
		{"float", ` 12 `, Context{}, 12.0},
		{"number", `12`, Context{UseNumber: true}, json.Number("12")},
		{"string", `"x"`, Context{}, "x"},
		{"null", `null`, Context{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scalar(strings.NewReader(tt.input), 0, int64(len(tt.input)), tt.ctx)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := Scalar(strings.NewReader(`[1]`), 0, 3, Context{})
	require.True(t, errors.Is(err, jerrors.KindUnexpectedValue))
}
