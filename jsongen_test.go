package jsongen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/jsongen/config"
	"github.com/wippyai/jsongen/decode"
	"github.com/wippyai/jsongen/descriptor"
	jerrors "github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/hook"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/template"
	"github.com/wippyai/jsongen/types"
)

type Address struct {
	City string `json:"city"`
}

type User struct {
	Home *Address `json:"home"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
	Age  int      `json:"age"`
}

type Profile struct {
	Age  *int           `json:"age"`
	Nick *string        `json:"nick"`
	ByID map[int]string `json:"by_id"`
}

type Point struct {
	Label string `json:"label"`
	X     int    `json:"x"`
}

func fixtures(t *testing.T) *descriptor.Table {
	t.Helper()
	tbl := descriptor.NewTable()
	require.NoError(t, descriptor.Reflect(tbl, Address{}, descriptor.WithName("Address")))
	require.NoError(t, descriptor.Reflect(tbl, User{}, descriptor.WithName("User")))
	require.NoError(t, descriptor.Reflect(tbl, Point{},
		descriptor.WithName("Point"),
		descriptor.WithConstructor([]string{"x"}, func(args []any) (any, error) {
			p := &Point{}
			if n, ok := args[0].(int64); ok {
				p.X = int(n)
			}
			return p, nil
		}),
	))
	require.NoError(t, tbl.Register(descriptor.RecordClass(tbl, "Item", "", []descriptor.Field{
		{Name: "id", Type: types.Scalar(types.Int)},
		{Name: "name", Type: types.Scalar(types.String)},
	})))
	require.NoError(t, descriptor.Reflect(tbl, Profile{}, descriptor.WithName("Profile")))
	require.NoError(t, tbl.Register(descriptor.RecordClass(tbl, "Bag", "", []descriptor.Field{
		{Name: "d", Type: types.MustParse("iterable<string, int>")},
		{Name: "l", Type: types.MustParse("iterable<int>")},
	})))
	return tbl
}

func item(id int64, name string) *descriptor.Record {
	r := descriptor.NewRecord("Item")
	r.Values["id"] = id
	r.Values["name"] = name
	return r
}

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithProvider(fixtures(t))}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestEngine_RoundTrip(t *testing.T) {
	users := []*User{
		{Name: "ann", Age: 30, Tags: []string{"a", "b"}, Home: &Address{City: "Oslo"}},
		{Name: "bob", Age: 41, Tags: []string{}},
	}

	for _, lazy := range []bool{true, false} {
		name := "eager"
		if lazy {
			name = "lazy"
		}
		t.Run(name, func(t *testing.T) {
			e := testEngine(t, WithLazy(lazy))
			ctx := context.Background()

			out, err := e.EncodeBytes(ctx, "list<User>", users)
			require.NoError(t, err)
			require.JSONEq(t, `[
				{"home":{"city":"Oslo"},"name":"ann","tags":["a","b"],"age":30},
				{"home":null,"name":"bob","tags":[],"age":41}
			]`, string(out))

			got, err := e.Decode("list<User>", out)
			require.NoError(t, err)
			want := []any{users[0], users[1]}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEngine_RoundTripOptionalScalarsAndIntKeys(t *testing.T) {
	age, nick := 3, "n"
	tests := []struct {
		name string
		in   *Profile
		json string
	}{
		{
			"set",
			&Profile{Age: &age, Nick: &nick, ByID: map[int]string{10: "b", 1: "a"}},
			`{"age":3,"nick":"n","by_id":{"1":"a","10":"b"}}`,
		},
		{
			"unset",
			&Profile{ByID: map[int]string{}},
			`{"age":null,"nick":null,"by_id":{}}`,
		},
	}

	for _, lazy := range []bool{true, false} {
		e := testEngine(t, WithLazy(lazy))
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/lazy=%v", tt.name, lazy), func(t *testing.T) {
				out, err := e.EncodeBytes(context.Background(), "Profile", tt.in)
				require.NoError(t, err)
				require.Equal(t, tt.json, string(out))

				got, err := e.Decode("Profile", out)
				require.NoError(t, err)
				if diff := cmp.Diff(tt.in, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestEngine_DecodeIntKeyedDict(t *testing.T) {
	e := testEngine(t)
	got, err := e.Decode("dict<int, string>", []byte(`{"1":"a","20":"b"}`))
	require.NoError(t, err)
	require.Equal(t, map[any]any{int64(1): "a", int64(20): "b"}, got)

	out, err := e.EncodeBytes(context.Background(), "dict<int, string>", got)
	require.NoError(t, err)
	require.Equal(t, `{"1":"a","20":"b"}`, string(out))
}

func TestEngine_DecodeIterableFields(t *testing.T) {
	e := testEngine(t)
	input := []byte(`{"d":{"a":1,"b":2},"l":[3,4]}`)

	got, err := e.Decode("Bag", input)
	require.NoError(t, err)
	bag, ok := got.(*descriptor.Record)
	require.True(t, ok, "got %T", got)

	d, ok := bag.Values["d"].(iter.Seq2[descriptor.Entry, error])
	require.True(t, ok, "d is %T", bag.Values["d"])
	var entries []descriptor.Entry
	for en, err := range d {
		require.NoError(t, err)
		entries = append(entries, en)
	}
	require.Equal(t, []descriptor.Entry{{Key: "a", Value: int64(1)}, {Key: "b", Value: int64(2)}}, entries)

	l, ok := bag.Values["l"].(iter.Seq2[any, error])
	require.True(t, ok, "l is %T", bag.Values["l"])
	var items []any
	for it, err := range l {
		require.NoError(t, err)
		items = append(items, it)
	}
	require.Equal(t, []any{int64(3), int64(4)}, items)

	out, err := e.EncodeBytes(context.Background(), "Bag", bag)
	require.NoError(t, err)
	require.JSONEq(t, string(input), string(out))
}

// scanCounter counts reads that start at a given offset. Every tokenizer
// pass over a range starts with such a read.
type scanCounter struct {
	src   io.ReaderAt
	start int64
	scans int
}

func (s *scanCounter) ReadAt(p []byte, off int64) (int, error) {
	if off == s.start {
		s.scans++
	}
	return s.src.ReadAt(p, off)
}

func TestEngine_DecodeNullSkipsSplitter(t *testing.T) {
	e := testEngine(t)

	scan := func(input string) (any, int) {
		data := []byte("  " + input)
		src := &scanCounter{src: bytes.NewReader(data), start: 2}
		v, err := e.DecodeReaderAt("?list<int>", src, 2, int64(len(input)))
		require.NoError(t, err)
		return v, src.scans
	}

	v, scans := scan(`null`)
	require.Nil(t, v)
	require.Equal(t, 1, scans, "null should be recognized from its first token alone")

	v, scans = scan(`[1, 2]`)
	require.Equal(t, []any{int64(1), int64(2)}, v)
	require.Greater(t, scans, 1, "a list is split after its first token is read")
}

func TestEngine_ParseArrayAsDict(t *testing.T) {
	typ, err := types.Parse("array<string, int>")
	require.NoError(t, err)
	require.True(t, typ.IsDict())
	key, err := typ.CollectionKeyType()
	require.NoError(t, err)
	value, err := typ.CollectionValueType()
	require.NoError(t, err)
	require.Equal(t, "string", key.String())
	require.Equal(t, "int", value.String())
}

func TestEngine_EncodeObjectMergesLiterals(t *testing.T) {
	e := testEngine(t)

	art, err := e.Artifact("Item")
	require.NoError(t, err)
	want := []string{`{"id":`, "", `,"name":`, "", "}"}
	require.Len(t, art.Program.Stmts, len(want))
	for i, w := range want {
		text, ok := ir.ConstText(art.Program.Stmts[i])
		if w == "" {
			require.False(t, ok, "stmt %d should encode a value", i)
			continue
		}
		require.True(t, ok, "stmt %d should be a literal", i)
		require.Equal(t, w, text)
	}

	out, err := e.EncodeBytes(context.Background(), "Item", item(10, "dummy"))
	require.NoError(t, err)
	require.Equal(t, `{"id":10,"name":"dummy"}`, string(out))
}

func TestEngine_DecodeScenarios(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name  string
		sig   string
		input string
		want  any
	}{
		{"object", "Item", `{"id":10,"name":"dummy name"}`, item(10, "dummy name")},
		{"object cast", "Item", `{"id":"10","name":"dummy name"}`, item(10, "dummy name")},
		{"union string", "int|string", `"abc"`, "abc"},
		{"union int", "int|string", `7`, int64(7)},
		{"nullable list", "?list<int>", `null`, nil},
		{"nullable list value", "?list<int>", `[1, 2]`, []any{int64(1), int64(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Decode(tt.sig, []byte(tt.input))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode(%s, %s) mismatch (-want +got):\n%s", tt.sig, tt.input, diff)
			}
		})
	}
}

func TestEngine_DecodeReaderAt(t *testing.T) {
	e := testEngine(t)
	src := bytes.NewReader([]byte(`xx{"id":3,"name":"n"}yy`))

	got, err := e.DecodeReaderAt("Item", src, 2, 19)
	require.NoError(t, err)
	require.Equal(t, item(3, "n"), got)
}

func TestEngine_CollectErrors(t *testing.T) {
	input := []byte(`{"label":"p"}`)

	e := testEngine(t)
	_, err := e.Decode("Point", input)
	require.True(t, errors.Is(err, jerrors.KindInvalidConstructorArgument), "got %v", err)

	e = testEngine(t, WithCollectErrors(true))
	got, err := e.Decode("Point", input)
	require.Len(t, multierr.Errors(err), 1)
	require.True(t, errors.Is(err, jerrors.KindInvalidConstructorArgument))
	require.Equal(t, &Point{Label: "p"}, got)

	got, err = e.Decode("Point", []byte(`{"x":4,"label":"q"}`))
	require.NoError(t, err)
	require.Equal(t, &Point{X: 4, Label: "q"}, got)
}

func TestEngine_Errors(t *testing.T) {
	dir := t.TempDir()
	e := testEngine(t, WithCacheDir(dir))
	ctx := context.Background()

	_, err := e.EncodeBytes(ctx, "list<int", nil)
	require.True(t, errors.Is(err, jerrors.KindInvalidType), "got %v", err)

	_, err = e.EncodeBytes(ctx, "Ghost", nil)
	require.True(t, errors.Is(err, jerrors.KindNotFound), "got %v", err)

	_, err = e.EncodeBytes(ctx, "int", "x")
	require.True(t, errors.Is(err, jerrors.KindUnexpectedValue), "got %v", err)

	_, err = e.Decode("int", []byte(`"x"`))
	require.True(t, errors.Is(err, jerrors.KindUnexpectedValue), "got %v", err)

	_, err = e.Decode("Ghost", []byte(`{}`))
	require.True(t, errors.Is(err, jerrors.KindNotFound), "got %v", err)

	// Only the successful int program was written.
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, ents, 1)
	require.True(t, strings.HasSuffix(ents[0].Name(), ".json.encode"), ents[0].Name())
}

func TestEngine_ArtifactsPersist(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := testEngine(t, WithCacheDir(dir))
	_, err := first.EncodeBytes(ctx, "Item", item(1, "a"))
	require.NoError(t, err)

	path := first.Cache().Path(first.Key(types.MustParse("Item")))
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))

	// The artifact is loaded from disk, so no class lookup happens.
	empty, err := New(WithCacheDir(dir))
	require.NoError(t, err)
	art, err := empty.Artifact("Item")
	require.NoError(t, err)
	require.Equal(t, "Item", art.Signature)
	require.Equal(t, DirectionEncode, art.Direction)

	forced, err := New(WithCacheDir(dir), WithForce(true))
	require.NoError(t, err)
	_, err = forced.Artifact("Item")
	require.True(t, errors.Is(err, jerrors.KindNotFound), "got %v", err)

	require.NoError(t, first.ClearCache())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestEngine_VariantChangesKey(t *testing.T) {
	typ := types.MustParse("Item")
	plain := testEngine(t)
	grouped := testEngine(t, WithGroups("public", "admin", "public"))
	strict := testEngine(t, WithStrictUnions(true))
	tagged := testEngine(t, WithVariant("v2"))

	require.Equal(t, "groups=admin,public", grouped.Key(typ).Variant)
	hashes := map[string]bool{}
	for _, e := range []*Engine{plain, grouped, strict, tagged} {
		hashes[e.Key(typ).Hash()] = true
	}
	require.Len(t, hashes, 4)
}

func TestEngine_EncodeChunks(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	value := []any{int64(1), int64(2), int64(3)}

	var all bytes.Buffer
	for chunk, err := range e.EncodeChunks(ctx, "list<int>", value) {
		require.NoError(t, err)
		all.Write(chunk)
	}
	require.Equal(t, "[1,2,3]", all.String())

	n := 0
	for _, err := range e.EncodeChunks(ctx, "list<int>", value) {
		require.NoError(t, err)
		n++
		break
	}
	require.Equal(t, 1, n)

	var last error
	for _, err := range e.EncodeChunks(ctx, "list<int>", []any{"x"}) {
		last = err
	}
	require.True(t, errors.Is(last, jerrors.KindUnexpectedValue), "got %v", last)
}

func TestEngine_Hooks(t *testing.T) {
	enc := hook.New[template.Hook]()
	enc.Register(hook.Field("Item", "name"), func(template.HookInput) (template.HookOutput, error) {
		return template.HookOutput{Skip: true}, nil
	})
	dec := hook.New[decode.Hook]()
	dec.Register(hook.Field("Item", "id"), func(decode.HookInput) (decode.HookOutput, error) {
		return decode.HookOutput{Transform: func(v any) (any, error) {
			return v.(int64) + 100, nil
		}}, nil
	})

	e := testEngine(t, WithEncodeHooks(enc), WithDecodeHooks(dec))
	out, err := e.EncodeBytes(context.Background(), "Item", item(1, "a"))
	require.NoError(t, err)
	require.Equal(t, `{"id":1}`, string(out))

	got, err := e.Decode("Item", out)
	require.NoError(t, err)
	require.Equal(t, int64(101), got.(*descriptor.Record).Values["id"])
}

func TestEngine_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := testEngine(t, WithMetrics(reg, "t"))
	ctx := context.Background()

	for range 3 {
		_, err := e.EncodeBytes(ctx, "Item", item(1, "a"))
		require.NoError(t, err)
	}

	expected := `
# HELP t_artifact_cache_builds_total Artifacts generated.
# TYPE t_artifact_cache_builds_total counter
t_artifact_cache_builds_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "t_artifact_cache_builds_total"))
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	e := testEngine(t)
	_, err := e.EncodeBytes(context.Background(), "Item", item(1, "a"))
	require.NoError(t, err)

	built := logs.FilterMessage("encode program built").All()
	require.Len(t, built, 1)
	require.Equal(t, "Item", built[0].ContextMap()["signature"])
}

// doubleModule exports "double" (i64) -> i64 returning x+x.
var doubleModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7e, 0x01, 0x7e,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, 'd', 'o', 'u', 'b', 'l', 'e', 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x00, 0x7c, 0x0b,
}

const orderSchema = `
class "Order" {
  field "qty" {
    type   = "int"
    format = "units.double"
  }
  field "note" {
    type   = "string"
    groups = ["internal"]
  }
}
`

const engineConfig = `
cache_dir = "cache"
schemas   = ["schema.hcl"]
groups    = ["public"]

wasm "units" {
  path = "double.wasm"
}
`

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.hcl"), []byte(orderSchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "double.wasm"), doubleModule, 0o644))
	cfgPath := filepath.Join(dir, "jsongen.hcl")
	require.NoError(t, os.WriteFile(cfgPath, []byte(engineConfig), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	ctx := context.Background()
	e, err := FromConfig(ctx, cfg)
	require.NoError(t, err)
	defer e.Close(ctx)

	order := descriptor.NewRecord("Order")
	order.Values["qty"] = int64(4)
	order.Values["note"] = "secret"

	out, err := e.EncodeBytes(ctx, "Order", order)
	require.NoError(t, err)
	require.Equal(t, `{"qty":8}`, string(out))

	ents, err := os.ReadDir(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	require.Len(t, ents, 1)
}

func TestFromConfig_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Schemas = []string{filepath.Join(t.TempDir(), "missing.hcl")}
	_, err := FromConfig(ctx, cfg)
	require.True(t, errors.Is(err, jerrors.KindRuntime), "got %v", err)

	cfg = config.Default()
	cfg.Wit = []string{filepath.Join(t.TempDir(), "missing.json")}
	_, err = FromConfig(ctx, cfg)
	require.True(t, errors.Is(err, jerrors.KindRuntime), "got %v", err)

	badWit := filepath.Join(t.TempDir(), "types.json")
	require.NoError(t, os.WriteFile(badWit, []byte("nope"), 0o644))
	cfg.Wit = []string{badWit}
	_, err = FromConfig(ctx, cfg)
	require.True(t, errors.Is(err, jerrors.KindInvalidInput), "got %v", err)

	cfg = config.Default()
	cfg.Wasm = []config.Wasm{{Name: "bad", Path: filepath.Join(t.TempDir(), "missing.wasm")}}
	_, err = FromConfig(ctx, cfg)
	require.True(t, errors.Is(err, jerrors.KindRuntime), "got %v", err)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.wasm")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	cfg.Wasm = []config.Wasm{{Name: "bad", Path: bad}}
	_, err = FromConfig(ctx, cfg)
	require.True(t, errors.Is(err, jerrors.KindInvalidInput), "got %v", err)
}
