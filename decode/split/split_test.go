package split

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/jsongen/decode/lexer"
	jerrors "github.com/wippyai/jsongen/errors"
)

func listParts(t *testing.T, input string) ([]string, bool) {
	t.Helper()
	src := strings.NewReader(input)
	seq, ok, err := List(src, 0, int64(len(input)))
	require.NoError(t, err)
	if !ok {
		return nil, false
	}
	var out []string
	for b, err := range seq {
		require.NoError(t, err)
		out = append(out, input[b.Offset:b.End()])
	}
	return out, true
}

func TestList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", `[]`, nil},
		{"scalars", `[1, "a", true, null]`, []string{`1`, `"a"`, `true`, `null`}},
		{"nested", `[[1,[2]], {"a":[3]}, 4]`, []string{`[1,[2]]`, `{"a":[3]}`, `4`}},
		{"strings with brackets", `["]", "[,"]`, []string{`"]"`, `"[,"`}},
		{"whitespace", " [ 1 ,\n 2 ] ", []string{`1`, `2`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := listParts(t, tt.input)
			require.True(t, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestList_Null(t *testing.T) {
	_, ok := listParts(t, ` null `)
	require.False(t, ok)
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"trailing comma", `[1,]`},
		{"missing comma", `[1 2]`},
		{"truncated", `[1, [2`},
		{"mismatched", `[1, {]`},
		{"trailing data", `[1] 2`},
		{"leading comma", `[,1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := strings.NewReader(tt.input)
			seq, ok, err := List(src, 0, int64(len(tt.input)))
			if err == nil {
				require.True(t, ok)
				for _, err = range seq {
					if err != nil {
						break
					}
				}
			}
			require.Error(t, err)
			require.True(t, errors.Is(err, jerrors.KindRuntime))
		})
	}

	_, _, err := List(strings.NewReader(`{}`), 0, 2)
	require.Error(t, err)
	_, _, err = List(strings.NewReader(``), 0, 0)
	require.Error(t, err)
}

func TestList_EarlyStop(t *testing.T) {
	input := `[1, 2, 3, @]`
	seq, ok, err := List(strings.NewReader(input), 0, int64(len(input)))
	require.NoError(t, err)
	require.True(t, ok)
	for b, err := range seq {
		require.NoError(t, err)
		require.Equal(t, "1", input[b.Offset:b.End()])
		break
	}
}

func TestDict(t *testing.T) {
	input := `{"a": 1, "b\"q": {"x": [1, 2]}, "": null}`
	seq, ok, err := Dict(strings.NewReader(input), 0, int64(len(input)))
	require.NoError(t, err)
	require.True(t, ok)

	var keys, values []string
	for f, err := range seq {
		require.NoError(t, err)
		keys = append(keys, f.Key)
		values = append(values, input[f.Value.Offset:f.Value.End()])
	}
	require.Equal(t, []string{"a", `b"q`, ""}, keys)
	require.Equal(t, []string{`1`, `{"x": [1, 2]}`, `null`}, values)
}

func TestDict_Subrange(t *testing.T) {
	input := `[{"k": "v"}, 5]`
	seq, ok, err := Dict(strings.NewReader(input), 1, 10)
	require.NoError(t, err)
	require.True(t, ok)
	for f, err := range seq {
		require.NoError(t, err)
		require.Equal(t, "k", f.Key)
		require.Equal(t, `"v"`, input[f.Value.Offset:f.Value.End()])
	}
}

func TestDict_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"non-string key", `{1: 2}`},
		{"missing colon", `{"a" 2}`},
		{"missing value", `{"a":}`},
		{"truncated", `{"a": 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok, err := Dict(strings.NewReader(tt.input), 0, int64(len(tt.input)))
			require.NoError(t, err)
			require.True(t, ok)
			var last error
			for _, err := range seq {
				last = err
			}
			require.Error(t, last)
		})
	}

	_, ok, err := Dict(strings.NewReader(`null`), 0, 4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValue(t *testing.T) {
	input := `  {"a": [1]}  `
	b, k, err := Value(strings.NewReader(input), 0, int64(len(input)))
	require.NoError(t, err)
	require.Equal(t, lexer.LBrace, k)
	require.Equal(t, `{"a": [1]}`, input[b.Offset:b.End()])

	_, _, err = Value(strings.NewReader(`1 2`), 0, 3)
	require.Error(t, err)
}

func TestIsNull(t *testing.T) {
	null, err := IsNull(strings.NewReader(" null"), 0, 5)
	require.NoError(t, err)
	require.True(t, null)

	null, err = IsNull(strings.NewReader("[null]"), 0, 6)
	require.NoError(t, err)
	require.False(t, null)
}
