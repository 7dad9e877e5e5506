package decode

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/types"
)

// Scalar decodes the single scalar in src[offset:offset+length].
// Numbers are float64, or json.Number when ctx.UseNumber is set.
func Scalar(src io.ReaderAt, offset, length int64, ctx Context) (any, error) {
	r, err := rootValue(src, offset, length)
	if err != nil {
		return nil, err
	}
	raw, err := r.raw()
	if err != nil {
		return nil, err
	}
	v, err := decodeRaw(raw, r.b.Offset, ctx.UseNumber)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case []any, map[string]any:
		return nil, errors.New(errors.PhaseDecode, errors.KindUnexpectedValue).
			Value(offset).
			Detail("offset %d: expected a scalar, got %s", r.b.Offset, r.k).
			Build()
	}
	return v, nil
}

// cast converts a decoded scalar to the named scalar type.
func cast(name string, v any, useNumber bool) (any, bool) {
	switch name {
	case types.Mixed:
		return normalize(v, useNumber), true
	case types.Int:
		return castInt(v)
	case types.Float:
		return castFloat(v)
	case types.String:
		switch x := v.(type) {
		case string:
			return x, true
		case json.Number:
			return x.String(), true
		}
	case types.Bool:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, true
			}
		case json.Number:
			switch x.String() {
			case "0":
				return false, true
			case "1":
				return true, true
			}
		}
	}
	return nil, false
}

func castInt(v any) (any, bool) {
	var text string
	switch x := v.(type) {
	case json.Number:
		text = x.String()
	case string:
		text = strings.TrimSpace(x)
	case float64:
		return integral(x)
	case int64:
		return x, true
	default:
		return nil, false
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, false
	}
	return integral(f)
}

func integral(f float64) (any, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, false
	}
	return int64(f), true
}

func castFloat(v any) (any, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return nil, false
}

// normalize replaces json.Number with int64 or float64 throughout v.
func normalize(v any, useNumber bool) any {
	if useNumber {
		return v
	}
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i, it := range x {
			x[i] = normalize(it, false)
		}
	case map[string]any:
		for k, it := range x {
			x[k] = normalize(it, false)
		}
	}
	return v
}

// isIntText reports whether a JSON number has no fraction or exponent.
func isIntText(v any) bool {
	n, ok := v.(json.Number)
	return ok && !strings.ContainsAny(n.String(), ".eE")
}
