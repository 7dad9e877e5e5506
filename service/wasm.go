package service

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/jsongen/errors"
)

// Wasm resolves services to functions exported by a WebAssembly module.
//
// Supported signatures are numeric and unary: (i64) -> i64 receives and
// returns an int64, (f64) -> f64 a float64. Each call runs on the shared
// module instance, so a Wasm locator must not be used by concurrent
// programs unless the module is stateless.
type Wasm struct {
	runtime wazero.Runtime
	module  api.Module
	kinds   map[string]api.ValueType
}

// NewWasm compiles and instantiates the module in binary.
func NewWasm(ctx context.Context, binary []byte) (*Wasm, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	mod, err := rt.Instantiate(ctx, binary)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "instantiate formatter module")
	}

	w := &Wasm{runtime: rt, module: mod, kinds: make(map[string]api.ValueType)}
	for name, def := range mod.ExportedFunctionDefinitions() {
		params, results := def.ParamTypes(), def.ResultTypes()
		if len(params) != 1 || len(results) != 1 || params[0] != results[0] {
			Logger().Debug("skipping export with unsupported signature", zap.String("export", name))
			continue
		}
		switch params[0] {
		case api.ValueTypeI64, api.ValueTypeF64:
			w.kinds[name] = params[0]
		default:
			Logger().Debug("skipping non-numeric export", zap.String("export", name))
		}
	}
	Logger().Debug("wasm formatters loaded", zap.Int("count", len(w.kinds)))
	return w, nil
}

// Resolve implements Locator.
func (w *Wasm) Resolve(id string) (Func, error) {
	kind, ok := w.kinds[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseLink, "wasm export", id)
	}
	fn := w.module.ExportedFunction(id)

	return func(ctx context.Context, v any) (any, error) {
		var arg uint64
		switch kind {
		case api.ValueTypeI64:
			n, ok := toInt64(v)
			if !ok {
				return nil, errors.UnexpectedValue(errors.PhaseEncode, []string{id}, "int", v, "wasm formatter expects an integer")
			}
			arg = api.EncodeI64(n)
		default:
			f, ok := toFloat64(v)
			if !ok {
				return nil, errors.UnexpectedValue(errors.PhaseEncode, []string{id}, "float", v, "wasm formatter expects a number")
			}
			arg = api.EncodeF64(f)
		}

		out, err := fn.Call(ctx, arg)
		if err != nil {
			return nil, errors.Runtime(errors.PhaseEncode, "wasm formatter "+id+" failed", err)
		}
		if kind == api.ValueTypeI64 {
			return int64(out[0]), nil
		}
		return api.DecodeF64(out[0]), nil
	}, nil
}

// Names returns the exports usable as services.
func (w *Wasm) Names() []string {
	names := make([]string, 0, len(w.kinds))
	for n := range w.kinds {
		names = append(names, n)
	}
	return names
}

// Close releases the runtime.
func (w *Wasm) Close(ctx context.Context) error {
	return w.runtime.Close(ctx)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
