package jsongen

import (
	"bytes"
	"context"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/jsongen/cache"
	"github.com/wippyai/jsongen/compiler"
	"github.com/wippyai/jsongen/decode"
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/instantiate"
	"github.com/wippyai/jsongen/ir"
	"github.com/wippyai/jsongen/template"
	"github.com/wippyai/jsongen/types"
)

// Artifact identity components.
const (
	Format          = "json"
	DirectionEncode = "encode"
)

// Engine builds, caches and runs encode programs and compiles decoders.
type Engine struct {
	opts     options
	variant  string
	cache    *cache.Cache
	decoders *decode.Compiler
	closers  []func(context.Context) error
}

// New creates an engine.
func New(opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newEngine(o)
}

func newEngine(o options) (*Engine, error) {
	if o.provider == nil {
		o.provider = descriptor.NewTable()
	}
	o.groups = slices.Compact(slices.Sorted(slices.Values(o.groups)))

	var copts []cache.Option
	if o.registerer != nil {
		copts = append(copts, cache.WithMetrics(cache.NewMetrics(o.registerer, o.namespace)))
	}
	c, err := cache.New(o.cacheDir, copts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:     o,
		variant:  variant(o),
		cache:    c,
		decoders: decode.NewCompiler(o.provider, o.decodeHooks),
	}
	Logger().Debug("engine created",
		zap.String("cache_dir", o.cacheDir),
		zap.String("variant", e.variant),
		zap.Bool("lazy", !o.eager))
	return e, nil
}

// variant names the generation settings that change encode output.
func variant(o options) string {
	var parts []string
	if len(o.groups) > 0 {
		parts = append(parts, "groups="+strings.Join(o.groups, ","))
	}
	if o.strictUnions {
		parts = append(parts, "strict")
	}
	if o.variant != "" {
		parts = append(parts, "tag="+o.variant)
	}
	return strings.Join(parts, ";")
}

// Provider returns the descriptor provider.
func (e *Engine) Provider() descriptor.Provider {
	return e.opts.provider
}

// Cache returns the artifact cache.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// Key returns the cache key of the encode artifact for t.
func (e *Engine) Key(t *types.Type) cache.Key {
	return cache.Key{
		Signature: t.String(),
		Direction: DirectionEncode,
		Format:    Format,
		Variant:   e.variant,
	}
}

// Artifact returns the encode artifact for signature, building and storing
// it when the cache has none.
func (e *Engine) Artifact(signature string) (*compiler.Artifact, error) {
	t, err := types.Parse(signature)
	if err != nil {
		return nil, err
	}
	return e.artifact(t)
}

func (e *Engine) artifact(t *types.Type) (*compiler.Artifact, error) {
	entry, err := e.cache.GetOrBuild(e.Key(t), e.opts.force, func() ([]byte, error) {
		start := time.Now()
		block, err := template.Build(t, e.templateContext())
		if err != nil {
			return nil, err
		}
		optimized := ir.Optimize(block)
		Logger().Debug("encode program built",
			zap.String("signature", t.String()),
			zap.Int("emits", ir.CountEmits(block)),
			zap.Int("emits_optimized", ir.CountEmits(optimized)),
			zap.Duration("took", time.Since(start)))
		return compiler.Compile(&compiler.Artifact{
			Program:   optimized,
			Signature: t.String(),
			Direction: DirectionEncode,
		})
	})
	if err != nil {
		return nil, err
	}
	return compiler.Load(entry.Data)
}

func (e *Engine) templateContext() template.Context {
	ctx := template.NewContext(e.opts.provider, e.opts.encodeHooks)
	ctx.Groups = e.opts.groups
	ctx.StrictUnions = e.opts.strictUnions
	return ctx
}

// Program returns the linked encode program for signature. Programs are
// linked once per engine and shared by later calls.
func (e *Engine) Program(signature string) (*compiler.Program, error) {
	t, err := types.Parse(signature)
	if err != nil {
		return nil, err
	}
	p, err := e.cache.Memo(e.Key(t), func() (any, error) {
		art, err := e.artifact(t)
		if err != nil {
			return nil, err
		}
		return compiler.Link(art.Program, compiler.Runtime{
			Provider: e.opts.provider,
			Services: e.opts.services,
		})
	})
	if err != nil {
		return nil, err
	}
	return p.(*compiler.Program), nil
}

// Encode writes the JSON encoding of value as signature to w.
func (e *Engine) Encode(ctx context.Context, w io.Writer, signature string, value any) error {
	p, err := e.Program(signature)
	if err != nil {
		return err
	}
	return p.Run(ctx, w, value)
}

// EncodeBytes returns the JSON encoding of value as signature.
func (e *Engine) EncodeBytes(ctx context.Context, signature string, value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Encode(ctx, &buf, signature, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeChunks yields the encoding of value as it is produced. Stopping the
// iteration stops the encode. A failure is yielded once, as the last item.
func (e *Engine) EncodeChunks(ctx context.Context, signature string, value any) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		p, err := e.Program(signature)
		if err != nil {
			yield(nil, err)
			return
		}
		w := &chunkWriter{yield: yield}
		if err := p.Run(ctx, w, value); err != nil && !w.stopped {
			yield(nil, err)
		}
	}
}

type chunkWriter struct {
	yield   func([]byte, error) bool
	stopped bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.stopped || !w.yield(bytes.Clone(p), nil) {
		w.stopped = true
		return 0, errors.Logic(errors.PhaseEncode, "chunk consumer stopped")
	}
	return len(p), nil
}

// Decoder returns the compiled decoder for signature.
func (e *Engine) Decoder(signature string) (*decode.Decoder, error) {
	t, err := types.Parse(signature)
	if err != nil {
		return nil, err
	}
	return e.decoders.Compile(t)
}

// Decode decodes data as signature, lazily unless the engine was built
// WithLazy(false).
//
// With error collection enabled, Decode returns the best-effort value
// together with the combined collected errors; multierr.Errors splits them.
// Errors raised while consuming a lazy iterable after Decode returns are
// yielded by the iterable instead.
func (e *Engine) Decode(signature string, data []byte) (any, error) {
	d, err := e.Decoder(signature)
	if err != nil {
		return nil, err
	}
	ctx := e.decodeContext()
	var v any
	if e.opts.eager {
		v, err = d.DecodeEager(data, ctx)
	} else {
		v, err = d.DecodeBytes(data, ctx)
	}
	return collected(v, err, ctx)
}

// DecodeReaderAt lazily decodes src[offset:offset+length] as signature.
// src must stay readable while lazy iterables in the result are consumed.
func (e *Engine) DecodeReaderAt(signature string, src io.ReaderAt, offset, length int64) (any, error) {
	d, err := e.Decoder(signature)
	if err != nil {
		return nil, err
	}
	ctx := e.decodeContext()
	v, err := d.Decode(src, offset, length, ctx)
	return collected(v, err, ctx)
}

func (e *Engine) decodeContext() decode.Context {
	ctx := decode.Context{UseNumber: e.opts.useNumber}
	if e.opts.collectErrors {
		ctx.Errors = instantiate.NewCollector()
	}
	return ctx
}

func collected(v any, err error, ctx decode.Context) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, ctx.Errors.Err()
}

// ClearCache removes every artifact from memory and disk.
func (e *Engine) ClearCache() error {
	e.decoders.Reset()
	return e.cache.Clear()
}

// Close releases the wasm modules loaded for this engine.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	for _, c := range e.closers {
		err = multierr.Append(err, c(ctx))
	}
	e.closers = nil
	return err
}
