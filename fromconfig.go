package jsongen

import (
	"context"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/jsongen/config"
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/descriptor/hclschema"
	"github.com/wippyai/jsongen/descriptor/witschema"
	"github.com/wippyai/jsongen/errors"
	"github.com/wippyai/jsongen/service"
)

// FromConfig creates an engine from file settings. WIT resolves and HCL
// schemas are loaded into a new descriptor table, WIT first, and every wasm
// module is exposed as services named "<module>.<export>". opts are applied after the settings and may override
// them; services they add are consulted after the wasm modules.
func FromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := options{
		cacheDir:      cfg.CacheDir,
		groups:        slices.Clone(cfg.Groups),
		strictUnions:  cfg.StrictUnions,
		force:         cfg.Force,
		collectErrors: cfg.CollectErrors,
		useNumber:     cfg.UseNumber,
		eager:         !cfg.IsLazy(),
	}
	if cfg.Metrics != nil {
		o.registerer = prometheus.DefaultRegisterer
		o.namespace = cfg.Metrics.Namespace
	}

	if len(cfg.Schemas) > 0 || len(cfg.Wit) > 0 {
		tbl := descriptor.NewTable()
		for _, path := range cfg.Wit {
			if err := witschema.Load(tbl, path); err != nil {
				return nil, err
			}
		}
		for _, path := range cfg.Schemas {
			if err := hclschema.Load(tbl, path); err != nil {
				return nil, err
			}
		}
		o.provider = tbl
	}

	var closers []func(context.Context) error
	fail := func(err error) (*Engine, error) {
		for _, c := range closers {
			err = multierr.Append(err, c(ctx))
		}
		return nil, err
	}
	for _, m := range cfg.Wasm {
		bin, err := os.ReadFile(m.Path)
		if err != nil {
			return fail(errors.Runtime(errors.PhaseConfig, "read wasm module "+m.Path, err))
		}
		w, err := service.NewWasm(ctx, bin)
		if err != nil {
			return fail(errors.WithPath(err, m.Name))
		}
		closers = append(closers, w.Close)
		o.services = append(o.services, service.Prefix(m.Name, w))
		Logger().Debug("wasm services registered", zap.String("module", m.Name), zap.Strings("exports", w.Names()))
	}

	for _, opt := range opts {
		opt(&o)
	}
	e, err := newEngine(o)
	if err != nil {
		return fail(err)
	}
	e.closers = closers
	return e, nil
}
