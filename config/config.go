// Package config loads engine settings from an HCL file.
//
//	cache_dir      = ".jsongen"
//	force          = false
//	strict_unions  = true
//	collect_errors = false
//	use_number     = false
//	lazy           = true
//	groups         = ["public"]
//	schemas        = ["schema.hcl"]
//	log_level      = "debug"
//
//	metrics {
//	  namespace = "jsongen"
//	}
//
//	wasm "units" {
//	  path = "formatters.wasm"
//	}
//
// Relative paths are resolved against the directory of the file.
package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/jsongen/errors"
)

// Config holds engine settings.
type Config struct {
	Metrics       *Metrics `hcl:"metrics,block"`
	CacheDir      string   `hcl:"cache_dir,optional"`
	LogLevel      string   `hcl:"log_level,optional"`
	Groups        []string `hcl:"groups,optional"`
	Schemas       []string `hcl:"schemas,optional"`
	Wit           []string `hcl:"wit,optional"`
	Wasm          []Wasm   `hcl:"wasm,block"`
	Force         bool     `hcl:"force,optional"`
	StrictUnions  bool     `hcl:"strict_unions,optional"`
	CollectErrors bool     `hcl:"collect_errors,optional"`
	UseNumber     bool     `hcl:"use_number,optional"`
	Lazy          *bool    `hcl:"lazy,optional"`
}

// Metrics configures cache metrics.
type Metrics struct {
	Namespace string `hcl:"namespace,optional"`
}

// Wasm names a WebAssembly module whose exports become formatter services.
// Services are registered as "<name>.<export>".
type Wasm struct {
	Name string `hcl:"name,label"`
	Path string `hcl:"path"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	lazy := true
	return &Config{Lazy: &lazy}
}

// IsLazy reports whether decoding defaults to lazy mode.
func (c *Config) IsLazy() bool {
	return c.Lazy == nil || *c.Lazy
}

// Level parses LogLevel. An empty level is info.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.LogLevel).
			Cause(err).
			Detail("invalid log_level").
			Build()
	}
	return l, nil
}

// Load reads and parses an HCL config file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Runtime(errors.PhaseConfig, "read "+path, err)
	}
	cfg, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse parses HCL source. filename is used in diagnostics only.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, Diagnostics(diags)
	}

	cfg := Default()
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, Diagnostics(diags)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cfg.Wasm))
	for _, w := range cfg.Wasm {
		if seen[w.Name] {
			return nil, errors.New(errors.PhaseConfig, errors.KindLogic).
				Value(w.Name).
				Detail("wasm module %q declared twice", w.Name).
				Build()
		}
		seen[w.Name] = true
	}
	return cfg, nil
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.CacheDir = abs(c.CacheDir)
	for i := range c.Schemas {
		c.Schemas[i] = abs(c.Schemas[i])
	}
	for i := range c.Wit {
		c.Wit[i] = abs(c.Wit[i])
	}
	for i := range c.Wasm {
		c.Wasm[i].Path = abs(c.Wasm[i].Path)
	}
}

// Diagnostics converts HCL diagnostics into a config error.
func Diagnostics(diags hcl.Diagnostics) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Cause(diags).
		Detail("%s", diags.Error()).
		Build()
}
