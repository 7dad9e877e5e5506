package jsongen

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/jsongen/decode"
	"github.com/wippyai/jsongen/descriptor"
	"github.com/wippyai/jsongen/hook"
	"github.com/wippyai/jsongen/service"
	"github.com/wippyai/jsongen/template"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	provider      descriptor.Provider
	encodeHooks   *hook.Registry[template.Hook]
	decodeHooks   *hook.Registry[decode.Hook]
	registerer    prometheus.Registerer
	namespace     string
	cacheDir      string
	variant       string
	services      service.Chain
	groups        []string
	strictUnions  bool
	force         bool
	collectErrors bool
	useNumber     bool
	eager         bool
}

// WithProvider sets the descriptor provider for classes and enums.
// Without one the engine only knows scalars, collections and unions.
func WithProvider(p descriptor.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithEncodeHooks sets the hooks consulted while building encode programs.
func WithEncodeHooks(r *hook.Registry[template.Hook]) Option {
	return func(o *options) { o.encodeHooks = r }
}

// WithDecodeHooks sets the hooks consulted while compiling decoders.
func WithDecodeHooks(r *hook.Registry[decode.Hook]) Option {
	return func(o *options) { o.decodeHooks = r }
}

// WithServices adds service locators. Locators added first take precedence.
func WithServices(l ...service.Locator) Option {
	return func(o *options) { o.services = append(o.services, l...) }
}

// WithCacheDir persists encode artifacts under dir. An empty dir keeps
// artifacts in memory only.
func WithCacheDir(dir string) Option {
	return func(o *options) { o.cacheDir = dir }
}

// WithMetrics registers cache metrics on reg under namespace.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = reg
		o.namespace = namespace
	}
}

// WithGroups restricts encoded objects to fields in the given groups.
func WithGroups(groups ...string) Option {
	return func(o *options) { o.groups = append(o.groups, groups...) }
}

// WithStrictUnions makes encoding fail when a value matches no union member.
func WithStrictUnions(strict bool) Option {
	return func(o *options) { o.strictUnions = strict }
}

// WithForce rebuilds artifacts even when a cached file exists.
func WithForce(force bool) Option {
	return func(o *options) { o.force = force }
}

// WithCollectErrors makes decoding record object construction and field
// assignment errors and return a best-effort value.
func WithCollectErrors(collect bool) Option {
	return func(o *options) { o.collectErrors = collect }
}

// WithUseNumber keeps numbers decoded into mixed values as json.Number.
func WithUseNumber(use bool) Option {
	return func(o *options) { o.useNumber = use }
}

// WithLazy selects lazy (default) or eager decoding for Decode.
func WithLazy(lazy bool) Option {
	return func(o *options) { o.eager = !lazy }
}

// WithVariant tags the artifacts of this engine. Engines that share a cache
// directory but register different encode hooks must use different tags.
func WithVariant(tag string) Option {
	return func(o *options) { o.variant = tag }
}
