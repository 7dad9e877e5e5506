// Package service resolves named callables referenced by generated
// programs, such as per-field formatters.
package service

import (
	"context"
	"sort"
	"strings"

	"github.com/wippyai/jsongen/errors"
)

// Func is a resolved callable.
type Func func(ctx context.Context, v any) (any, error)

// Locator resolves callables by identifier.
type Locator interface {
	Resolve(id string) (Func, error)
}

// Map is a static Locator.
type Map map[string]Func

// Resolve implements Locator.
func (m Map) Resolve(id string) (Func, error) {
	if fn, ok := m[id]; ok && fn != nil {
		return fn, nil
	}
	return nil, errors.NotFound(errors.PhaseLink, "service", id)
}

// Names returns the registered identifiers in sorted order.
func (m Map) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Chain tries each locator in order and returns the first resolution.
type Chain []Locator

// Resolve implements Locator.
func (c Chain) Resolve(id string) (Func, error) {
	for _, l := range c {
		if l == nil {
			continue
		}
		fn, err := l.Resolve(id)
		if err == nil {
			return fn, nil
		}
		if errors.KindOf(err) != errors.KindNotFound {
			return nil, err
		}
	}
	return nil, errors.NotFound(errors.PhaseLink, "service", id)
}

// Prefix exposes l under "<prefix>.<id>". Ids without the prefix are not found.
func Prefix(prefix string, l Locator) Locator {
	return prefixed{prefix: prefix + ".", next: l}
}

type prefixed struct {
	next   Locator
	prefix string
}

func (p prefixed) Resolve(id string) (Func, error) {
	rest, ok := strings.CutPrefix(id, p.prefix)
	if !ok || rest == "" {
		return nil, errors.NotFound(errors.PhaseLink, "service", id)
	}
	return p.next.Resolve(rest)
}

// Strings adapts a string transform into a Func. Non-string input fails.
func Strings(fn func(string) string) Func {
	return func(_ context.Context, v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errors.New(errors.PhaseEncode, errors.KindUnexpectedValue).
				Value(v).
				Detail("expected string, got %T", v).
				Build()
		}
		return fn(s), nil
	}
}
