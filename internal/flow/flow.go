// Package flow declares named, dependency-ordered sequences of passes.
//
// A flow is a list of pass names, a provider evaluated lazily when the
// flow is resolved, or nothing at all (an aggregator whose only effect is
// to pull in its prerequisites). Flows name the flows they require;
// resolution walks that relation depth-first so prerequisites run first.
package flow

import (
	"slices"
	"strings"
)

// Source yields a flow's pass names. Use Static, Lazy or nil (aggregator).
type Source interface {
	passes() []string
}

type staticSource []string

func (s staticSource) passes() []string { return slices.Clone([]string(s)) }

type lazySource func() []string

func (s lazySource) passes() []string { return s() }

// Static lists pass names in execution order.
func Static(names ...string) Source { return staticSource(names) }

// Lazy defers the pass list to resolution time.
func Lazy(fn func() []string) Source { return lazySource(fn) }

// Flow is one registered flow definition.
type Flow struct {
	// Name is the qualified name, "backend:name" or a bare generic name.
	Name     string
	Backend  string
	Requires []string
	source   Source
}

// Passes returns the flow's pass names, evaluating a provider if needed.
// Aggregators return nil.
func (f *Flow) Passes() []string {
	if f.source == nil {
		return nil
	}
	return f.source.passes()
}

// IsAggregator reports whether the flow has no passes of its own.
func (f *Flow) IsAggregator() bool { return f.source == nil }

// IsLazy reports whether the pass list comes from a provider.
func (f *Flow) IsLazy() bool {
	_, ok := f.source.(lazySource)
	return ok
}

// Qualify returns the registry key of a flow name under backend.
func Qualify(backend, name string) string {
	if backend == "" || strings.Contains(name, ":") {
		return name
	}
	return strings.ToLower(backend) + ":" + name
}
