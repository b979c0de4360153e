package flow

import (
	"log/slog"
	"slices"
)

// PassCatalog answers whether a pass name is registered.
// Implemented by pass.Registry.
type PassCatalog interface {
	Has(name string) bool
}

// Registry stores flow definitions. It is populated during backend
// construction and read-only afterwards.
type Registry struct {
	passes PassCatalog
	flows  map[string]*Flow
	order  []string
}

// NewRegistry creates a registry validating static pass lists against
// passes.
func NewRegistry(passes PassCatalog) *Registry {
	return &Registry{passes: passes, flows: make(map[string]*Flow)}
}

// Register stores a flow and returns its qualified name for use in later
// requires lists. Requires entries are not checked here because they may
// name flows registered later; Resolve checks them.
func (r *Registry) Register(name string, src Source, requires []string, backend string) (string, error) {
	qualified := Qualify(backend, name)
	if _, ok := r.flows[qualified]; ok {
		return "", &DuplicateFlowError{Name: qualified}
	}
	if s, ok := src.(staticSource); ok && r.passes != nil {
		for _, p := range s {
			if !r.passes.Has(p) {
				return "", &UnknownPassError{Flow: qualified, Pass: p}
			}
		}
	}
	r.flows[qualified] = &Flow{
		Name:     qualified,
		Backend:  backend,
		Requires: slices.Clone(requires),
		source:   src,
	}
	r.order = append(r.order, qualified)
	return qualified, nil
}

// Get returns a flow by qualified name.
func (r *Registry) Get(name string) (*Flow, bool) {
	f, ok := r.flows[name]
	return f, ok
}

// Names returns the registered flow names in registration order.
func (r *Registry) Names() []string { return slices.Clone(r.order) }

// ResolveFlows returns the flows reachable from name, prerequisites
// first. Requires are walked in declared order and each flow appears once,
// at its earliest position.
func (r *Registry) ResolveFlows(name string) ([]*Flow, error) {
	graph, err := r.reachable(name)
	if err != nil {
		return nil, err
	}
	if cycle := findCycle(graph); cycle != nil {
		return nil, &CyclicFlowError{Path: cycle}
	}

	var out []*Flow
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, req := range graph[n] {
			visit(req)
		}
		out = append(out, r.flows[n])
	}
	visit(name)
	return out, nil
}

// Resolve returns the full ordered pass sequence for name. Passes are not
// deduplicated across flows.
func (r *Registry) Resolve(name string) ([]string, error) {
	flows, err := r.ResolveFlows(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range flows {
		out = append(out, f.Passes()...)
	}
	return out, nil
}

// reachable collects the requires graph below name, failing on the first
// unregistered flow.
func (r *Registry) reachable(name string) (requiresGraph, error) {
	if _, ok := r.flows[name]; !ok {
		return nil, &UnknownFlowError{Name: name}
	}
	graph := make(requiresGraph)
	queue := []string{name}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if _, done := graph[n]; done {
			continue
		}
		f := r.flows[n]
		graph[n] = slices.Clone(f.Requires)
		for _, req := range f.Requires {
			if _, ok := r.flows[req]; !ok {
				return nil, &UnknownFlowError{Name: req, RequiredBy: n}
			}
			queue = append(queue, req)
		}
	}
	return graph, nil
}

// Unused returns the catalogue passes that appear in no flow reachable
// from roots, in catalogue order.
func (r *Registry) Unused(catalogue []string, roots ...string) ([]string, error) {
	used := make(map[string]bool)
	for _, root := range roots {
		passes, err := r.Resolve(root)
		if err != nil {
			return nil, err
		}
		for _, p := range passes {
			used[p] = true
		}
	}
	var out []string
	for _, p := range catalogue {
		if !used[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// WarnUnused logs every unused pass as a warning. Unused passes are not
// an error: they simply never run.
func WarnUnused(logger *slog.Logger, unused []string) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, p := range unused {
		logger.Warn("pass is not part of any flow and will not be executed", "pass", p)
	}
}
