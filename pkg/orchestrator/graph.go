package orchestrator

import (
	"fmt"
	"sort"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/service"
)

// Graph is the validated dependency graph of an orchestration run. It is
// immutable after BuildGraph returns.
type Graph struct {
	specs      map[string]service.Spec
	order      []string            // topological, dependencies first
	dependents map[string][]string // reverse edges, deduplicated
}

// BuildGraph validates the service specs and resolves their dependency
// edges. It fails with UnknownDependencyError when an edge references an
// undeclared service and with CycleError when the graph cannot be ordered.
// Build-time failures happen before any service is touched.
func BuildGraph(specs []service.Spec) (*Graph, error) {
	if len(specs) == 0 {
		return nil, errors.NewPermanent("no services to orchestrate", nil)
	}

	g := &Graph{
		specs:      make(map[string]service.Spec, len(specs)),
		dependents: make(map[string][]string),
	}

	for _, spec := range specs {
		if spec.ID == "" {
			return nil, errors.NewPermanent("service ID cannot be empty", nil)
		}
		if spec.Launch == nil {
			return nil, errors.NewPermanent(fmt.Sprintf("service %q has no launcher", spec.ID), nil)
		}
		if _, exists := g.specs[spec.ID]; exists {
			return nil, errors.NewPermanent(fmt.Sprintf("duplicate service %q", spec.ID), nil)
		}
		g.specs[spec.ID] = spec
	}

	// Resolve edges. Duplicate edges to the same dependency contribute a
	// single ordering constraint; gate evaluation still honors every
	// declared gate.
	inDegree := make(map[string]int, len(g.specs))
	for id := range g.specs {
		inDegree[id] = 0
	}
	for id, spec := range g.specs {
		seen := make(map[string]bool, len(spec.DependsOn))
		for _, dep := range spec.DependsOn {
			if _, ok := g.specs[dep.Service]; !ok {
				return nil, errors.NewUnknownDependency(id, dep.Service)
			}
			if seen[dep.Service] {
				continue
			}
			seen[dep.Service] = true
			g.dependents[dep.Service] = append(g.dependents[dep.Service], id)
			inDegree[id]++
		}
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	// Kahn's algorithm. Zero-degree batches are sorted so the resulting
	// order is deterministic across runs.
	queue := make([]string, 0, len(g.specs))
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	g.order = make([]string, 0, len(g.specs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		g.order = append(g.order, current)

		var freed []string
		for _, dependent := range g.dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}
		sort.Strings(freed)
		queue = append(queue, freed...)
	}

	if len(g.order) != len(g.specs) {
		cycle := make([]string, 0)
		for id, degree := range inDegree {
			if degree > 0 {
				cycle = append(cycle, id)
			}
		}
		sort.Strings(cycle)
		return nil, errors.NewCycle(cycle)
	}

	return g, nil
}

// Services returns the service IDs in topological order, dependencies first.
func (g *Graph) Services() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Spec returns the spec for a service and whether the service exists.
func (g *Graph) Spec(id string) (service.Spec, bool) {
	spec, ok := g.specs[id]
	return spec, ok
}

// Dependencies returns the declared dependencies of a service.
func (g *Graph) Dependencies(id string) []service.Dependency {
	spec, ok := g.specs[id]
	if !ok {
		return nil
	}
	out := make([]service.Dependency, len(spec.DependsOn))
	copy(out, spec.DependsOn)
	return out
}

// Dependents returns the services that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	deps := g.dependents[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Len returns the number of services in the graph.
func (g *Graph) Len() int {
	return len(g.specs)
}
