package scheduler

import (
	"fmt"
	"sort"

	"github.com/gammazero/toposort"
)

// Order returns the artifacts with every dependency listed before its
// dependents. Used for plans; the scheduler itself never needs it.
func (g *Graph) Order() ([]string, error) {
	names := g.Names()

	var edges []toposort.Edge
	for _, name := range names {
		n := g.nodes[name]
		if len(n.Deps) == 0 {
			// Edge from nil keeps leaves in the result
			edges = append(edges, toposort.Edge{nil, name})
			continue
		}
		deps := append([]string(nil), n.Deps...)
		sort.Strings(deps)
		for _, dep := range deps {
			edges = append(edges, toposort.Edge{dep, name})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph of %q contains a cycle: %w", g.Root, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}
