// Package dag implements the dependency graph that orders pipeline steps.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed acyclic graph of step names. Edges point from a
// dependency to the steps that consume it.
type Graph struct {
	nodes    map[string]bool
	children map[string][]string
	parents  map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]bool),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Add registers a step. Adding the same step twice is a no-op.
func (g *Graph) Add(id string) {
	g.nodes[id] = true
}

// Depend records that step depends on dep. Both must already be registered.
func (g *Graph) Depend(step, dep string) error {
	if step == dep {
		return fmt.Errorf("step %q cannot depend on itself", step)
	}
	if !g.nodes[step] {
		return fmt.Errorf("unknown step %q", step)
	}
	if !g.nodes[dep] {
		return fmt.Errorf("unknown dependency %q of step %q", dep, step)
	}
	for _, c := range g.children[dep] {
		if c == step {
			return nil
		}
	}
	g.children[dep] = append(g.children[dep], step)
	g.parents[step] = append(g.parents[step], dep)
	return nil
}

// Has reports whether the step is registered.
func (g *Graph) Has(id string) bool {
	return g.nodes[id]
}

// Len returns the number of registered steps.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Edges returns the number of dependency edges.
func (g *Graph) Edges() int {
	n := 0
	for _, c := range g.children {
		n += len(c)
	}
	return n
}

// Parents returns the direct dependencies of a step, sorted.
func (g *Graph) Parents(id string) []string {
	return sortedCopy(g.parents[id])
}

// Children returns the steps that directly depend on id, sorted.
func (g *Graph) Children(id string) []string {
	return sortedCopy(g.children[id])
}

// Roots returns the steps with no dependencies, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Sort returns the steps in dependency order using Kahn's algorithm.
// Ties are broken lexicographically so the order is stable across runs.
func (g *Graph) Sort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}

	ready := g.Roots()
	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, child := range g.children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = insertSorted(ready, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for id, d := range indegree {
			if d > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle involving: %v", stuck)
	}
	return order, nil
}

// Levels groups steps into execution levels: every step in level n depends
// only on steps in earlier levels. Steps within a level are sorted.
func (g *Graph) Levels() ([][]string, error) {
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(g.nodes))
	maxDepth := 0
	for _, id := range order {
		d := 0
		for _, p := range g.parents[id] {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[id] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]string, maxDepth+1)
	for _, id := range order {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	for _, lvl := range levels {
		sort.Strings(lvl)
	}
	return levels, nil
}

// Downstream returns every step that transitively depends on id, sorted.
// The step itself is not included.
func (g *Graph) Downstream(id string) []string {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(n string) {
		for _, c := range g.children[n] {
			if !seen[c] {
				seen[c] = true
				visit(c)
			}
		}
	}
	visit(id)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
