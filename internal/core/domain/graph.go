package domain

import (
	"iter"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// Node is one entry of the dependency graph: a recipe selected for build
// and the subset of its dependencies that also need building.
type Node struct {
	Recipe *Recipe
	// Edges lists dependency names that must be built before this node.
	// Dependencies already satisfied by the catalog are not edges.
	Edges []InternedString
}

// Graph is the transient dependency DAG built per operation. Nodes are
// keyed by package name; at most one version of a package participates in
// a single resolution.
type Graph struct {
	nodes      map[InternedString]Node
	buildOrder []InternedString
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[InternedString]Node),
	}
}

// AddNode adds a recipe node to the graph. Adding the same name twice is
// harmless as long as the version is identical; a second version is a
// resolution bug and reported as such.
func (g *Graph) AddNode(n Node) error {
	name := NewInternedString(strings.ToLower(n.Recipe.Name))
	if existing, ok := g.nodes[name]; ok {
		if existing.Recipe.Version != n.Recipe.Version {
			err := zerr.With(zerr.Wrap(ErrVersionMismatch, "second version in graph"), "package", name.String())
			err = zerr.With(err, "have", existing.Recipe.Version)
			return zerr.With(err, "want", n.Recipe.Version)
		}
		return nil
	}
	g.nodes[name] = n
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Validate checks for cycles using three-color DFS and populates the build
// order (post-order, so dependencies precede their dependents). Roots are
// visited in sorted name order to keep the build order deterministic.
func (g *Graph) Validate() error {
	g.buildOrder = make([]InternedString, 0, len(g.nodes))
	state := make(map[InternedString]int, len(g.nodes)) // 0 white, 1 grey, 2 black
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		state[u] = 1
		path = append(path, u)

		node, ok := g.nodes[u]
		if !ok {
			return zerr.With(zerr.Wrap(ErrUnresolvedDependency, "edge to missing node"), "dependency", u.String())
		}

		for _, dep := range node.Edges {
			if state[dep] == 1 {
				return g.cycleError(path, dep)
			}
			if state[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		state[u] = 2
		path = path[:len(path)-1]
		g.buildOrder = append(g.buildOrder, u)
		return nil
	}

	roots := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		roots = append(roots, name.String())
	}
	sort.Strings(roots)

	for _, root := range roots {
		name := NewInternedString(root)
		if state[name] == 0 {
			if err := visit(name); err != nil {
				return err
			}
		}
	}

	return nil
}

// cycleError renders the cycle path from its first occurrence of dep.
func (g *Graph) cycleError(path []InternedString, dep InternedString) error {
	start := 0
	for i, node := range path {
		if node == dep {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, node := range path[start:] {
		parts = append(parts, node.String())
	}
	parts = append(parts, dep.String())
	return zerr.With(zerr.Wrap(ErrCycle, "graph validation"), "cycle", strings.Join(parts, " -> "))
}

// Walk returns an iterator over the graph's recipes in build order.
// Validate must have been called and returned nil.
func (g *Graph) Walk() iter.Seq[*Recipe] {
	return func(yield func(*Recipe) bool) {
		for _, name := range g.buildOrder {
			if !yield(g.nodes[name].Recipe) {
				return
			}
		}
	}
}

// BuildOrder returns the topologically sorted recipes, dependencies first.
func (g *Graph) BuildOrder() []*Recipe {
	out := make([]*Recipe, 0, len(g.buildOrder))
	for _, name := range g.buildOrder {
		out = append(out, g.nodes[name].Recipe)
	}
	return out
}
