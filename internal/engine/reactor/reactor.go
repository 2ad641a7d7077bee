// Package reactor resolves dependency graphs into topologically ordered
// build plans.
package reactor

import (
	"errors"
	"strings"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Reactor builds the dependency DAG for a target against the current
// catalog state and linearizes it into a build plan.
type Reactor struct {
	store   ports.RecipeStore
	catalog ports.Catalog
}

// New creates a Reactor over the given recipe store and catalog.
func New(store ports.RecipeStore, catalog ports.Catalog) *Reactor {
	return &Reactor{store: store, catalog: catalog}
}

// visit colors for cycle detection.
const (
	white = iota
	grey
	black
)

type resolution struct {
	r     *Reactor
	graph *domain.Graph
	state map[string]int
	path  []string
}

// Plan resolves target and its transitive dependencies into a build plan:
// recipes ordered so every dependency is committed before its dependents.
// Dependencies already satisfied by an installed package are pruned.
//
// Installing the same version again fails with domain.ErrAlreadyInstalled.
// A version change that would violate a constraint declared by an installed
// reverse dependency fails with domain.ErrConflictingReverseDep.
func (r *Reactor) Plan(target string) ([]*domain.Recipe, error) {
	target = strings.ToLower(target)

	recipe, err := r.store.Load(target)
	if err != nil {
		return nil, err
	}

	installed, err := r.catalog.Get(target)
	if err != nil {
		return nil, err
	}
	if installed != nil {
		if installed.Version.Equal(recipe.MustVersion()) {
			return nil, zerr.With(zerr.Wrap(domain.ErrAlreadyInstalled, "same version is installed"), "package", target)
		}
		if err := r.guardReverseDeps(target, recipe.MustVersion()); err != nil {
			return nil, err
		}
	}

	res := &resolution{
		r:     r,
		graph: domain.NewGraph(),
		state: make(map[string]int),
	}
	if err := res.visit(recipe); err != nil {
		return nil, err
	}

	if err := res.graph.Validate(); err != nil {
		return nil, err
	}
	return res.graph.BuildOrder(), nil
}

// guardReverseDeps rejects a version change that would break a constraint
// some installed package declares on target.
func (r *Reactor) guardReverseDeps(target string, next domain.Version) error {
	rdeps, err := r.catalog.ReverseDeps(target)
	if err != nil {
		return err
	}

	targetName := domain.NewInternedString(target)
	for _, rdep := range rdeps {
		pkg, err := r.catalog.Get(rdep)
		if err != nil {
			return err
		}
		if pkg == nil {
			continue
		}
		constraints, err := pkg.ParseDependencies()
		if err != nil {
			return err
		}
		for _, c := range constraints {
			if c.Name != targetName || c.Matches(next) {
				continue
			}
			err := zerr.With(zerr.Wrap(domain.ErrConflictingReverseDep, "version change rejected"), "package", target)
			err = zerr.With(err, "required_by", rdep)
			err = zerr.With(err, "constraint", c.String())
			return zerr.With(err, "next_version", next.String())
		}
	}
	return nil
}

// visit adds recipe to the graph, depth-first through its dependencies.
// Grey nodes mark the in-progress DFS path; revisiting one is a cycle.
func (s *resolution) visit(recipe *domain.Recipe) error {
	name := strings.ToLower(recipe.Name)
	switch s.state[name] {
	case grey:
		return s.cycleError(name)
	case black:
		return nil
	}

	s.state[name] = grey
	s.path = append(s.path, name)

	constraints, err := recipe.ParseDependencies()
	if err != nil {
		return zerr.With(zerr.Wrap(err, "invalid recipe"), "package", name)
	}

	node := domain.Node{Recipe: recipe}
	for _, c := range constraints {
		needsBuild, depRecipe, err := s.resolveDep(c)
		if err != nil {
			return err
		}
		if !needsBuild {
			continue
		}
		if err := s.visit(depRecipe); err != nil {
			return err
		}
		node.Edges = append(node.Edges, c.Name)
	}

	if err := s.graph.AddNode(node); err != nil {
		return err
	}

	s.state[name] = black
	s.path = s.path[:len(s.path)-1]
	return nil
}

// resolveDep decides how a single constraint is met: by an installed
// package (pruned), by a recipe (recursed into), or not at all.
func (s *resolution) resolveDep(c domain.Constraint) (bool, *domain.Recipe, error) {
	depName := c.Name.String()

	installed, err := s.r.catalog.Get(depName)
	if err != nil {
		return false, nil, err
	}
	if installed != nil && c.Matches(installed.Version) {
		return false, nil, nil
	}

	depRecipe, err := s.r.store.Load(depName)
	if err != nil {
		if errors.Is(err, domain.ErrRecipeNotFound) {
			notFound := zerr.With(zerr.Wrap(domain.ErrUnresolvedDependency, "no recipe for dependency"), "package", depName)
			return false, nil, zerr.With(notFound, "constraint", c.String())
		}
		return false, nil, err
	}

	if !c.Matches(depRecipe.MustVersion()) {
		mismatch := zerr.With(zerr.Wrap(domain.ErrVersionMismatch, "recipe does not satisfy constraint"), "package", depName)
		mismatch = zerr.With(mismatch, "available", depRecipe.Version)
		return false, nil, zerr.With(mismatch, "constraint", c.String())
	}
	return true, depRecipe, nil
}

func (s *resolution) cycleError(name string) error {
	start := 0
	for i, n := range s.path {
		if n == name {
			start = i
			break
		}
	}
	cycle := append(append([]string{}, s.path[start:]...), name)
	return zerr.With(zerr.Wrap(domain.ErrCycle, "dependency resolution"), "cycle", strings.Join(cycle, " -> "))
}
