package domain_test

import (
	"errors"
	"strings"
	"testing"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.trai.ch/zerr"
)

func node(name, version string, edges ...string) domain.Node {
	n := domain.Node{
		Recipe: &domain.Recipe{Name: name, Version: version},
	}
	for _, e := range edges {
		n.Edges = append(n.Edges, domain.NewInternedString(e))
	}
	return n
}

func TestGraph_BuildOrder(t *testing.T) {
	g := domain.NewGraph()
	// hello depends on libdummy; libdummy is a leaf.
	if err := g.AddNode(node("hello", "2.10.0", "libdummy")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(node("libdummy", "1.0.0")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	order := g.BuildOrder()
	if len(order) != 2 {
		t.Fatalf("expected 2 recipes in build order, got %d", len(order))
	}
	if order[0].Name != "libdummy" || order[1].Name != "hello" {
		t.Errorf("dependencies must precede dependents, got %s then %s", order[0].Name, order[1].Name)
	}
}

func TestGraph_Validate_Diamond(t *testing.T) {
	g := domain.NewGraph()
	// app -> libb, libc; libb -> libd; libc -> libd
	for _, n := range []domain.Node{
		node("app", "1.0.0", "libb", "libc"),
		node("libb", "1.0.0", "libd"),
		node("libc", "1.0.0", "libd"),
		node("libd", "1.0.0"),
	} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pos := make(map[string]int)
	for i, r := range g.BuildOrder() {
		pos[r.Name] = i
	}
	if pos["libd"] > pos["libb"] || pos["libd"] > pos["libc"] {
		t.Errorf("libd must come before libb and libc: %v", pos)
	}
	if pos["app"] != 3 {
		t.Errorf("app must come last: %v", pos)
	}
}

func TestGraph_Validate_Cycle(t *testing.T) {
	g := domain.NewGraph()
	if err := g.AddNode(node("a", "1.0.0", "b")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(node("b", "1.0.0", "a")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	err := g.Validate()
	if err == nil {
		t.Fatal("expected cycle error, got nil")
	}
	if !errors.Is(err, domain.ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}

	zErr, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	cycle, ok := zErr.Metadata()["cycle"].(string)
	if !ok || !strings.Contains(cycle, "->") {
		t.Errorf("expected cycle path metadata, got %v", zErr.Metadata()["cycle"])
	}
}

func TestGraph_Validate_MissingEdge(t *testing.T) {
	g := domain.NewGraph()
	if err := g.AddNode(node("a", "1.0.0", "ghost")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}

	err := g.Validate()
	if !errors.Is(err, domain.ErrUnresolvedDependency) {
		t.Fatalf("expected ErrUnresolvedDependency, got %v", err)
	}
}

func TestGraph_AddNode_ConflictingVersions(t *testing.T) {
	g := domain.NewGraph()
	if err := g.AddNode(node("a", "1.0.0")); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	// Same name and version is a no-op.
	if err := g.AddNode(node("a", "1.0.0")); err != nil {
		t.Fatalf("AddNode same version: %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("expected 1 node, got %d", g.Len())
	}
	// A second version of the same package is a resolution bug.
	if err := g.AddNode(node("a", "2.0.0")); !errors.Is(err, domain.ErrVersionMismatch) {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
}
