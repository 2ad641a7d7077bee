package reactor

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/adapters/catalog"
	"go.ravenpm.dev/raven/internal/adapters/recipes"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the reactor engine node.
const NodeID graft.ID = "engine.reactor"

func init() {
	graft.Register(graft.Node[*Reactor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{recipes.NodeID, catalog.NodeID},
		Run: func(ctx context.Context) (*Reactor, error) {
			store, err := graft.Dep[ports.RecipeStore](ctx)
			if err != nil {
				return nil, err
			}
			cat, err := graft.Dep[ports.Catalog](ctx)
			if err != nil {
				return nil, err
			}
			return New(store, cat), nil
		},
	})
}
