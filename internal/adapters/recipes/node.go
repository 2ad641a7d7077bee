package recipes

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the recipe store adapter node.
const NodeID graft.ID = "adapter.recipe_store"

func init() {
	graft.Register(graft.Node[ports.RecipeStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.RecipeStore, error) {
			return NewStore(domain.DefaultLayout().RecipesDir()), nil
		},
	})
}
