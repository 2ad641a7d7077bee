package git

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/adapters/logger"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the recipe syncer node.
const NodeID graft.ID = "adapter.syncer"

func init() {
	graft.Register(graft.Node[ports.Syncer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Syncer, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewSyncer(domain.DefaultLayout().RecipesDir(), log), nil
		},
	})
}
