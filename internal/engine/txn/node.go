package txn

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/adapters/catalog"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the transaction manager node.
const NodeID graft.ID = "engine.txn"

func init() {
	graft.Register(graft.Node[*Manager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{catalog.NodeID},
		Run: func(ctx context.Context) (*Manager, error) {
			cat, err := graft.Dep[ports.Catalog](ctx)
			if err != nil {
				return nil, err
			}
			return New(cat, domain.DefaultLayout()), nil
		},
	})
}
