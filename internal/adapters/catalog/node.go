package catalog

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the catalog adapter node.
const NodeID graft.ID = "adapter.catalog"

func init() {
	graft.Register(graft.Node[ports.Catalog]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Catalog, error) {
			return Open(domain.DefaultLayout().CatalogPath())
		},
	})
}
