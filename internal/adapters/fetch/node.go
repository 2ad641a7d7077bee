package fetch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the fetcher adapter node.
const NodeID graft.ID = "adapter.fetcher"

func init() {
	graft.Register(graft.Node[ports.Fetcher]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Fetcher, error) {
			return New(), nil
		},
	})
}
