package lock

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the locker adapter node.
const NodeID graft.ID = "adapter.locker"

func init() {
	graft.Register(graft.Node[ports.Locker]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Locker, error) {
			return New(domain.DefaultLayout().Lock), nil
		},
	})
}
