package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the config adapter node.
const NodeID graft.ID = "adapter.config"

func init() {
	graft.Register(graft.Node[ports.ConfigStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ConfigStore, error) {
			return NewStore(domain.DefaultLayout().ConfigPath()), nil
		},
	})
}
