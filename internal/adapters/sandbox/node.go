package sandbox

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/adapters/shell"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
)

// NodeID is the unique identifier for the sandbox builder node.
const NodeID graft.ID = "adapter.builder"

func init() {
	graft.Register(graft.Node[ports.Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID},
		Run: func(ctx context.Context) (ports.Builder, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			return New(domain.DefaultLayout().ScratchDir, executor), nil
		},
	})
}
