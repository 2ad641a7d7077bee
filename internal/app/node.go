package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/internal/adapters/catalog"   //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/config"    //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/fetch"     //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/git"       //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/lock"      //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/logger"    //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/recipes"   //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/sandbox"   //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/adapters/telemetry/progrock" //nolint:depguard // wired in app layer
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.ravenpm.dev/raven/internal/engine/reactor"
	"go.ravenpm.dev/raven/internal/engine/txn"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components
	// Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			reactor.NodeID,
			txn.NodeID,
			recipes.NodeID,
			catalog.NodeID,
			sandbox.NodeID,
			fetch.NodeID,
			lock.NodeID,
			git.NodeID,
			config.NodeID,
			logger.NodeID,
			progrock.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	deps := Deps{Layout: domain.DefaultLayout()}

	var err error
	if deps.Reactor, err = graft.Dep[*reactor.Reactor](ctx); err != nil {
		return nil, err
	}
	if deps.Txn, err = graft.Dep[*txn.Manager](ctx); err != nil {
		return nil, err
	}
	if deps.Store, err = graft.Dep[ports.RecipeStore](ctx); err != nil {
		return nil, err
	}
	if deps.Catalog, err = graft.Dep[ports.Catalog](ctx); err != nil {
		return nil, err
	}
	if deps.Builder, err = graft.Dep[ports.Builder](ctx); err != nil {
		return nil, err
	}
	if deps.Fetcher, err = graft.Dep[ports.Fetcher](ctx); err != nil {
		return nil, err
	}
	if deps.Locker, err = graft.Dep[ports.Locker](ctx); err != nil {
		return nil, err
	}
	if deps.Syncer, err = graft.Dep[ports.Syncer](ctx); err != nil {
		return nil, err
	}
	if deps.Config, err = graft.Dep[ports.ConfigStore](ctx); err != nil {
		return nil, err
	}
	if deps.Logger, err = graft.Dep[ports.Logger](ctx); err != nil {
		return nil, err
	}
	if deps.Telemetry, err = graft.Dep[ports.Telemetry](ctx); err != nil {
		return nil, err
	}

	return New(deps), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	a, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    a,
		Logger: log,
	}, nil
}
