// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.ravenpm.dev/raven/internal/adapters/catalog"
	_ "go.ravenpm.dev/raven/internal/adapters/config"
	_ "go.ravenpm.dev/raven/internal/adapters/fetch"
	_ "go.ravenpm.dev/raven/internal/adapters/git"
	_ "go.ravenpm.dev/raven/internal/adapters/lock"
	_ "go.ravenpm.dev/raven/internal/adapters/logger"
	_ "go.ravenpm.dev/raven/internal/adapters/recipes"
	_ "go.ravenpm.dev/raven/internal/adapters/sandbox"
	_ "go.ravenpm.dev/raven/internal/adapters/shell"
	_ "go.ravenpm.dev/raven/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "go.ravenpm.dev/raven/internal/app"
	_ "go.ravenpm.dev/raven/internal/engine/reactor"
	_ "go.ravenpm.dev/raven/internal/engine/txn"
)
