package app

import "go.ravenpm.dev/raven/internal/core/ports"

// Components bundles the resolved application graph for the CLI entry
// point.
type Components struct {
	App    *App
	Logger ports.Logger
}
