package ports

import (
	"context"

	"go.ravenpm.dev/raven/internal/core/domain"
)

// BuildResult describes a finished sandbox build: the scratch root, the
// staging prefix holding the installed tree, and the absolute destination
// paths of every staged file.
type BuildResult struct {
	Scratch    string
	StagedRoot string
	Files      []string
}

// Builder runs a recipe's build and install phases inside an isolated
// filesystem sandbox and captures the staged artifact set.
//
//go:generate go run go.uber.org/mock/mockgen -source=builder.go -destination=mocks/mock_builder.go -package=mocks
type Builder interface {
	// Build extracts sourceArchive into a fresh sandbox, runs the recipe's
	// build_commands then install_commands, and captures everything
	// installed under the staging prefix. On any failure the scratch root
	// is removed before returning.
	Build(ctx context.Context, recipe *domain.Recipe, sourceArchive string) (*BuildResult, error)

	// Cleanup removes the scratch root of a successful build after its
	// artifacts have been committed.
	Cleanup(res *BuildResult) error
}
