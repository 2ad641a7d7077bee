package ports

import "context"

// Syncer refreshes the local recipe store from the remote repository.
//
//go:generate go run go.uber.org/mock/mockgen -source=syncer.go -destination=mocks/mock_syncer.go -package=mocks
type Syncer interface {
	// Sync clones repoURL into the recipes directory when it is not a git
	// checkout yet, and pulls otherwise.
	Sync(ctx context.Context, repoURL string) error
}
