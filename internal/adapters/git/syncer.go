// Package git refreshes the local recipe store from its remote repository
// by shelling out to the git CLI.
package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Syncer implements ports.Syncer over the git command line.
type Syncer struct {
	dir    string
	logger ports.Logger
}

// NewSyncer creates a Syncer managing the given recipes directory.
func NewSyncer(dir string, logger ports.Logger) *Syncer {
	return &Syncer{dir: dir, logger: logger}
}

// Sync clones repoURL when the recipes directory is not a git checkout yet
// (it has no .git) and pulls otherwise. A failed pull is downgraded to a warning so an offline
// machine can keep installing from its local store.
func (s *Syncer) Sync(ctx context.Context, repoURL string) error {
	if _, err := os.Stat(filepath.Join(s.dir, ".git")); err != nil {
		if err := os.MkdirAll(filepath.Dir(s.dir), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create recipes parent directory"), "dir", s.dir)
		}
		cmd := exec.CommandContext(ctx, "git", "clone", "--depth=1", repoURL, s.dir)
		if out, err := cmd.CombinedOutput(); err != nil {
			wrapped := zerr.With(zerr.Wrap(err, "failed to clone recipe repository"), "url", repoURL)
			return zerr.With(wrapped, "output", string(out))
		}
		return nil
	}

	cmd := exec.CommandContext(ctx, "git", "-C", s.dir, "pull", "--ff-only")
	if out, err := cmd.CombinedOutput(); err != nil {
		s.logger.Warn("failed to update recipes (offline mode?): " + string(out))
	}
	return nil
}

var _ ports.Syncer = (*Syncer)(nil)
