// Package app implements the application layer: the planner composing
// resolution, sandbox builds and transactional commits into the user-facing
// flows.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.ravenpm.dev/raven/internal/engine/reactor"
	"go.ravenpm.dev/raven/internal/engine/txn"
	"go.trai.ch/zerr"
)

// downloadConcurrency bounds parallel source downloads. Builds stay serial.
const downloadConcurrency = 4

// Deps carries the collaborators of the App.
type Deps struct {
	Reactor   *reactor.Reactor
	Txn       *txn.Manager
	Store     ports.RecipeStore
	Catalog   ports.Catalog
	Builder   ports.Builder
	Fetcher   ports.Fetcher
	Locker    ports.Locker
	Syncer    ports.Syncer
	Config    ports.ConfigStore
	Logger    ports.Logger
	Telemetry ports.Telemetry
	Layout    domain.Layout
}

// App represents the main application logic.
type App struct {
	deps Deps
}

// New creates a new App instance.
func New(deps Deps) *App {
	return &App{deps: deps}
}

// Install resolves, builds and commits each named package in order. The
// first failure aborts the remaining names.
func (a *App) Install(ctx context.Context, names []string) error {
	release, err := a.deps.Locker.Acquire()
	if err != nil {
		return err
	}
	defer release() //nolint:errcheck // idempotent release

	for _, name := range names {
		if err := a.installOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) installOne(ctx context.Context, name string) error {
	plan, err := a.deps.Reactor.Plan(name)
	if err != nil {
		return err
	}

	archives, err := a.prefetch(ctx, plan)
	defer a.discardArchives(archives)
	if err != nil {
		return err
	}

	// Builds run strictly in topological order: a package is built only
	// after every dependency's commit has succeeded.
	for _, recipe := range plan {
		if err := a.buildAndCommit(ctx, recipe, archives[recipe.Name]); err != nil {
			return err
		}
	}
	return nil
}

// prefetch downloads every source archive of the plan with bounded
// concurrency before the serial build loop starts.
func (a *App) prefetch(ctx context.Context, plan []*domain.Recipe) (map[string]string, error) {
	archives := make(map[string]string, len(plan))
	for _, recipe := range plan {
		archives[recipe.Name] = filepath.Join(
			a.deps.Layout.ScratchDir,
			fmt.Sprintf("raven-src-%s-%s.tar.gz", recipe.Name, recipe.Version),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for _, recipe := range plan {
		g.Go(func() error {
			return a.deps.Fetcher.Fetch(gctx, recipe.SourceURL, recipe.SHA256Sum, archives[recipe.Name])
		})
	}
	if err := g.Wait(); err != nil {
		return archives, err
	}
	return archives, nil
}

func (a *App) discardArchives(archives map[string]string) {
	for _, path := range archives {
		_ = os.Remove(path)
	}
}

func (a *App) buildAndCommit(ctx context.Context, recipe *domain.Recipe, archive string) error {
	vctx, vertex := a.deps.Telemetry.Record(ctx, fmt.Sprintf("%s %s", recipe.Name, recipe.Version))

	err := a.buildAndCommitInner(vctx, recipe, archive)
	vertex.Complete(err)
	if err != nil {
		return err
	}

	a.deps.Logger.Info(fmt.Sprintf("Installed %s %s", recipe.Name, recipe.Version))
	return nil
}

func (a *App) buildAndCommitInner(ctx context.Context, recipe *domain.Recipe, archive string) error {
	res, err := a.deps.Builder.Build(ctx, recipe, archive)
	if err != nil {
		return err
	}

	pkg := &domain.InstalledPackage{
		Name:         domain.NewInternedString(recipe.Name),
		Version:      recipe.MustVersion(),
		InstalledAt:  time.Now().UTC(),
		Dependencies: recipe.Dependencies,
		Files:        res.Files,
	}

	if err := a.deps.Txn.Commit(pkg, res.StagedRoot); err != nil {
		_ = a.deps.Builder.Cleanup(res)
		return err
	}
	return a.deps.Builder.Cleanup(res)
}

// Remove uninstalls each named package in order, guarded by reverse
// dependencies.
func (a *App) Remove(_ context.Context, names []string) error {
	release, err := a.deps.Locker.Acquire()
	if err != nil {
		return err
	}
	defer release() //nolint:errcheck // idempotent release

	for _, name := range names {
		if err := a.deps.Txn.Remove(name); err != nil {
			return err
		}
		a.deps.Logger.Info("Removed " + name)
	}
	return nil
}

// Upgrade rebuilds every installed package whose recipe carries a strictly
// greater version. A failing package does not stop the others; the first
// failure is reported after the sweep, and packages committed before it
// stay committed.
func (a *App) Upgrade(ctx context.Context) error {
	release, err := a.deps.Locker.Acquire()
	if err != nil {
		return err
	}
	defer release() //nolint:errcheck // idempotent release

	installed, err := a.deps.Catalog.List()
	if err != nil {
		return err
	}

	var stale []*domain.Recipe
	for _, pkg := range installed {
		recipe, err := a.deps.Store.Load(pkg.Name.String())
		if err != nil {
			if errors.Is(err, domain.ErrRecipeNotFound) {
				continue
			}
			return err
		}
		if recipe.MustVersion().Compare(pkg.Version) > 0 {
			a.deps.Logger.Info(fmt.Sprintf("%s %s -> %s", pkg.Name.String(), pkg.Version, recipe.Version))
			stale = append(stale, recipe)
		}
	}

	if len(stale) == 0 {
		a.deps.Logger.Info("System is up to date.")
		return nil
	}

	var firstErr error
	for _, recipe := range stale {
		if err := a.installOne(ctx, recipe.Name); err != nil {
			a.deps.Logger.Error(zerr.With(zerr.Wrap(err, "upgrade failed"), "package", recipe.Name))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Update refreshes the local recipe store from the configured repository.
func (a *App) Update(ctx context.Context) error {
	release, err := a.deps.Locker.Acquire()
	if err != nil {
		return err
	}
	defer release() //nolint:errcheck // idempotent release

	cfg, err := a.deps.Config.Load()
	if err != nil {
		return err
	}

	a.deps.Logger.Info("Syncing recipes from: " + cfg.RepoURL)
	return a.deps.Syncer.Sync(ctx, cfg.RepoURL)
}

// Search returns recipes matching the query, best match first.
func (a *App) Search(query string) ([]*domain.Recipe, error) {
	return a.deps.Store.Search(query)
}

// ShowConfig returns the current configuration.
func (a *App) ShowConfig() (*domain.Config, error) {
	return a.deps.Config.Load()
}

// SetRepoURL persists a new recipe repository URL.
func (a *App) SetRepoURL(url string) error {
	cfg, err := a.deps.Config.Load()
	if err != nil {
		return err
	}
	cfg.RepoURL = url
	if err := a.deps.Config.Save(cfg); err != nil {
		return err
	}
	a.deps.Logger.Info("Repository URL updated to: " + url)
	return nil
}

// Close releases long-lived resources.
func (a *App) Close() error {
	var errs error
	if err := a.deps.Telemetry.Close(); err != nil {
		errs = errors.Join(errs, err)
	}
	if err := a.deps.Catalog.Close(); err != nil {
		errs = errors.Join(errs, err)
	}
	return errs
}
