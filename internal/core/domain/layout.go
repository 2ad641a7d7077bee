package domain

import "path/filepath"

const (
	// RavenRootDir is the default state directory.
	RavenRootDir = "/var/lib/raven"

	// RecipesDirName is the name of the local recipe store directory.
	RecipesDirName = "recipes"

	// CatalogFileName is the name of the SQLite catalog database.
	CatalogFileName = "metadata.db"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "config.toml"

	// LockPath is the well-known path of the exclusive operation lock.
	LockPath = "/var/lock/raven.lock"

	// ScratchPrefix is the prefix of transient sandbox scratch roots.
	ScratchPrefix = "raven-build-"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// Layout carries every path the system touches. It is constructed once at
// process start and threaded through the components; no component reads
// ambient global paths.
type Layout struct {
	// Root is the state directory, RavenRootDir in production.
	Root string
	// LiveRoot is the filesystem root that commits write into, "/" in
	// production. Tests point it at a scratch directory.
	LiveRoot string
	// Lock is the exclusive operation lock file path.
	Lock string
	// ScratchDir is the parent of transient build roots, "/tmp" in
	// production.
	ScratchDir string
}

// DefaultLayout returns the production layout.
func DefaultLayout() Layout {
	return Layout{
		Root:       RavenRootDir,
		LiveRoot:   "/",
		Lock:       LockPath,
		ScratchDir: "/tmp",
	}
}

// RecipesDir returns the local recipe store directory.
func (l Layout) RecipesDir() string {
	return filepath.Join(l.Root, RecipesDirName)
}

// CatalogPath returns the SQLite catalog path.
func (l Layout) CatalogPath() string {
	return filepath.Join(l.Root, CatalogFileName)
}

// ConfigPath returns the configuration file path.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.Root, ConfigFileName)
}
