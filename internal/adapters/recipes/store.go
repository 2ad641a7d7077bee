// Package recipes implements the local TOML recipe store.
package recipes

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.RecipeStore over a directory of <name>.toml files.
// Parsed recipes are cached keyed by the xxhash of the file contents, so an
// unchanged file is parsed once per process.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	sum    uint64
	recipe *domain.Recipe
}

// NewStore creates a Store over the given recipes directory.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]cacheEntry),
	}
}

// Load reads and validates the recipe for name.
func (s *Store) Load(name string) (*domain.Recipe, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	path := filepath.Join(s.dir, name+".toml")

	data, err := os.ReadFile(path) //nolint:gosec // path is rooted in the recipes directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.With(zerr.Wrap(domain.ErrRecipeNotFound, "no recipe file"), "package", name)
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read recipe"), "package", name)
	}

	sum := xxhash.Sum64(data)

	s.mu.Lock()
	if entry, ok := s.cache[name]; ok && entry.sum == sum {
		s.mu.Unlock()
		return entry.recipe, nil
	}
	s.mu.Unlock()

	var recipe domain.Recipe
	if err := toml.Unmarshal(data, &recipe); err != nil {
		return nil, zerr.With(zerr.With(zerr.Wrap(domain.ErrRecipeParse, err.Error()), "package", name), "path", path)
	}
	recipe.Name = strings.ToLower(strings.TrimSpace(recipe.Name))
	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = cacheEntry{sum: sum, recipe: &recipe}
	s.mu.Unlock()

	return &recipe, nil
}

// List enumerates every recipe in the store.
func (s *Store) List() ([]*domain.Recipe, error) {
	names, err := s.names()
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Recipe, 0, len(names))
	for _, name := range names {
		recipe, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		out = append(out, recipe)
	}
	return out, nil
}

// names returns the sorted recipe names present in the directory.
func (s *Store) names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read recipes directory"), "dir", s.dir)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".toml"))
	}
	sort.Strings(names)
	return names, nil
}

var _ ports.RecipeStore = (*Store)(nil)
