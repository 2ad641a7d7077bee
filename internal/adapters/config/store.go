// Package config persists the user configuration as a TOML file.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.ConfigStore on a single TOML file.
type Store struct {
	path string
}

// NewStore creates a Store reading and writing the file at path.
func NewStore(path string) *Store {
	return &Store{path: filepath.Clean(path)}
}

// Load reads the configuration. A missing file is created with defaults,
// mirroring first-run behavior.
func (s *Store) Load() (*domain.Config, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // path comes from the layout
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := domain.DefaultConfig()
			if err := s.Save(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", s.path)
	}

	var cfg domain.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", s.path)
	}
	if cfg.RepoURL == "" {
		cfg.RepoURL = domain.DefaultRepoURL
	}
	return &cfg, nil
}

// Save persists the configuration.
func (s *Store) Save(cfg *domain.Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return zerr.Wrap(err, "failed to encode config")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create config directory"), "path", s.path)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write config file"), "path", s.path)
	}
	return nil
}

var _ ports.ConfigStore = (*Store)(nil)
