package ports

import "go.ravenpm.dev/raven/internal/core/domain"

// ConfigStore persists the user-facing configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_store.go -destination=mocks/mock_config_store.go -package=mocks
type ConfigStore interface {
	// Load reads the configuration, creating it with defaults when the
	// file does not exist.
	Load() (*domain.Config, error)

	// Save persists the configuration.
	Save(cfg *domain.Config) error
}
