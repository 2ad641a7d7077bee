// Package ports defines the core interfaces for the application.
package ports

import "go.ravenpm.dev/raven/internal/core/domain"

// RecipeStore loads declarative package recipes from the local store.
//
//go:generate go run go.uber.org/mock/mockgen -source=recipe_store.go -destination=mocks/mock_recipe_store.go -package=mocks
type RecipeStore interface {
	// Load reads and validates the recipe for name. Returns
	// domain.ErrRecipeNotFound when no recipe file exists and
	// domain.ErrRecipeParse when the file is malformed.
	Load(name string) (*domain.Recipe, error)

	// List enumerates all recipes in the store.
	List() ([]*domain.Recipe, error)

	// Search returns recipes whose names match the query, ranked
	// exact-prefix first, then substring, then subsequence, ties by name.
	Search(query string) ([]*domain.Recipe, error)
}
