package ports

import "go.ravenpm.dev/raven/internal/core/domain"

// Catalog is the persistent store of installed packages and the files they
// own. All operations are serialized by the implementation; mutations go
// through a Txn so that file moves and catalog rows commit as one unit.
//
//go:generate go run go.uber.org/mock/mockgen -source=catalog.go -destination=mocks/mock_catalog.go -package=mocks
type Catalog interface {
	// Get returns the installed package row for name, or nil when the
	// package is not installed.
	Get(name string) (*domain.InstalledPackage, error)

	// List returns every installed package.
	List() ([]domain.InstalledPackage, error)

	// Count returns the number of installed packages.
	Count() (int, error)

	// ReverseDeps returns the names of installed packages whose declared
	// dependencies include name.
	ReverseDeps(name string) ([]string, error)

	// Owner returns the name of the package owning path, or "" when the
	// path is unowned.
	Owner(path string) (string, error)

	// Begin opens a transaction. A second Begin before Commit or Rollback
	// fails with domain.ErrTxnActive.
	Begin() (Txn, error)

	// Close releases the underlying store.
	Close() error
}

// Txn is a single open catalog transaction.
type Txn interface {
	// Insert records a package and its owned files. A path already owned
	// by another package fails with domain.ErrFileConflict and rolls the
	// transaction back.
	Insert(pkg *domain.InstalledPackage) error

	// Remove deletes the package row and its file rows.
	Remove(name string) error

	// Commit makes the transaction's effects durable.
	Commit() error

	// Rollback discards the transaction.
	Rollback() error
}
