// Package catalog provides the SQLite-backed store of installed packages.
package catalog

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

// DB wraps a SQLite connection holding the installed-package catalog.
// A single process-wide mutex serializes all access; only one transaction
// may be open at a time.
type DB struct {
	conn *sql.DB
	path string

	mu     sync.Mutex
	active bool
}

// Open opens (creating if necessary) the catalog database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create catalog directory"), "path", path)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open catalog"), "path", path)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, zerr.With(zerr.Wrap(err, "failed to apply pragma"), "pragma", pragma)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, zerr.Wrap(err, "failed to apply catalog schema")
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the installed package row for name, or nil when absent.
func (db *DB) Get(name string) (*domain.InstalledPackage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.get(db.conn, strings.ToLower(name))
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

func (db *DB) get(q querier, name string) (*domain.InstalledPackage, error) {
	var (
		version     string
		installedAt string
		depsJSON    string
	)
	err := q.QueryRow(
		`SELECT version, installed_at, deps_json FROM packages WHERE name = ?`, name,
	).Scan(&version, &installedAt, &depsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to query package"), "package", name)
	}

	pkg, err := scanPackage(name, version, installedAt, depsJSON)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(`SELECT path FROM files WHERE owner = ? ORDER BY path`, name)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to query owned files"), "package", name)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, zerr.Wrap(err, "failed to scan file row")
		}
		pkg.Files = append(pkg.Files, path)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to iterate file rows")
	}

	return pkg, nil
}

func scanPackage(name, version, installedAt, depsJSON string) (*domain.InstalledPackage, error) {
	ver, err := domain.ParseVersion(version)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "catalog row has invalid version"), "package", name)
	}

	ts, err := time.Parse(time.RFC3339, installedAt)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "catalog row has invalid timestamp"), "package", name)
	}

	var deps []string
	if err := json.Unmarshal([]byte(depsJSON), &deps); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "catalog row has invalid deps_json"), "package", name)
	}

	return &domain.InstalledPackage{
		Name:         domain.NewInternedString(name),
		Version:      ver,
		InstalledAt:  ts,
		Dependencies: deps,
	}, nil
}

// List returns every installed package, sorted by name.
func (db *DB) List() ([]domain.InstalledPackage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT name FROM packages ORDER BY name`)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list packages")
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, zerr.Wrap(err, "failed to scan package row")
		}
		names = append(names, name)
	}
	if err := rows.Close(); err != nil {
		return nil, zerr.Wrap(err, "failed to close package cursor")
	}

	out := make([]domain.InstalledPackage, 0, len(names))
	for _, name := range names {
		pkg, err := db.get(db.conn, name)
		if err != nil {
			return nil, err
		}
		if pkg != nil {
			out = append(out, *pkg)
		}
	}
	return out, nil
}

// Count returns the number of installed packages.
func (db *DB) Count() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM packages`).Scan(&n); err != nil {
		return 0, zerr.Wrap(err, "failed to count packages")
	}
	return n, nil
}

// ReverseDeps returns the names of installed packages declaring a
// dependency on name, sorted.
func (db *DB) ReverseDeps(name string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT name, deps_json FROM packages ORDER BY name`)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to list packages")
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	target := domain.NewInternedString(strings.ToLower(name))
	var out []string
	for rows.Next() {
		var owner, depsJSON string
		if err := rows.Scan(&owner, &depsJSON); err != nil {
			return nil, zerr.Wrap(err, "failed to scan package row")
		}

		var deps []string
		if err := json.Unmarshal([]byte(depsJSON), &deps); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "catalog row has invalid deps_json"), "package", owner)
		}
		pkg := domain.InstalledPackage{Dependencies: deps}
		if pkg.DependsOn(target) {
			out = append(out, owner)
		}
	}
	return out, rows.Err()
}

// Owner returns the package owning path, or "" when unowned.
func (db *DB) Owner(path string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var owner string
	err := db.conn.QueryRow(`SELECT owner FROM files WHERE path = ?`, path).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to query file owner"), "path", path)
	}
	return owner, nil
}

// Begin opens the catalog transaction. Only one may be open at a time.
func (db *DB) Begin() (ports.Txn, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.active {
		return nil, domain.ErrTxnActive
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to begin catalog transaction")
	}

	db.active = true
	return &txn{db: db, tx: tx}, nil
}

var _ ports.Catalog = (*DB)(nil)
