package catalog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// txn is a single open catalog transaction.
type txn struct {
	db *DB
	tx *sql.Tx

	mu   sync.Mutex
	done bool
}

// Insert records a package and its owned files. A path owned by a
// different package fails with domain.ErrFileConflict and rolls the
// transaction back.
func (t *txn) Insert(pkg *domain.InstalledPackage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.ErrNoTxn
	}

	name := strings.ToLower(pkg.Name.String())

	for _, path := range pkg.Files {
		var owner string
		err := t.tx.QueryRow(`SELECT owner FROM files WHERE path = ?`, path).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return t.fail(zerr.With(zerr.Wrap(err, "failed to check file ownership"), "path", path))
		}
		if owner != name {
			conflict := zerr.Wrap(domain.ErrFileConflict, "file is owned by another package")
			return t.fail(zerr.With(zerr.With(conflict, "path", path), "owner", owner))
		}
	}

	depsJSON, err := json.Marshal(append([]string{}, pkg.Dependencies...))
	if err != nil {
		return t.fail(zerr.Wrap(err, "failed to encode dependencies"))
	}

	installedAt := pkg.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now().UTC()
	}

	if _, err := t.tx.Exec(
		`INSERT INTO packages (name, version, installed_at, deps_json) VALUES (?, ?, ?, ?)`,
		name, pkg.Version.String(), installedAt.Format(time.RFC3339), string(depsJSON),
	); err != nil {
		return t.fail(zerr.With(zerr.Wrap(err, "failed to insert package row"), "package", name))
	}

	for _, path := range pkg.Files {
		if _, err := t.tx.Exec(
			`INSERT OR REPLACE INTO files (path, owner) VALUES (?, ?)`, path, name,
		); err != nil {
			return t.fail(zerr.With(zerr.Wrap(err, "failed to insert file row"), "path", path))
		}
	}

	return nil
}

// Remove deletes the package row and its file rows.
func (t *txn) Remove(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.ErrNoTxn
	}

	name = strings.ToLower(name)
	if _, err := t.tx.Exec(`DELETE FROM files WHERE owner = ?`, name); err != nil {
		return t.fail(zerr.With(zerr.Wrap(err, "failed to delete file rows"), "package", name))
	}
	if _, err := t.tx.Exec(`DELETE FROM packages WHERE name = ?`, name); err != nil {
		return t.fail(zerr.With(zerr.Wrap(err, "failed to delete package row"), "package", name))
	}
	return nil
}

// Commit makes the transaction durable.
func (t *txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.ErrNoTxn
	}
	t.finish()
	if err := t.tx.Commit(); err != nil {
		return zerr.Wrap(domain.ErrCommit, err.Error())
	}
	return nil
}

// Rollback discards the transaction.
func (t *txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return domain.ErrNoTxn
	}
	t.finish()
	if err := t.tx.Rollback(); err != nil {
		return zerr.Wrap(err, "failed to roll back catalog transaction")
	}
	return nil
}

// fail rolls the transaction back and returns cause. Insert failures are
// terminal for the transaction.
func (t *txn) fail(cause error) error {
	t.finish()
	_ = t.tx.Rollback()
	return cause
}

// finish releases the single-transaction slot. Caller holds t.mu.
func (t *txn) finish() {
	t.done = true
	t.db.mu.Lock()
	t.db.active = false
	t.db.mu.Unlock()
}

var _ ports.Txn = (*txn)(nil)
