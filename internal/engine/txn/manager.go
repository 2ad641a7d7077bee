// Package txn implements the transaction manager: the atomic unit spanning
// staged-file moves into the live root and catalog row writes.
package txn

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Manager moves staged build artifacts into the live filesystem and records
// ownership in the catalog, all-or-nothing.
type Manager struct {
	catalog ports.Catalog
	layout  domain.Layout
}

// New creates a Manager committing into the layout's live root.
func New(catalog ports.Catalog, layout domain.Layout) *Manager {
	return &Manager{catalog: catalog, layout: layout}
}

// Commit installs the staged tree for pkg. When a row for the package
// already exists (upgrade or rebuild) it is replaced in the same
// transaction and files owned by the old version but absent from the new
// file list are pruned. On any failure every file moved so far is moved
// back and the catalog transaction is rolled back.
func (m *Manager) Commit(pkg *domain.InstalledPackage, stagedRoot string) error {
	name := strings.ToLower(pkg.Name.String())

	old, err := m.catalog.Get(name)
	if err != nil {
		return err
	}

	tx, err := m.catalog.Begin()
	if err != nil {
		return err
	}

	if old != nil {
		if err := tx.Remove(name); err != nil {
			return err
		}
	}
	if err := tx.Insert(pkg); err != nil {
		// Insert rolled the transaction back already.
		return err
	}

	moved, err := m.moveAll(pkg.Files, stagedRoot)
	if err != nil {
		m.reverse(moved, stagedRoot)
		_ = tx.Rollback()
		return err
	}

	if old != nil {
		if err := m.pruneStale(old.Files, pkg.Files); err != nil {
			m.reverse(moved, stagedRoot)
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		m.reverse(moved, stagedRoot)
		return err
	}
	return nil
}

// Remove uninstalls name: reverse-dependency guard, catalog row removal and
// owned-file unlinking in one transaction.
func (m *Manager) Remove(name string) error {
	name = strings.ToLower(name)

	rdeps, err := m.catalog.ReverseDeps(name)
	if err != nil {
		return err
	}
	if len(rdeps) > 0 {
		msg := fmt.Sprintf("cannot remove %q: In use by %s", name, strings.Join(rdeps, ", "))
		return zerr.With(zerr.Wrap(domain.ErrInUse, msg), "dependents", strings.Join(rdeps, ", "))
	}

	pkg, err := m.catalog.Get(name)
	if err != nil {
		return err
	}
	if pkg == nil {
		return zerr.With(zerr.Wrap(domain.ErrNotInstalled, "no catalog row"), "package", name)
	}

	tx, err := m.catalog.Begin()
	if err != nil {
		return err
	}
	if err := tx.Remove(name); err != nil {
		return err
	}

	// Longest paths first so directories empty out naturally.
	files := append([]string{}, pkg.Files...)
	sort.Slice(files, func(i, j int) bool { return len(files[i]) > len(files[j]) })

	for _, f := range files {
		live := m.livePath(f)
		if err := os.Remove(live); err != nil && !errors.Is(err, fs.ErrNotExist) {
			_ = tx.Rollback()
			return zerr.With(zerr.Wrap(domain.ErrRemoveFile, err.Error()), "path", f)
		}
		m.pruneEmptyParents(live)
	}

	return tx.Commit()
}

type move struct {
	rel string
}

// moveAll renames every staged file into the live root in sorted order,
// creating parent directories as needed. It returns the list of completed
// moves for reversal.
func (m *Manager) moveAll(files []string, stagedRoot string) ([]move, error) {
	ordered := append([]string{}, files...)
	sort.Strings(ordered)

	var moved []move
	for _, f := range ordered {
		live := m.livePath(f)
		if err := os.MkdirAll(filepath.Dir(live), domain.DirPerm); err != nil {
			return moved, zerr.With(zerr.Wrap(domain.ErrMove, err.Error()), "path", f)
		}
		if err := moveFile(filepath.Join(stagedRoot, f), live); err != nil {
			return moved, zerr.With(zerr.Wrap(domain.ErrMove, err.Error()), "path", f)
		}
		moved = append(moved, move{rel: f})
	}
	return moved, nil
}

// reverse undoes completed moves, best effort, most recent first.
func (m *Manager) reverse(moved []move, stagedRoot string) {
	for i := len(moved) - 1; i >= 0; i-- {
		f := moved[i].rel
		_ = moveFile(m.livePath(f), filepath.Join(stagedRoot, f))
	}
}

// pruneStale deletes files owned by the previous version that the new file
// list no longer contains. Missing files are tolerated drift.
func (m *Manager) pruneStale(oldFiles, newFiles []string) error {
	keep := make(map[string]bool, len(newFiles))
	for _, f := range newFiles {
		keep[f] = true
	}

	stale := make([]string, 0, len(oldFiles))
	for _, f := range oldFiles {
		if !keep[f] {
			stale = append(stale, f)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return len(stale[i]) > len(stale[j]) })

	for _, f := range stale {
		live := m.livePath(f)
		if err := os.Remove(live); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(zerr.Wrap(domain.ErrRemoveFile, err.Error()), "path", f)
		}
		m.pruneEmptyParents(live)
	}
	return nil
}

// pruneEmptyParents removes now-empty parent directories up to the live
// root. Stops at the first non-empty directory.
func (m *Manager) pruneEmptyParents(live string) {
	root := filepath.Clean(m.layout.LiveRoot)
	for dir := filepath.Dir(live); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}

func (m *Manager) livePath(f string) string {
	return filepath.Join(m.layout.LiveRoot, f)
}

// moveFile renames src to dst, falling back to copy-and-delete across
// filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil || !isCrossDevice(err) {
		return err
	}

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dst)
		if err := os.Symlink(target, dst); err != nil {
			return err
		}
		return os.Remove(src)
	}

	in, err := os.Open(src) //nolint:gosec // path derives from the staged file list
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only file

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // destination under live root
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return false
}
