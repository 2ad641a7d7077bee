package txn_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.ravenpm.dev/raven/internal/adapters/catalog"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/engine/txn"
)

type fixture struct {
	manager *txn.Manager
	catalog *catalog.DB
	live    string
	staged  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := catalog.Open(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	live := t.TempDir()
	layout := domain.Layout{
		Root:     t.TempDir(),
		LiveRoot: live,
	}

	return &fixture{
		manager: txn.New(db, layout),
		catalog: db,
		live:    live,
		staged:  t.TempDir(),
	}
}

// stage writes a staged file under the fixture's staging root.
func (f *fixture) stage(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.staged, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func installed(name, version string, deps []string, files ...string) *domain.InstalledPackage {
	return &domain.InstalledPackage{
		Name:         domain.NewInternedString(name),
		Version:      domain.MustParseVersion(version),
		InstalledAt:  time.Now().UTC(),
		Dependencies: deps,
		Files:        files,
	}
}

func TestManager_Commit(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/lib/libdummy.so", "lib")
	f.stage(t, "usr/include/dummy.h", "hdr")

	pkg := installed("libdummy", "1.0.0", nil, "/usr/lib/libdummy.so", "/usr/include/dummy.h")
	require.NoError(t, f.manager.Commit(pkg, f.staged))

	data, err := os.ReadFile(filepath.Join(f.live, "usr/lib/libdummy.so"))
	require.NoError(t, err)
	require.Equal(t, "lib", string(data))

	row, err := f.catalog.Get("libdummy")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, "1.0.0", row.Version.String())
	require.Len(t, row.Files, 2)
}

func TestManager_Commit_FileConflict(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/lib/libdummy.so", "lib")
	require.NoError(t, f.manager.Commit(
		installed("libdummy", "1.0.0", nil, "/usr/lib/libdummy.so"), f.staged))

	other := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(other, "usr/lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(other, "usr/lib/libdummy.so"), []byte("impostor"), 0o644))

	err := f.manager.Commit(installed("impostor", "1.0.0", nil, "/usr/lib/libdummy.so"), other)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrFileConflict))

	// The original owner's file is untouched and the catalog unchanged.
	data, err := os.ReadFile(filepath.Join(f.live, "usr/lib/libdummy.so"))
	require.NoError(t, err)
	require.Equal(t, "lib", string(data))

	n, err := f.catalog.Count()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestManager_Commit_MoveFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/bin/hello", "bin")
	// The second file is declared but never staged, so its move fails.
	pkg := installed("hello", "2.10.0", nil, "/usr/bin/hello", "/usr/share/hello/ghost")

	err := f.manager.Commit(pkg, f.staged)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrMove))

	// The moved file was put back and nothing reached the live root.
	_, statErr := os.Stat(filepath.Join(f.live, "usr/bin/hello"))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(f.staged, "usr/bin/hello"))
	require.NoError(t, statErr, "staged file must be restored on rollback")

	row, err := f.catalog.Get("hello")
	require.NoError(t, err)
	require.Nil(t, row, "catalog must be unchanged after rollback")
}

func TestManager_Commit_Upgrade_PrunesStaleFiles(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/lib/libdummy.so", "v1")
	f.stage(t, "usr/share/doc/libdummy", "doc v1")
	require.NoError(t, f.manager.Commit(
		installed("libdummy", "1.0.0", nil, "/usr/lib/libdummy.so", "/usr/share/doc/libdummy"),
		f.staged))

	// Version 2 replaces the shared object and drops the doc file.
	staged2 := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staged2, "usr/lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staged2, "usr/lib/libdummy_v2.so"), []byte("v2"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(staged2, "usr/lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staged2, "usr/lib/libdummy.so"), []byte("v2 core"), 0o644))

	require.NoError(t, f.manager.Commit(
		installed("libdummy", "2.0.0", nil, "/usr/lib/libdummy.so", "/usr/lib/libdummy_v2.so"),
		staged2))

	// Shared file overwritten, new file present, stale file pruned.
	data, err := os.ReadFile(filepath.Join(f.live, "usr/lib/libdummy.so"))
	require.NoError(t, err)
	require.Equal(t, "v2 core", string(data))

	_, err = os.Stat(filepath.Join(f.live, "usr/lib/libdummy_v2.so"))
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(f.live, "usr/share/doc/libdummy"))
	require.True(t, os.IsNotExist(statErr))

	row, err := f.catalog.Get("libdummy")
	require.NoError(t, err)
	require.Equal(t, "2.0.0", row.Version.String())
	require.Equal(t, []string{"/usr/lib/libdummy.so", "/usr/lib/libdummy_v2.so"}, row.Files)
}

func TestManager_Remove(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/lib/libdummy.so", "lib")
	require.NoError(t, f.manager.Commit(
		installed("libdummy", "1.0.0", nil, "/usr/lib/libdummy.so"), f.staged))

	require.NoError(t, f.manager.Remove("libdummy"))

	_, statErr := os.Stat(filepath.Join(f.live, "usr/lib/libdummy.so"))
	require.True(t, os.IsNotExist(statErr))

	// Emptied parent directories are pruned.
	_, statErr = os.Stat(filepath.Join(f.live, "usr/lib"))
	require.True(t, os.IsNotExist(statErr))

	row, err := f.catalog.Get("libdummy")
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestManager_Remove_GuardedByReverseDeps(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/lib/libdummy.so", "lib")
	require.NoError(t, f.manager.Commit(
		installed("libdummy", "1.0.0", nil, "/usr/lib/libdummy.so"), f.staged))

	staged2 := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staged2, "usr/bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(staged2, "usr/bin/hello"), []byte("bin"), 0o644))
	require.NoError(t, f.manager.Commit(
		installed("hello", "2.10.0", []string{"libdummy"}, "/usr/bin/hello"), staged2))

	err := f.manager.Remove("libdummy")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrInUse))
	require.Contains(t, err.Error(), "cannot remove")
	require.Contains(t, err.Error(), "In use by hello")

	// Nothing was removed.
	_, statErr := os.Stat(filepath.Join(f.live, "usr/lib/libdummy.so"))
	require.NoError(t, statErr)
	n, err := f.catalog.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestManager_Remove_NotInstalled(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Remove("ghost")
	require.True(t, errors.Is(err, domain.ErrNotInstalled))
}

func TestManager_Remove_ToleratesMissingFiles(t *testing.T) {
	f := newFixture(t)
	f.stage(t, "usr/lib/libdummy.so", "lib")
	require.NoError(t, f.manager.Commit(
		installed("libdummy", "1.0.0", nil, "/usr/lib/libdummy.so"), f.staged))

	// Simulate drift: the file disappeared behind the catalog's back.
	require.NoError(t, os.Remove(filepath.Join(f.live, "usr/lib/libdummy.so")))

	require.NoError(t, f.manager.Remove("libdummy"))
	row, err := f.catalog.Get("libdummy")
	require.NoError(t, err)
	require.Nil(t, row)
}
