package sandbox_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.ravenpm.dev/raven/internal/adapters/sandbox"
	"go.ravenpm.dev/raven/internal/adapters/shell"
	"go.ravenpm.dev/raven/internal/core/domain"
)

// writeArchive builds a tar.gz with the given name->content entries.
func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	// Deterministic entry order.
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		content := entries[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func testRecipe(build, install []string) *domain.Recipe {
	return &domain.Recipe{
		Name:            "libdummy",
		Version:         "1.0.0",
		SourceURL:       "https://example.org/libdummy-1.0.0.tar.gz",
		SHA256Sum:       strings.Repeat("a", 64),
		BuildCommands:   build,
		InstallCommands: install,
	}
}

func newSandbox(t *testing.T) (*sandbox.Sandbox, string) {
	t.Helper()
	scratchDir := t.TempDir()
	s := sandbox.New(scratchDir, shell.NewExecutor(), sandbox.WithoutIsolation())
	return s, scratchDir
}

func TestSandbox_Build_CapturesStagedFiles(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{
		"libdummy-1.0.0/Makefile": "all:\n",
	})

	recipe := testRecipe(
		[]string{"test -f Makefile"},
		[]string{
			"mkdir -p $DESTDIR/usr/lib",
			"echo lib > $DESTDIR/usr/lib/libdummy.so",
			"mkdir -p $DESTDIR/usr/include",
			"echo hdr > $DESTDIR/usr/include/dummy.h",
		},
	)

	res, err := s.Build(context.Background(), recipe, archive)
	require.NoError(t, err)
	defer s.Cleanup(res) //nolint:errcheck // test cleanup

	require.Equal(t, []string{"/usr/include/dummy.h", "/usr/lib/libdummy.so"}, res.Files)

	data, err := os.ReadFile(filepath.Join(res.StagedRoot, "usr/lib/libdummy.so"))
	require.NoError(t, err)
	require.Equal(t, "lib\n", string(data))

	// The build log records command output.
	_, err = os.Stat(filepath.Join(res.Scratch, "build.log"))
	require.NoError(t, err)
}

func TestSandbox_Build_FailureRemovesScratch(t *testing.T) {
	s, scratchDir := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{"libdummy-1.0.0/README": "hi\n"})

	recipe := testRecipe([]string{"exit 7"}, nil)

	_, err := s.Build(context.Background(), recipe, archive)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrBuild))

	entries, err := os.ReadDir(scratchDir)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch root must be removed on failure")
}

func TestSandbox_Build_StopsAtFirstFailure(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{"libdummy-1.0.0/README": "hi\n"})

	marker := filepath.Join(t.TempDir(), "marker")
	recipe := testRecipe(
		[]string{"false", "touch " + marker},
		nil,
	)

	_, err := s.Build(context.Background(), recipe, archive)
	require.Error(t, err)

	_, statErr := os.Stat(marker)
	require.True(t, os.IsNotExist(statErr), "commands after a failure must not run")
}

func TestSandbox_Build_SourceLandsInWorkingDir(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{
		"libdummy-1.0.0/configure":  "#!/bin/sh\n",
		"libdummy-1.0.0/src/main.c": "int main(void) { return 0; }\n",
	})

	// The archive's single top-level directory is stripped, so relative
	// paths resolve against the source root.
	recipe := testRecipe([]string{"test -f configure && test -f src/main.c"}, nil)

	res, err := s.Build(context.Background(), recipe, archive)
	require.NoError(t, err)
	defer s.Cleanup(res) //nolint:errcheck // test cleanup
}

func TestSandbox_Build_FlatArchive(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{
		"configure": "#!/bin/sh\n",
		"Makefile":  "all:\n",
	})

	recipe := testRecipe([]string{"test -f configure && test -f Makefile"}, nil)

	res, err := s.Build(context.Background(), recipe, archive)
	require.NoError(t, err)
	defer s.Cleanup(res) //nolint:errcheck // test cleanup
}

func TestSandbox_Build_RejectsTraversal(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{
		"../../escape": "nope\n",
	})

	_, err := s.Build(context.Background(), testRecipe(nil, nil), archive)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrSandboxSetup))
}

func TestSandbox_Build_EmptyStagingOK(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{"libdummy-1.0.0/README": "hi\n"})

	res, err := s.Build(context.Background(), testRecipe(nil, nil), archive)
	require.NoError(t, err)
	defer s.Cleanup(res) //nolint:errcheck // test cleanup
	require.Empty(t, res.Files)
}

func TestSandbox_Cleanup(t *testing.T) {
	s, _ := newSandbox(t)

	archive := filepath.Join(t.TempDir(), "src.tar.gz")
	writeArchive(t, archive, map[string]string{"libdummy-1.0.0/README": "hi\n"})

	res, err := s.Build(context.Background(), testRecipe(nil, nil), archive)
	require.NoError(t, err)

	require.NoError(t, s.Cleanup(res))
	_, statErr := os.Stat(res.Scratch)
	require.True(t, os.IsNotExist(statErr))
}
