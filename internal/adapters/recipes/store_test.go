package recipes_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.ravenpm.dev/raven/internal/adapters/recipes"
	"go.ravenpm.dev/raven/internal/core/domain"
)

const testSum = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func writeRecipe(t *testing.T, dir, name, version string, deps ...string) {
	t.Helper()
	body := fmt.Sprintf("name = %q\nversion = %q\ndescription = \"test package\"\n", name, version)
	body += "dependencies = ["
	for i, d := range deps {
		if i > 0 {
			body += ", "
		}
		body += fmt.Sprintf("%q", d)
	}
	body += "]\n"
	body += fmt.Sprintf("source_url = \"https://example.org/%s.tar.gz\"\n", name)
	body += fmt.Sprintf("sha256_sum = %q\n", testSum)
	body += "build_commands = [\"make\"]\ninstall_commands = [\"make install\"]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".toml"), []byte(body), 0o644))
}

func TestStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "libdummy", "1.0.0")

	s := recipes.NewStore(dir)
	r, err := s.Load("libdummy")
	require.NoError(t, err)
	require.Equal(t, "libdummy", r.Name)
	require.Equal(t, "1.0.0", r.Version)
}

func TestStore_Load_CaseInsensitiveLookup(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "libdummy", "1.0.0")

	s := recipes.NewStore(dir)
	r, err := s.Load("LibDummy")
	require.NoError(t, err)
	require.Equal(t, "libdummy", r.Name)
}

func TestStore_Load_NotFound(t *testing.T) {
	s := recipes.NewStore(t.TempDir())
	_, err := s.Load("ghost")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRecipeNotFound))
}

func TestStore_Load_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("name = [nope"), 0o644))

	_, err := recipes.NewStore(dir).Load("broken")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRecipeParse))
}

func TestStore_Load_InvalidChecksum(t *testing.T) {
	dir := t.TempDir()
	body := "name = \"bad\"\nversion = \"1.0.0\"\nsource_url = \"https://example.org/x\"\nsha256_sum = \"abcd\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte(body), 0o644))

	_, err := recipes.NewStore(dir).Load("bad")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrRecipeParse))
}

func TestStore_Load_CacheInvalidation(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "libdummy", "1.0.0")

	s := recipes.NewStore(dir)
	r1, err := s.Load("libdummy")
	require.NoError(t, err)
	require.Equal(t, "1.0.0", r1.Version)

	// Unchanged file: same parsed recipe comes back.
	r2, err := s.Load("libdummy")
	require.NoError(t, err)
	require.Same(t, r1, r2)

	// Replacing the file invalidates the cached parse.
	writeRecipe(t, dir, "libdummy", "2.0.0")
	r3, err := s.Load("libdummy")
	require.NoError(t, err)
	require.Equal(t, "2.0.0", r3.Version)
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "hello", "2.10.0", "libdummy")
	writeRecipe(t, dir, "libdummy", "1.0.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a recipe"), 0o644))

	s := recipes.NewStore(dir)
	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "hello", all[0].Name)
	require.Equal(t, "libdummy", all[1].Name)
}

func TestStore_List_EmptyDir(t *testing.T) {
	s := recipes.NewStore(filepath.Join(t.TempDir(), "missing"))
	all, err := s.List()
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestStore_Search_Ranking(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"vim", "neovim", "vimer", "virtmanager", "emacs"} {
		writeRecipe(t, dir, name, "1.0.0")
	}

	s := recipes.NewStore(dir)
	got, err := s.Search("vim")
	require.NoError(t, err)

	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.Name)
	}

	// vim and vimer share the exact-prefix tier (ties by name), neovim is a
	// substring match, virtmanager only matches as a subsequence.
	require.Equal(t, []string{"vim", "vimer", "neovim", "virtmanager"}, names)
}

func TestStore_Search_NoMatch(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "emacs", "1.0.0")

	got, err := recipes.NewStore(dir).Search("zzz")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestStore_Search_CaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeRecipe(t, dir, "libdummy", "1.0.0")

	got, err := recipes.NewStore(dir).Search("LibDum")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "libdummy", got[0].Name)
}
