package sandbox

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.trai.ch/zerr"
)

// extract unpacks a tar or tar.gz source archive into dest. Archives with a
// single top-level directory (the common `name-version/` convention) have
// that component stripped so sources land directly in dest.
func extract(archive, dest string) error {
	strip, err := singleTopLevel(archive)
	if err != nil {
		return err
	}

	r, closeAll, err := openArchive(archive)
	if err != nil {
		return err
	}
	defer closeAll()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return zerr.With(zerr.Wrap(domain.ErrSandboxSetup, "reading source archive: "+err.Error()), "archive", archive)
		}

		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./")
		if strip != "" {
			name = strings.TrimPrefix(name, strip)
			name = strings.TrimPrefix(name, "/")
		}
		if name == "" {
			continue
		}

		target, err := securePath(dest, name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700); err != nil { //nolint:gosec // archive modes
				return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)); err != nil { //nolint:gosec // archive modes
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !errors.Is(err, os.ErrExist) {
				return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
			}
		default:
			// Hard links, devices and the rest have no business in a
			// source archive; skip them.
		}
	}
}

// singleTopLevel returns the shared top-level directory of the archive, or
// "" when entries do not share one.
func singleTopLevel(archive string) (string, error) {
	r, closeAll, err := openArchive(archive)
	if err != nil {
		return "", err
	}
	defer closeAll()

	top := ""
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return top, nil
		}
		if err != nil {
			return "", zerr.With(zerr.Wrap(domain.ErrSandboxSetup, "reading source archive: "+err.Error()), "archive", archive)
		}

		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./")
		first, _, nested := strings.Cut(strings.TrimSuffix(name, "/"), "/")
		if first == "" {
			continue
		}
		if !nested && hdr.Typeflag != tar.TypeDir {
			// A top-level file means there is no wrapping directory.
			return "", nil
		}
		switch top {
		case "":
			top = first
		case first:
		default:
			return "", nil
		}
	}
}

// openArchive opens the archive, transparently decompressing gzip.
func openArchive(archive string) (io.Reader, func(), error) {
	f, err := os.Open(archive) //nolint:gosec // path is produced by the fetcher
	if err != nil {
		return nil, nil, zerr.With(zerr.Wrap(domain.ErrSandboxSetup, err.Error()), "archive", archive)
	}

	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		_ = f.Close()
		return nil, nil, zerr.With(zerr.Wrap(domain.ErrSandboxSetup, "source archive is empty or truncated"), "archive", archive)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, nil, zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}

	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, zerr.With(zerr.Wrap(domain.ErrSandboxSetup, err.Error()), "archive", archive)
		}
		return gz, func() { _ = gz.Close(); _ = f.Close() }, nil
	}

	return f, func() { _ = f.Close() }, nil
}

// securePath joins name under dest, rejecting traversal outside of it.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", zerr.With(zerr.Wrap(domain.ErrSandboxSetup, "archive entry escapes extraction root"), "entry", name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o600) //nolint:gosec // under scratch root
	if err != nil {
		return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}
	if _, err := io.Copy(f, r); err != nil { //nolint:gosec // bounded by archive size
		_ = f.Close()
		return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}
	return f.Close()
}
