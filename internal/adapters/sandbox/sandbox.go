// Package sandbox builds packages inside an isolated filesystem
// environment and captures the staged artifact set.
package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Sandbox implements ports.Builder. Each build gets a fresh scratch root
// under the scratch directory; the staged install tree accumulates under
// <scratch>/out and is captured after the install phase.
type Sandbox struct {
	scratchDir string
	executor   ports.Executor
	isolate    bool
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithoutIsolation disables the mount namespace and chroot. Build and
// install commands then run directly against the scratch tree; only tests
// use this.
func WithoutIsolation() Option {
	return func(s *Sandbox) {
		s.isolate = false
	}
}

// New creates a Sandbox placing scratch roots under scratchDir.
func New(scratchDir string, executor ports.Executor, opts ...Option) *Sandbox {
	s := &Sandbox{
		scratchDir: scratchDir,
		executor:   executor,
		isolate:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build extracts sourceArchive into a fresh sandbox, runs the recipe's
// build then install commands, and captures everything staged under out/.
// On any failure the scratch root is removed before returning.
func (s *Sandbox) Build(ctx context.Context, recipe *domain.Recipe, sourceArchive string) (*ports.BuildResult, error) {
	scratch, err := s.createScratch()
	if err != nil {
		return nil, err
	}

	res, err := s.build(ctx, scratch, recipe, sourceArchive)
	if err != nil {
		_ = os.RemoveAll(scratch)
		return nil, err
	}
	return res, nil
}

func (s *Sandbox) build(ctx context.Context, scratch string, recipe *domain.Recipe, sourceArchive string) (*ports.BuildResult, error) {
	root := filepath.Join(scratch, "root")
	out := filepath.Join(scratch, "out")
	srcRel := filepath.Join("src", recipe.Name+"-"+recipe.Version)
	srcDir := filepath.Join(root, srcRel)

	for _, dir := range []string{out, srcDir, filepath.Join(root, "tmp"), filepath.Join(root, "out")} {
		if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrSandboxSetup, err.Error()), "dir", dir)
		}
	}

	if err := extract(sourceArchive, srcDir); err != nil {
		return nil, err
	}

	logFile, err := os.Create(filepath.Join(scratch, "build.log"))
	if err != nil {
		return nil, zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}
	defer logFile.Close() //nolint:errcheck // log file, best effort

	if s.isolate {
		err = s.runIsolated(ctx, scratch, recipe, srcRel, logFile)
	} else {
		err = s.runPhases(ctx, recipe, phaseSpec{
			dir:     srcDir,
			destdir: out,
			log:     logFile,
		})
	}
	if err != nil {
		return nil, err
	}

	files, err := capture(out)
	if err != nil {
		return nil, err
	}

	return &ports.BuildResult{
		Scratch:    scratch,
		StagedRoot: out,
		Files:      files,
	}, nil
}

// runIsolated runs the build phases from a dedicated OS thread that has
// entered a private mount namespace. The thread is never returned to the
// scheduler: it dies with the goroutine, taking the namespace with it.
func (s *Sandbox) runIsolated(ctx context.Context, scratch string, recipe *domain.Recipe, srcRel string, log io.Writer) error {
	root := filepath.Join(scratch, "root")
	done := make(chan error, 1)

	go func() {
		runtime.LockOSThread() // deliberately never unlocked

		if err := enterPrivateMountNamespace(); err != nil {
			done <- err
			return
		}
		if err := mountTree(scratch); err != nil {
			done <- err
			return
		}

		done <- s.runPhases(ctx, recipe, phaseSpec{
			chroot:  root,
			dir:     "/" + srcRel,
			destdir: "/out",
			log:     log,
		})
	}()

	return <-done
}

// phaseSpec carries the per-build execution parameters.
type phaseSpec struct {
	chroot  string
	dir     string
	destdir string
	log     io.Writer
}

// runPhases executes build_commands then install_commands, one process per
// command line. The first non-zero exit stops the build.
func (s *Sandbox) runPhases(ctx context.Context, recipe *domain.Recipe, spec phaseSpec) error {
	stdout := io.Writer(spec.log)
	stderr := io.Writer(spec.log)
	if v := ports.VertexFromContext(ctx); v != nil {
		stdout = io.MultiWriter(spec.log, v.Stdout())
		stderr = io.MultiWriter(spec.log, v.Stderr())
	}

	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/usr/sbin:/bin:/sbin",
		"HOME=/root",
		"TERM=dumb",
		"TMPDIR=/tmp",
		"DESTDIR=" + spec.destdir,
	}

	phases := []struct {
		name     string
		commands []string
	}{
		{"build", recipe.BuildCommands},
		{"install", recipe.InstallCommands},
	}

	for _, phase := range phases {
		for _, command := range phase.commands {
			err := s.executor.Run(ctx, ports.ExecSpec{
				Command: command,
				Chroot:  spec.chroot,
				Dir:     spec.dir,
				Env:     env,
				Stdout:  stdout,
				Stderr:  stderr,
			})
			if err != nil {
				wrapped := zerr.With(zerr.Wrap(domain.ErrBuild, err.Error()), "phase", phase.name)
				wrapped = zerr.With(wrapped, "package", recipe.Name)
				var execErr *zerr.Error
				if errors.As(err, &execErr) {
					meta := execErr.Metadata()
					wrapped = zerr.With(wrapped, "exit_code", meta["exit_code"])
					wrapped = zerr.With(wrapped, "stderr_tail", meta["stderr_tail"])
				}
				return wrapped
			}
		}
	}
	return nil
}

// createScratch creates the transient scratch root with a random suffix.
func (s *Sandbox) createScratch() (string, error) {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}

	scratch := filepath.Join(s.scratchDir, domain.ScratchPrefix+hex.EncodeToString(raw[:]))
	if err := os.MkdirAll(scratch, domain.DirPerm); err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrSandboxSetup, err.Error()), "dir", scratch)
	}
	return scratch, nil
}

// capture enumerates every file staged under out and returns the sorted
// absolute destination paths.
func capture(out string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(out, path)
		if err != nil {
			return err
		}
		files = append(files, "/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to capture staged files"), "staging_root", out)
	}
	sort.Strings(files)
	return files, nil
}

// Cleanup removes the scratch root of a committed build.
func (s *Sandbox) Cleanup(res *ports.BuildResult) error {
	if res == nil || res.Scratch == "" {
		return nil
	}
	return os.RemoveAll(res.Scratch)
}

var _ ports.Builder = (*Sandbox)(nil)
