package sandbox

import (
	"os"
	"path/filepath"

	"go.ravenpm.dev/raven/internal/core/domain"
	"go.trai.ch/zerr"
	"golang.org/x/sys/unix"
)

// hostTrees are the read-only host directories projected into the jail so
// build tools (compilers, shells, linkers) resolve normally.
var hostTrees = []string{"/usr", "/bin", "/lib", "/lib64", "/etc"}

// enterPrivateMountNamespace unshares the mount namespace of the calling
// thread and makes mount propagation private, so sandbox mounts never leak
// to the host. The caller must be locked to its OS thread.
func enterPrivateMountNamespace() error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return zerr.Wrap(domain.ErrSandboxSetup, "unshare(CLONE_NEWNS): "+err.Error())
	}
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return zerr.Wrap(domain.ErrSandboxSetup, "remounting / private: "+err.Error())
	}
	return nil
}

// mountTree assembles the jail under <scratch>/root: host trees bind-mounted
// read-only, the staging prefix writable at /out, a fresh proc, and the
// host's /dev and /sys. A PID namespace is intentionally not used; some
// build systems expect host-visible PIDs and real parent/child relations.
func mountTree(scratch string) error {
	root := filepath.Join(scratch, "root")
	out := filepath.Join(scratch, "out")

	for _, tree := range hostTrees {
		if _, err := os.Stat(tree); err != nil {
			continue
		}
		target := filepath.Join(root, tree)
		if err := os.MkdirAll(target, domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(domain.ErrSandboxSetup, err.Error()), "target", target)
		}
		if err := unix.Mount(tree, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return mountErr(tree, target, err)
		}
		// Remounting read-only requires a second call for bind mounts.
		if err := unix.Mount("", target, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY, ""); err != nil {
			return mountErr(tree, target, err)
		}
	}

	outTarget := filepath.Join(root, "out")
	if err := os.MkdirAll(outTarget, domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}
	if err := unix.Mount(out, outTarget, "", unix.MS_BIND, ""); err != nil {
		return mountErr(out, outTarget, err)
	}

	procTarget := filepath.Join(root, "proc")
	if err := os.MkdirAll(procTarget, domain.DirPerm); err != nil {
		return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
	}
	if err := unix.Mount("proc", procTarget, "proc", 0, ""); err != nil {
		return mountErr("proc", procTarget, err)
	}

	for _, tree := range []string{"/dev", "/sys"} {
		target := filepath.Join(root, tree)
		if err := os.MkdirAll(target, domain.DirPerm); err != nil {
			return zerr.Wrap(domain.ErrSandboxSetup, err.Error())
		}
		if err := unix.Mount(tree, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return mountErr(tree, target, err)
		}
	}

	return nil
}

func mountErr(source, target string, err error) error {
	wrapped := zerr.With(zerr.Wrap(domain.ErrSandboxSetup, "mount: "+err.Error()), "source", source)
	return zerr.With(wrapped, "target", target)
}
