// Package shell provides the command executor adapter.
package shell

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"

	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// stderrTailSize bounds the amount of stderr kept for error reports.
const stderrTailSize = 4 * 1024

// Executor implements ports.Executor using os/exec. Each invocation runs a
// single `sh -c` process; when a chroot is requested the process is
// confined before exec.
type Executor struct{}

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Run executes the spec and waits for completion.
func (e *Executor) Run(ctx context.Context, spec ports.ExecSpec) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", spec.Command) //nolint:gosec // recipe-provided command

	if spec.Chroot != "" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Chroot: spec.Chroot}
	}
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = spec.Env
	} else {
		cmd.Env = os.Environ()
	}

	tail := newTailBuffer(stderrTailSize)
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	}
	if spec.Stderr != nil {
		cmd.Stderr = io.MultiWriter(spec.Stderr, tail)
	} else {
		cmd.Stderr = tail
	}

	if err := cmd.Run(); err != nil {
		// Capture exit code if possible.
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok { //nolint:errorlint // os/exec returns it directly
			exitCode = exitErr.ExitCode()
		}
		wrapped := zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
		wrapped = zerr.With(wrapped, "command", spec.Command)
		return zerr.With(wrapped, "stderr_tail", tail.String())
	}

	return nil
}

// tailBuffer keeps the last n bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

var _ ports.Executor = (*Executor)(nil)
