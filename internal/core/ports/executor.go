package ports

import (
	"context"
	"io"
)

// ExecSpec describes a single command invocation. Each recipe command runs
// in its own process; recipes needing shared state sequence it inside one
// command line.
type ExecSpec struct {
	// Command is the shell command line, run via `sh -c`.
	Command string
	// Chroot, when non-empty, confines the process to the given root.
	Chroot string
	// Dir is the working directory, interpreted inside the chroot.
	Dir string
	// Env is the full process environment in KEY=VALUE form.
	Env []string
	// Stdout and Stderr receive the command's output streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Executor runs a single command to completion.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Run executes the spec and waits. A non-zero exit is reported as an
	// error carrying the exit code.
	Run(ctx context.Context, spec ExecSpec) error
}
