// Package main is the entry point for the raven CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.ravenpm.dev/raven/cmd/raven/commands"
	"go.ravenpm.dev/raven/internal/app"
	_ "go.ravenpm.dev/raven/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, err
	}))
}

func run(ctx context.Context, args []string, stderr io.Writer, provider ComponentProvider) int {
	// Cancellation is cooperative: an interrupt cancels ctx, which stops the
	// download or build command in progress and unwinds the flow with its
	// error. A file-move commit does not observe ctx; once started it runs
	// to completion, or rolls back only on its own failure.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := provider(ctx)
	if err != nil {
		// Logger is not available if initialization failed.
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer components.App.Close() //nolint:errcheck // process exit path

	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		// zerr renders the error with its metadata when using %+v.
		_, _ = fmt.Fprintf(stderr, "%+v\n", err)
		return 1
	}
	return 0
}
