package ports

import (
	"context"
	"io"
)

// Telemetry records per-package progress. Each package build gets a vertex
// whose output streams mirror the sandbox command output.
//
//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Telemetry interface {
	// Record starts a new vertex for the named unit of work.
	Record(ctx context.Context, name string) (context.Context, Vertex)

	// Close flushes and closes the recording session.
	Close() error
}

// Vertex represents one unit of work in the progress display.
type Vertex interface {
	// Stdout returns a writer capturing the standard output stream.
	Stdout() io.Writer

	// Stderr returns a writer capturing the error output stream.
	Stderr() io.Writer

	// Complete marks the vertex as finished, successfully when err is nil.
	Complete(err error)
}

type vertexKey struct{}

// ContextWithVertex attaches a vertex to the context.
func ContextWithVertex(ctx context.Context, v Vertex) context.Context {
	return context.WithValue(ctx, vertexKey{}, v)
}

// VertexFromContext returns the vertex attached to the context, or nil.
func VertexFromContext(ctx context.Context) Vertex {
	v, _ := ctx.Value(vertexKey{}).(Vertex)
	return v
}
