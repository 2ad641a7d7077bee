package progrock_test

import (
	"context"
	"testing"

	"go.ravenpm.dev/raven/internal/adapters/telemetry/progrock"
	"go.ravenpm.dev/raven/internal/core/ports"
)

func TestRecorder_RecordAndComplete(t *testing.T) {
	recorder := progrock.New()

	ctx, vertex := recorder.Record(context.Background(), "libdummy 1.0.0")

	// The vertex is reachable through the context for the sandbox to
	// stream command output into.
	if got := ports.VertexFromContext(ctx); got != vertex {
		t.Errorf("expected context to carry the recorded vertex")
	}

	if _, err := vertex.Stdout().Write([]byte("compiling\n")); err != nil {
		t.Errorf("failed to write to stdout: %v", err)
	}
	if _, err := vertex.Stderr().Write([]byte("warning: deprecated\n")); err != nil {
		t.Errorf("failed to write to stderr: %v", err)
	}

	vertex.Complete(nil)

	if err := recorder.Close(); err != nil {
		t.Errorf("failed to close recorder: %v", err)
	}
}
