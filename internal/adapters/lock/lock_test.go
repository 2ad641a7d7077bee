package lock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.ravenpm.dev/raven/internal/adapters/lock"
	"go.ravenpm.dev/raven/internal/core/domain"
)

func TestLocker_AcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raven.lock")
	l := lock.New(path)

	release, err := l.Acquire()
	require.NoError(t, err)
	require.NoError(t, release())

	// Released lock can be re-acquired.
	release2, err := l.Acquire()
	require.NoError(t, err)
	require.NoError(t, release2())
}

func TestLocker_SecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raven.lock")

	release, err := lock.New(path).Acquire()
	require.NoError(t, err)
	defer release() //nolint:errcheck // test cleanup

	_, err = lock.New(path).Acquire()
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrLocked))
}

func TestLocker_ReleaseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raven.lock")

	release, err := lock.New(path).Acquire()
	require.NoError(t, err)
	require.NoError(t, release())
	require.NoError(t, release())
}
