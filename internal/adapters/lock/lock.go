// Package lock serializes mutating operations with an exclusive file lock.
package lock

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

// Locker implements ports.Locker with a non-blocking flock on a well-known
// path. A second instance observing the lock fails immediately.
type Locker struct {
	path string
}

// New creates a Locker on the given lock file path.
func New(path string) *Locker {
	return &Locker{path: path}
}

// Acquire takes the exclusive lock, failing fast with domain.ErrLocked when
// another process holds it.
func (l *Locker) Acquire() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create lock directory"), "path", l.path)
	}

	fl := flock.New(l.path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to acquire operation lock"), "path", l.path)
	}
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrLocked, "operation lock is held"), "path", l.path)
	}

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() {
			err = fl.Unlock()
		})
		return err
	}
	return release, nil
}

var _ ports.Locker = (*Locker)(nil)
