package ports

// Locker serializes mutating operations across processes.
//
//go:generate go run go.uber.org/mock/mockgen -source=locker.go -destination=mocks/mock_locker.go -package=mocks
type Locker interface {
	// Acquire takes the exclusive operation lock, failing immediately with
	// domain.ErrLocked when another process holds it. The returned release
	// function is idempotent.
	Acquire() (release func() error, err error)
}
