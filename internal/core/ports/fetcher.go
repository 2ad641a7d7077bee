package ports

import "context"

// Fetcher downloads a source archive and verifies its content hash.
//
//go:generate go run go.uber.org/mock/mockgen -source=fetcher.go -destination=mocks/mock_fetcher.go -package=mocks
type Fetcher interface {
	// Fetch downloads url to dest, retrying transient failures with
	// exponential backoff, and verifies the SHA-256 digest of the written
	// file against sha256sum. A digest mismatch fails with
	// domain.ErrIntegrity; an exhausted retry budget fails with
	// domain.ErrDownload.
	Fetch(ctx context.Context, url, sha256sum, dest string) error
}
