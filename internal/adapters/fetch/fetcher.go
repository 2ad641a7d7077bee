// Package fetch downloads source archives with retry and integrity
// verification.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports"
	"go.trai.ch/zerr"
)

const userAgent = "raven/1.0"

// Fetcher implements ports.Fetcher over net/http with exponential backoff.
type Fetcher struct {
	client       *http.Client
	maxAttempts  int
	initialDelay time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithMaxAttempts sets the total number of download attempts.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		f.maxAttempts = n
	}
}

// WithInitialDelay sets the first backoff interval.
func WithInitialDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.initialDelay = d
	}
}

// New creates a Fetcher with the default retry policy: 3 attempts starting
// at 1s and doubling.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:       &http.Client{Timeout: 5 * time.Minute},
		maxAttempts:  3,
		initialDelay: time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to dest and verifies the SHA-256 digest of the
// written bytes. The file is written to a temp path first and renamed into
// place only after the digest matches.
func (f *Fetcher) Fetch(ctx context.Context, url, sha256sum, dest string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.initialDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	var lastErr error
	attempts := uint64(f.maxAttempts) //nolint:gosec // attempt count is a small positive constant
	err := backoff.Retry(func() error {
		err := f.fetchOnce(ctx, url, sha256sum, dest)
		if err == nil {
			return nil
		}
		// Integrity failures are terminal: the upstream content is wrong,
		// not the transport.
		if errors.Is(err, domain.ErrIntegrity) {
			return backoff.Permanent(err)
		}
		lastErr = err
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, attempts-1), ctx))

	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrIntegrity) {
		return err
	}
	if lastErr == nil {
		lastErr = err
	}
	return zerr.With(zerr.Wrap(domain.ErrDownload, lastErr.Error()), "url", url)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, sha256sum, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return zerr.Wrap(err, "failed to build request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return zerr.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck // drained below

	if resp.StatusCode != http.StatusOK {
		return zerr.With(zerr.New("unexpected HTTP status"), "status", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".part-")
	if err != nil {
		return zerr.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best effort cleanup

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to read response body")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to flush temp file")
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if actual != sha256sum {
		err := zerr.With(zerr.Wrap(domain.ErrIntegrity, "downloaded archive digest differs"), "expected", sha256sum)
		err = zerr.With(err, "actual", actual)
		return zerr.With(err, "url", url)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return zerr.Wrap(err, "failed to move verified download into place")
	}
	return nil
}

var _ ports.Fetcher = (*Fetcher)(nil)
