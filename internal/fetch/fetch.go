// Package fetch downloads files over HTTP(S) with a bounded number of
// retries and a constant wait between attempts.
//
// Each attempt streams the body into "<dest>.tmp" and renames it into place
// only when the transfer completed, so dest never holds a partial file.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
)

const (
	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 2
	// DefaultRetryWait is the pause between attempts.
	DefaultRetryWait = 5 * time.Second
)

// Options controls a download.
type Options struct {
	Verify    bool          // verify TLS certificates
	Retry     int           // retries after the first attempt
	RetryWait time.Duration // pause between attempts
}

// DefaultOptions returns verify=true, two retries, five seconds apart.
func DefaultOptions() Options {
	return Options{Verify: true, Retry: DefaultRetries, RetryWait: DefaultRetryWait}
}

// FetchError reports a download that failed on every attempt.
type FetchError struct {
	URL      string
	Attempts int
	Err      error // last failure
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("download %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads URLs to files.
type Fetcher struct {
	transport func(verify bool) (Transport, error)
	console   *output.Console
	notify    func(err error, wait time.Duration)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTransport uses t for every request regardless of Options.Verify.
func WithTransport(t Transport) Option {
	return func(f *Fetcher) {
		f.transport = func(bool) (Transport, error) { return t, nil }
	}
}

// WithConsole sets where progress and retry messages go.
func WithConsole(c *output.Console) Option {
	return func(f *Fetcher) { f.console = c }
}

// WithRetryNotify calls fn before each wait between attempts.
func WithRetryNotify(fn func(err error, wait time.Duration)) Option {
	return func(f *Fetcher) { f.notify = fn }
}

// New creates a Fetcher backed by HTTPTransport.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		transport: func(verify bool) (Transport, error) { return NewHTTPTransport(verify) },
		console:   output.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download fetches url into dest, retrying up to opts.Retry times.
func (f *Fetcher) Download(ctx context.Context, url, dest string, opts Options) error {
	transport, err := f.transport(opts.Verify)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	retries := max(opts.Retry, 0)
	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		return struct{}{}, f.downloadOnce(ctx, transport, url, dest)
	}

	f.console.Info("Downloading " + url)
	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.RetryWait)),
		backoff.WithMaxTries(uint(retries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			f.console.Warn(fmt.Sprintf("Download failed, retrying in %s", wait),
				"url", url, "attempt", attempts, "error", err)
			if f.notify != nil {
				f.notify(err, wait)
			}
		}),
	)
	if err != nil {
		return &FetchError{URL: url, Attempts: attempts, Err: err}
	}
	return nil
}

// downloadOnce performs a single attempt.
func (f *Fetcher) downloadOnce(ctx context.Context, transport Transport, url, dest string) error {
	resp, err := transport.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dest dir: %w", err)
		}
	}

	tmpPath := dest + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	bar := output.NewProgress(f.console, resp.ContentLength, filepath.Base(dest))
	var w io.Writer = tmpFile
	if bar != nil {
		w = io.MultiWriter(tmpFile, bar)
	}
	_, err = io.Copy(w, resp.Body)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("copy response body: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return nil
}
