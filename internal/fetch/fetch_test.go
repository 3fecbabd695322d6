package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/testutil"
)

func fastOptions(retry int) Options {
	return Options{Verify: true, Retry: retry, RetryWait: time.Millisecond}
}

func TestDownload_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		io.WriteString(w, "archive bytes")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "nested", "pkg.zip")
	if err := New().Download(context.Background(), server.URL+"/pkg.zip", dest, fastOptions(0)); err != nil {
		t.Fatalf("Download: %v", err)
	}

	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(content) != "archive bytes" {
		t.Errorf("content = %q", content)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestDownload_RetriesThenSucceeds(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "third time lucky")
	}))
	defer server.Close()

	var waits []time.Duration
	log := &testutil.Logger{}
	f := New(
		WithConsole(output.NewConsole(io.Discard, log)),
		WithRetryNotify(func(err error, wait time.Duration) { waits = append(waits, wait) }),
	)

	dest := filepath.Join(t.TempDir(), "file")
	if err := f.Download(context.Background(), server.URL, dest, fastOptions(2)); err != nil {
		t.Fatalf("Download: %v", err)
	}

	if got := requests.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
	if len(waits) != 2 {
		t.Errorf("slept %d times, want 2", len(waits))
	}
	for _, w := range waits {
		if w != time.Millisecond {
			t.Errorf("wait = %v, want 1ms", w)
		}
	}
	if !log.Contains("WARN", "retrying") {
		t.Errorf("retries not reported: %v", log.Lines())
	}
}

func TestDownload_Exhausted(t *testing.T) {
	tests := []struct {
		name         string
		retry        int
		wantAttempts int
	}{
		{"no_retry", 0, 1},
		{"one_retry", 1, 2},
		{"negative_retry", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				http.NotFound(w, r)
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "file")
			err := New().Download(context.Background(), server.URL, dest, fastOptions(tt.retry))

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Download = %v, want *FetchError", err)
			}
			if fe.Attempts != tt.wantAttempts || int(requests.Load()) != tt.wantAttempts {
				t.Errorf("attempts = %d (server saw %d), want %d", fe.Attempts, requests.Load(), tt.wantAttempts)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
				t.Errorf("cause = %v, want 404 StatusError", fe.Err)
			}
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Error("destination created on failure")
			}
		})
	}
}

// flakyTransport fails a fixed number of times before delegating.
type flakyTransport struct {
	failures int
	calls    int
	body     string
}

func (f *flakyTransport) Get(ctx context.Context, url string) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		ContentLength: int64(len(f.body)),
		Body:          io.NopCloser(strings.NewReader(f.body)),
	}, nil
}

func TestDownload_WithTransport(t *testing.T) {
	transport := &flakyTransport{failures: 2, body: "ok"}
	var slept int
	f := New(WithTransport(transport), WithRetryNotify(func(error, time.Duration) { slept++ }))

	dest := filepath.Join(t.TempDir(), "file")
	if err := f.Download(context.Background(), "https://example.invalid/file", dest, fastOptions(2)); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if transport.calls != 3 || slept != 2 {
		t.Errorf("calls = %d, sleeps = %d; want 3 and 2", transport.calls, slept)
	}

	transport = &flakyTransport{failures: 5, body: "ok"}
	err := New(WithTransport(transport)).Download(context.Background(), "https://example.invalid/file", dest, fastOptions(2))
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Attempts != 3 {
		t.Errorf("Download = %v, want FetchError after 3 attempts", err)
	}
}

func TestDownload_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &flakyTransport{failures: 100}
	f := New(WithTransport(transport), WithRetryNotify(func(error, time.Duration) { cancel() }))

	err := f.Download(ctx, "https://example.invalid/file", filepath.Join(t.TempDir(), "file"),
		Options{Retry: 10, RetryWait: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download = %v, want context.Canceled", err)
	}
	if transport.calls != 1 {
		t.Errorf("calls = %d, want 1", transport.calls)
	}
}

func TestDownload_TLSVerification(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "secure")
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file")

	err := New().Download(context.Background(), server.URL, dest, fastOptions(0))
	if err == nil {
		t.Fatal("self-signed certificate accepted with verification on")
	}

	opts := fastOptions(0)
	opts.Verify = false
	if err := New().Download(context.Background(), server.URL, dest, opts); err != nil {
		t.Fatalf("Download without verification: %v", err)
	}
}

func TestRootCAs(t *testing.T) {
	pool, err := RootCAs()
	if err != nil {
		t.Fatalf("RootCAs: %v", err)
	}
	if pool == nil {
		t.Fatal("nil pool")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if !opts.Verify || opts.Retry != 2 || opts.RetryWait != 5*time.Second {
		t.Errorf("DefaultOptions = %+v", opts)
	}
}
