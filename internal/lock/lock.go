// Package lock provides an advisory lock file that serialises envprep runs
// touching the same package database or cache directory.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// StaleAfter is the age past which a lock file left by a dead run is
// reclaimed.
const StaleAfter = 30 * time.Minute

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("lock held by another envprep process")

// Lock is a held lock file.
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// TryAcquire takes dir/name.lock without waiting.
func TryAcquire(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, name+".lock")

	file, err := create(path)
	if errors.Is(err, os.ErrExist) && stale(path) {
		_ = os.Remove(path)
		file, err = create(path)
	}
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, holder(path))
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	content := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{path: path, file: file}, nil
}

// Acquire waits for dir/name.lock, polling every interval until ctx is done.
func Acquire(ctx context.Context, dir, name string, interval time.Duration) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := func() (*Lock, error) {
		l, err := TryAcquire(dir, name)
		if err != nil && !errors.Is(err, ErrLocked) {
			return nil, backoff.Permanent(err)
		}
		return l, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(0),
	)
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
}

func stale(path string) bool {
	info, err := os.Stat(path)
	return err == nil && time.Since(info.ModTime()) > StaleAfter
}

// holder describes the process recorded in the lock file.
func holder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return path
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			if pid, err := strconv.Atoi(v); err == nil {
				return fmt.Sprintf("%s (pid %d)", path, pid)
			}
		}
	}
	return path
}
