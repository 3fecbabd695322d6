package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTryAcquire(t *testing.T) {
	t.Run("creates lock file with pid", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		l, err := TryAcquire(dir, "install")
		if err != nil {
			t.Fatalf("TryAcquire: %v", err)
		}
		defer l.Release()

		data, err := os.ReadFile(filepath.Join(dir, "install.lock"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), fmt.Sprintf("pid=%d", os.Getpid())) {
			t.Errorf("lock content = %q", data)
		}
	})

	t.Run("second holder is refused", func(t *testing.T) {
		dir := t.TempDir()
		l, err := TryAcquire(dir, "install")
		if err != nil {
			t.Fatal(err)
		}
		defer l.Release()

		_, err = TryAcquire(dir, "install")
		if !errors.Is(err, ErrLocked) {
			t.Fatalf("TryAcquire = %v, want ErrLocked", err)
		}
		if !strings.Contains(err.Error(), fmt.Sprintf("pid %d", os.Getpid())) {
			t.Errorf("error does not name holder: %v", err)
		}

		other, err := TryAcquire(dir, "recipe")
		if err != nil {
			t.Fatalf("independent lock refused: %v", err)
		}
		other.Release()
	})

	t.Run("stale lock is reclaimed", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "install.lock")
		if err := os.WriteFile(path, []byte("pid=1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		old := time.Now().Add(-2 * StaleAfter)
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}

		l, err := TryAcquire(dir, "install")
		if err != nil {
			t.Fatalf("stale lock not reclaimed: %v", err)
		}
		l.Release()
	})
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()
	l, err := TryAcquire(dir, "install")
	if err != nil {
		t.Fatal(err)
	}
	path := l.Path()

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file still present")
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release: %v", err)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	held, err := TryAcquire(dir, "install")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		l, err := Acquire(context.Background(), dir, "install", time.Millisecond)
		if err == nil {
			l.Release()
		}
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	held.Release()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire did not return after release")
	}
}

func TestAcquire_Context(t *testing.T) {
	dir := t.TempDir()
	held, err := TryAcquire(dir, "install")
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, dir, "install", time.Millisecond); err == nil {
		t.Fatal("Acquire succeeded while lock held")
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if _, err := Acquire(cancelled, t.TempDir(), "install", time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want context.Canceled", err)
	}
}
