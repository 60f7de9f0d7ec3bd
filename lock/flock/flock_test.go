package flock

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmctl-dev/vmctl/lock"
)

func TestLock_AcquireRelease(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "vms.lock"))
	ctx := context.Background()

	if err := l.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := l.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}

func TestLock_ContextCanceledWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vms.lock")
	held := New(path)
	if err := held.Lock(context.Background()); err != nil {
		t.Fatalf("lock: %v", err)
	}
	t.Cleanup(func() { _ = held.Unlock(context.Background()) })

	// A second Flock value opens its own fd, so flock(2) contends even
	// within one process. The short deadline turns contention into an error.
	contender := New(path)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := contender.Lock(ctx); err == nil {
		_ = contender.Unlock(context.Background())
		t.Fatal("expected contended lock to fail on context expiry")
	}
}

func TestWithLock_ReleasesOnError(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "vms.lock"))
	ctx := context.Background()

	boom := fmt.Errorf("fn failed")
	if err := lock.WithLock(ctx, l, func() error { return boom }); err != boom {
		t.Fatalf("expected fn error back, got %v", err)
	}

	// Lock must be free again.
	if err := l.Lock(ctx); err != nil {
		t.Fatalf("relock after WithLock: %v", err)
	}
	_ = l.Unlock(ctx)
}
