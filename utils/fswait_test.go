package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// --- WaitForPath ---

func TestWaitForPath_AlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ready")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WaitForPath(context.Background(), path, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForPath_AppearsLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vm.pid")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(path, []byte("1\n"), 0o600)
	}()

	if err := WaitForPath(context.Background(), path, 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForPath_AppearsViaRename(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, ".vm.pid.tmp")
	path := filepath.Join(dir, "vm.pid")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(tmp, []byte("1\n"), 0o600)
		_ = os.Rename(tmp, path)
	}()

	if err := WaitForPath(context.Background(), path, 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForPath_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never")
	err := WaitForPath(context.Background(), path, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestWaitForPath_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitForPath(ctx, filepath.Join(t.TempDir(), "never"), time.Second)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
