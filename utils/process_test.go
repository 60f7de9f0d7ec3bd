package utils

import (
	"os"
	"path/filepath"
	"testing"
)

// --- PID files ---

func TestPIDFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vm.pid")
	if err := WritePIDFile(path, 12345); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid != 12345 {
		t.Errorf("expected 12345, got %d", pid)
	}
}

func TestReadPIDFile_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vm.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadPIDFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestReadPIDFile_Missing(t *testing.T) {
	if _, err := ReadPIDFile(filepath.Join(t.TempDir(), "absent.pid")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// --- Liveness ---

func TestIsProcessAlive_Self(t *testing.T) {
	if !IsProcessAlive(os.Getpid()) {
		t.Error("expected own process to be alive")
	}
}

func TestIsProcessAlive_InvalidPIDs(t *testing.T) {
	for _, pid := range []int{0, -1} {
		if IsProcessAlive(pid) {
			t.Errorf("expected pid %d to be reported dead", pid)
		}
	}
}

func TestVerifyProcess_InvalidPID(t *testing.T) {
	if VerifyProcess(-1, "vmctl") {
		t.Error("expected false for invalid pid")
	}
}
