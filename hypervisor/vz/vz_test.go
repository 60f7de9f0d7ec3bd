package vz

import (
	"os"
	"path/filepath"
	"testing"
)

// --- EFI variable store decision ---

func TestNeedsNewEFIStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "efi_vars.store")

	if !needsNewEFIStore(path) {
		t.Fatal("missing store must be created")
	}
	if err := os.WriteFile(path, []byte{0x00}, 0o600); err != nil {
		t.Fatal(err)
	}
	if needsNewEFIStore(path) {
		t.Fatal("existing store must be reopened, not recreated")
	}
}

// --- machine identifier decision ---

func TestUsableMachineID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine_id.bin")

	if usableMachineID(path) {
		t.Fatal("missing identifier is not usable")
	}
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if usableMachineID(path) {
		t.Fatal("empty identifier is not usable")
	}
	if err := os.WriteFile(path, []byte("identifier blob"), 0o600); err != nil {
		t.Fatal(err)
	}
	if !usableMachineID(path) {
		t.Fatal("non-empty identifier must be reused")
	}
}
