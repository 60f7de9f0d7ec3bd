package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOverrides_MissingFile(t *testing.T) {
	m, err := LoadOverrides(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("expected empty overrides, got %v", m)
	}
}

func TestSetOverride_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	if err := SetOverride(path, "name", "devbox"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if err := SetOverride(path, "cpu", "4"); err != nil {
		t.Fatalf("set cpu: %v", err)
	}

	m, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m["name"] != "devbox" {
		t.Errorf("expected name devbox, got %v", m["name"])
	}
	// JSON numbers decode as float64; the point is it was stored as a
	// number, not the string "4".
	if n, ok := m["cpu"].(float64); !ok || n != 4 {
		t.Errorf("expected cpu stored as number 4, got %T %v", m["cpu"], m["cpu"])
	}
}

func TestSetOverride_SecondKeyKeepsFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SetOverride(path, "disk", "other.raw"); err != nil {
		t.Fatalf("set disk: %v", err)
	}
	if err := SetOverride(path, "memory", "512M"); err != nil {
		t.Fatalf("set memory: %v", err)
	}

	m, err := LoadOverrides(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m["disk"] != "other.raw" || m["memory"] != "512M" {
		t.Errorf("overrides lost across writes: %v", m)
	}
}

func TestSetOverride_UnknownKey(t *testing.T) {
	err := SetOverride(filepath.Join(t.TempDir(), "config.json"), "color", "blue")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "color") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestSetOverride_IntegerCoercion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SetOverride(path, "cpu", "two"); err == nil {
		t.Error("expected error for non-integer cpu")
	}
	if err := SetOverride(path, "stop_timeout_seconds", "1.5"); err == nil {
		t.Error("expected error for fractional timeout")
	}
}

func TestResetOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := SetOverride(path, "name", "gone"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ResetOverrides(path); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config file should be removed")
	}
	// Resetting again is not an error.
	if err := ResetOverrides(path); err != nil {
		t.Fatalf("second reset: %v", err)
	}
}

func TestDefaultConfigFile_EnvOverride(t *testing.T) {
	t.Setenv("VMCTL_DATA_DIR", "/srv/vmctl")
	if got := DefaultConfigFile(); got != "/srv/vmctl/config.json" {
		t.Errorf("expected /srv/vmctl/config.json, got %q", got)
	}
}
