package images

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeConverter installs a stand-in qemu-img script ahead of the real
// one on PATH.
func fakeConverter(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, converterBinary)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil { //nolint:gosec
		t.Fatalf("write fake converter: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestConvertToRaw_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir()) // empty dir: no qemu-img anywhere

	err := ConvertToRaw(context.Background(), "src.img", "dst.raw")
	if !errors.Is(err, ErrConverterMissing) {
		t.Fatalf("expected ErrConverterMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "install") {
		t.Errorf("expected actionable install message, got %q", err)
	}
}

func TestConvertToRaw_Succeeds(t *testing.T) {
	// Args are: convert -O raw <src> <dst>.
	fakeConverter(t, `cp "$4" "$5"`)

	dir := t.TempDir()
	src := filepath.Join(dir, "cloud.img")
	dst := filepath.Join(dir, "disk.raw")
	if err := os.WriteFile(src, []byte("qcow2-ish bytes"), 0o600); err != nil {
		t.Fatalf("write src: %v", err)
	}

	if err := ConvertToRaw(context.Background(), src, dst); err != nil {
		t.Fatalf("convert: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(got) != "qcow2-ish bytes" {
		t.Error("converted content mismatch")
	}
	if _, err := os.Stat(dst + ".partial"); err == nil {
		t.Error("partial file left behind")
	}
}

func TestConvertToRaw_FailurePropagatesStderr(t *testing.T) {
	fakeConverter(t, `echo "no such format" >&2; exit 1`)

	dir := t.TempDir()
	dst := filepath.Join(dir, "disk.raw")
	err := ConvertToRaw(context.Background(), filepath.Join(dir, "cloud.img"), dst)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "no such format") {
		t.Errorf("expected stderr in error, got %q", err)
	}
	if _, serr := os.Stat(dst); serr == nil {
		t.Error("dst must not exist after failed conversion")
	}
	if _, serr := os.Stat(dst + ".partial"); serr == nil {
		t.Error("partial file left behind after failure")
	}
}
