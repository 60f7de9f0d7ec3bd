package images

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// testPreparer wires counting seams around a Preparer whose fetch creates
// the source file, mimicking a real download.
func testPreparer(dir string, calls *[]string, fetchErr, convertErr error) *Preparer {
	p := &Preparer{
		SourceURL: "https://example.com/cloud.img",
		Source:    filepath.Join(dir, "cloud.img"),
		Target:    filepath.Join(dir, "disk.raw"),
	}
	p.fetch = func(_ context.Context, _, dest string) (Digest, error) {
		*calls = append(*calls, "fetch")
		if fetchErr != nil {
			return "", fetchErr
		}
		if err := os.WriteFile(dest, []byte("source"), 0o600); err != nil {
			return "", err
		}
		return NewDigest("abc123"), nil
	}
	p.convert = func(_ context.Context, _, dst string) error {
		*calls = append(*calls, "convert")
		if convertErr != nil {
			return convertErr
		}
		return os.WriteFile(dst, []byte("raw"), 0o600)
	}
	return p
}

func TestPreparer_TargetExists_NoWork(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	p := testPreparer(dir, &calls, nil, nil)
	if err := os.WriteFile(p.Target, []byte("existing"), 0o600); err != nil {
		t.Fatalf("write target: %v", err)
	}

	if err := p.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected no fetch/convert for existing target, got %v", calls)
	}
}

func TestPreparer_FetchThenConvert(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	p := testPreparer(dir, &calls, nil, nil)

	if err := p.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(calls) != 2 || calls[0] != "fetch" || calls[1] != "convert" {
		t.Fatalf("expected fetch before convert, got %v", calls)
	}
	if got := RecordedDigest(p.Source); got != NewDigest("abc123") {
		t.Errorf("expected recorded digest, got %q", got)
	}
}

func TestPreparer_SourcePresent_OnlyConvert(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	p := testPreparer(dir, &calls, nil, nil)
	if err := os.WriteFile(p.Source, []byte("already here"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := p.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(calls) != 1 || calls[0] != "convert" {
		t.Errorf("expected convert only, got %v", calls)
	}
}

func TestPreparer_FetchError_NoConvert(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	p := testPreparer(dir, &calls, fmt.Errorf("network down"), nil)

	if err := p.Ensure(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	for _, c := range calls {
		if c == "convert" {
			t.Error("convert must not run after failed fetch")
		}
	}
}

func TestPreparer_ConvertErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	p := testPreparer(dir, &calls, nil, fmt.Errorf("no converter"))

	if err := p.Ensure(context.Background()); err == nil {
		t.Fatal("expected convert error")
	}
}

func TestPreparer_Force_RedoesAll(t *testing.T) {
	dir := t.TempDir()
	var calls []string
	p := testPreparer(dir, &calls, nil, nil)
	p.Force = true
	for _, f := range []string{p.Source, p.Target} {
		if err := os.WriteFile(f, []byte("old"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if err := p.Ensure(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(calls) != 2 || calls[0] != "fetch" || calls[1] != "convert" {
		t.Errorf("expected forced fetch+convert, got %v", calls)
	}
}

func TestNewPreparer_SchemeDispatch(t *testing.T) {
	// No functional assertion possible without a registry; just check both
	// schemes wire a fetcher.
	for _, url := range []string{"https://example.com/x.img", "oci://ghcr.io/org/image:1"} {
		p := NewPreparer(url, "src", "dst")
		if p.fetch == nil || p.convert == nil {
			t.Errorf("expected seams wired for %s", url)
		}
	}
}
