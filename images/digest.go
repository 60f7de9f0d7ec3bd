package images

import (
	"fmt"
	"os"
	"strings"

	godigest "github.com/opencontainers/go-digest"
)

// Digest represents a content-addressable digest in "algorithm:hex" format
// (e.g., "sha256:abcdef..."). Backed by opencontainers/go-digest.
type Digest string

// NewDigest creates a Digest from a raw hex string, prefixing "sha256:".
func NewDigest(hex string) Digest {
	return Digest(godigest.NewDigestFromEncoded(godigest.SHA256, hex))
}

// Hex returns the hex portion of the digest, stripping the algorithm prefix.
func (d Digest) Hex() string {
	return godigest.Digest(d).Encoded()
}

// String returns the full digest string including the algorithm prefix.
func (d Digest) String() string {
	return string(d)
}

// digestPath is where the digest of a fetched file is recorded.
func digestPath(path string) string { return path + ".digest" }

// RecordDigest persists the digest of a fetched image next to it. The record
// is informational — downloads are not re-verified against it.
func RecordDigest(path string, d Digest) error {
	if err := os.WriteFile(digestPath(path), []byte(d.String()+"\n"), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("record digest for %s: %w", path, err)
	}
	return nil
}

// RecordedDigest reads the digest recorded for path, or "" when none exists.
func RecordedDigest(path string) Digest {
	data, err := os.ReadFile(digestPath(path)) //nolint:gosec
	if err != nil {
		return ""
	}
	return Digest(strings.TrimSpace(string(data)))
}
