package images

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/projecteru2/core/log"
)

// PullArtifact fetches a cloud image published as a single-layer OCI
// artifact (ref form "oci://registry/repo:tag") and writes the layer's
// uncompressed content to dest. Multi-layer images are rejected: a disk
// artifact is exactly one blob, not a filesystem to assemble.
func PullArtifact(ctx context.Context, ref, dest string) (Digest, error) {
	parsed, err := name.ParseReference(strings.TrimPrefix(ref, "oci://"))
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}

	log.WithFunc("images.PullArtifact").Infof(ctx, "Pulling artifact: %s", parsed)

	img, err := remote.Image(parsed,
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
		remote.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("fetch image %s: %w", parsed, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return "", fmt.Errorf("get layers of %s: %w", parsed, err)
	}
	if len(layers) != 1 {
		return "", fmt.Errorf("artifact %s has %d layers, expected exactly 1", parsed, len(layers))
	}

	rc, err := layers[0].Uncompressed()
	if err != nil {
		return "", fmt.Errorf("open layer of %s: %w", parsed, err)
	}
	defer rc.Close() //nolint:errcheck

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pull-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return "", fmt.Errorf("write layer to %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("place %s: %w", dest, err)
	}

	manifestDigest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("get manifest digest: %w", err)
	}
	return Digest(manifestDigest.String()), nil
}
