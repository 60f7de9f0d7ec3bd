package images

import (
	"context"
	"os"
	"strings"

	"github.com/projecteru2/core/log"
)

// Preparer ensures a raw disk image exists: when the target is already
// present nothing happens; otherwise the source cloud image is fetched
// (unless present) and converted to raw.
type Preparer struct {
	SourceURL string // http(s):// or oci:// reference
	Source    string // local cloud-image path
	Target    string // raw disk path
	Force     bool   // refetch and reconvert even when files exist

	// Seams for tests; defaulted by NewPreparer.
	fetch   func(ctx context.Context, url, dest string) (Digest, error)
	convert func(ctx context.Context, src, dst string) error
}

// NewPreparer wires a Preparer with the scheme-appropriate fetcher and the
// external converter.
func NewPreparer(sourceURL, source, target string) *Preparer {
	p := &Preparer{
		SourceURL: sourceURL,
		Source:    source,
		Target:    target,
	}
	p.fetch = fetchForScheme(sourceURL)
	p.convert = ConvertToRaw
	return p
}

func fetchForScheme(url string) func(context.Context, string, string) (Digest, error) {
	if strings.HasPrefix(url, "oci://") {
		return PullArtifact
	}
	return Download
}

// Ensure realizes the raw disk image. Steps are skipped when their output
// already exists, so an existing target makes this a no-op.
func (p *Preparer) Ensure(ctx context.Context) error {
	logger := log.WithFunc("images.Ensure")

	if !p.Force && exists(p.Target) {
		logger.Debugf(ctx, "raw disk %s present, nothing to do", p.Target)
		return nil
	}

	if p.Force || !exists(p.Source) {
		logger.Infof(ctx, "fetching cloud image from %s", p.SourceURL)
		digest, err := p.fetch(ctx, p.SourceURL, p.Source)
		if err != nil {
			return err
		}
		if err := RecordDigest(p.Source, digest); err != nil {
			return err
		}
		logger.Infof(ctx, "cloud image fetched (digest: %s)", digest)
	}

	logger.Infof(ctx, "converting %s to raw disk %s", p.Source, p.Target)
	return p.convert(ctx, p.Source, p.Target)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
