package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	godigest "github.com/opencontainers/go-digest"
	"github.com/projecteru2/core/log"

	"github.com/vmctl-dev/vmctl/utils"
)

// Download fetches url into dest over HTTP. The body streams to a temp file
// in dest's directory and is renamed into place on success, so dest is never
// partial. Transient failures (connection errors, 5xx) restart the download.
func Download(ctx context.Context, url, dest string) (Digest, error) {
	return utils.DoWithRetry(ctx, func() (Digest, error) {
		return downloadOnce(ctx, url, dest)
	})
}

func downloadOnce(ctx context.Context, url, dest string) (Digest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", utils.NewHTTPError(resp.StatusCode, "GET %s returned %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	digester := godigest.SHA256.Digester()
	n, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), resp.Body)
	if err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("place %s: %w", dest, err)
	}

	log.WithFunc("images.Download").Debugf(ctx, "downloaded %s (%d bytes)", url, n)
	return Digest(digester.Digest()), nil
}
