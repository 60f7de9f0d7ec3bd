package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/projecteru2/core/log"
)

const converterBinary = "qemu-img"

// ErrConverterMissing marks an absent qemu-img binary. The wrapping message
// carries install instructions.
var ErrConverterMissing = errors.New("qemu-img not found")

// ConvertToRaw converts a cloud image (qcow2 or any format qemu-img detects)
// to a flat raw image at dst. The conversion writes to dst + ".partial" and
// renames on success.
func ConvertToRaw(ctx context.Context, src, dst string) error {
	if _, err := exec.LookPath(converterBinary); err != nil {
		return fmt.Errorf("%w: install QEMU first (brew install qemu, or apt install qemu-utils)", ErrConverterMissing)
	}

	partial := dst + ".partial"
	defer os.Remove(partial) //nolint:errcheck // no-op after successful rename

	cmd := exec.CommandContext(ctx, converterBinary, "convert", "-O", "raw", src, partial)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("convert %s: %w: %s", src, err, bytes.TrimSpace(stderr.Bytes()))
	}

	if err := os.Rename(partial, dst); err != nil {
		return fmt.Errorf("place %s: %w", dst, err)
	}
	log.WithFunc("images.ConvertToRaw").Debugf(ctx, "converted %s to %s", src, dst)
	return nil
}
