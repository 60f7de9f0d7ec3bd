package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vmctl-dev/vmctl/utils"
)

// VolumeLabel is the seed volume identifier cloud-init's NoCloud datasource
// looks for.
const VolumeLabel = "cidata"

// ErrNoUserData marks a seed build attempted without a user-data file.
// This is a hard precondition, not recoverable.
var ErrNoUserData = errors.New("user-data not found")

// SeedBuilder assembles the cloud-init seed volume from working-directory
// inputs.
type SeedBuilder struct {
	Name     string // VM name: becomes local-hostname and the instance-id seed
	UserData string // user-data path; must exist
	MetaData string // meta-data path; generated when absent
	Output   string // seed ISO path
}

// Exists reports whether the seed volume is already built.
func (b *SeedBuilder) Exists() bool {
	_, err := os.Stat(b.Output)
	return err == nil
}

// Build writes the seed ISO atomically. A missing user-data file fails the
// build and leaves no partial output; a missing meta-data file is replaced by
// a generated one.
func (b *SeedBuilder) Build() error {
	userData, err := os.ReadFile(b.UserData)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s (write a #cloud-config file first)", ErrNoUserData, b.UserData)
		}
		return fmt.Errorf("read %s: %w", b.UserData, err)
	}

	metaData, err := os.ReadFile(b.MetaData)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", b.MetaData, err)
		}
		metaData, err = GenerateMetaData(b.Name)
		if err != nil {
			return err
		}
	}

	files := map[string][]byte{
		"user-data": userData,
		"meta-data": metaData,
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.Output), ".seed-*.iso")
	if err != nil {
		return fmt.Errorf("create temp seed: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if err := CreateISO9660(tmp, VolumeLabel, files); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write seed volume: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp seed: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.Output); err != nil {
		return fmt.Errorf("place seed volume: %w", err)
	}
	return nil
}

// GenerateMetaData renders a minimal cloud-init meta-data document with a
// stable instance-id derived from the VM name.
func GenerateMetaData(name string) ([]byte, error) {
	doc := map[string]string{
		"instance-id":    utils.UUIDv5(name),
		"local-hostname": name,
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render meta-data: %w", err)
	}
	return out, nil
}

// CheckUserData reports whether the user-data payload starts with a header
// cloud-init recognizes. Advisory only: other formats (scripts, MIME
// archives) are legal.
func CheckUserData(data []byte) bool {
	for _, prefix := range []string{"#cloud-config", "#!", "#include", "#cloud-boothook", "Content-Type:", "MIME-Version:"} {
		if len(data) >= len(prefix) && string(data[:len(prefix)]) == prefix {
			return true
		}
	}
	return false
}
