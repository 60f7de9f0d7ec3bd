package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	coretypes "github.com/projecteru2/core/types"
	"github.com/spf13/viper"

	"github.com/vmctl-dev/vmctl/utils"
)

// Defaults for every configurable field. Each maps to an environment
// variable with the VMCTL_ prefix (VMCTL_DISK, VMCTL_EFI_STORE, ...).
const (
	DefaultName      = "vm"
	DefaultDisk      = "ubuntu.raw"
	DefaultSeed      = "seed.iso"
	DefaultEFIStore  = "efi_vars.store"
	DefaultMachineID = "machine_id.bin"
	DefaultCPU       = 2
	DefaultMemory    = "2G" // 2147483648 bytes
	DefaultMAC       = "02:00:00:00:00:01"
	DefaultUserData  = "user-data"
	DefaultMetaData  = "meta-data"
	DefaultSSHKey    = "vm_key"
	DefaultSSHUser   = "ubuntu"
	DefaultImage     = "ubuntu.img"
	DefaultImageURL  = "https://cloud-images.ubuntu.com/noble/current/noble-server-cloudimg-arm64.img"

	DefaultStopTimeoutSeconds = 5
)

// MACAuto asks for a stable per-name MAC instead of the fixed default.
const MACAuto = "auto"

// Config holds the resolved vmctl configuration. Populated once at startup
// from defaults < config file < VMCTL_* environment < flags, then passed
// explicitly; nothing reads the environment after resolution.
type Config struct {
	// Name labels the guest; used as registry key, cloud-init hostname and
	// instance-id seed. Env: VMCTL_NAME. Default: vm.
	Name string `json:"name" mapstructure:"name"`
	// Disk is the raw root disk image path. Must exist at launch; attached
	// read-write. Env: VMCTL_DISK. Default: ubuntu.raw.
	Disk string `json:"disk" mapstructure:"disk"`
	// Seed is the cloud-init seed ISO path. Attached read-only only when
	// present; absence yields a guest with no seed device.
	// Env: VMCTL_SEED. Default: seed.iso.
	Seed string `json:"seed" mapstructure:"seed"`
	// EFIStore is the UEFI variable store path. Created on first launch,
	// reopened afterwards. Env: VMCTL_EFI_STORE. Default: efi_vars.store.
	EFIStore string `json:"efi_store" mapstructure:"efi_store"`
	// MachineID is the persisted machine-identifier path. Generated and
	// written on first launch; a corrupt file is regenerated.
	// Env: VMCTL_MACHINE_ID. Default: machine_id.bin.
	MachineID string `json:"machine_id" mapstructure:"machine_id"`
	// CPU is the guest vCPU count. Env: VMCTL_CPU. Default: 2.
	CPU int `json:"cpu" mapstructure:"cpu"`
	// Memory is the guest memory size; plain digits are bytes, human
	// suffixes (512M, 2G) are accepted. Env: VMCTL_MEMORY. Default: 2G.
	Memory string `json:"memory" mapstructure:"memory"`
	// MAC is the guest interface hardware address, the sole discovery
	// mechanism for operator tooling. "auto" derives a stable address from
	// Name. Env: VMCTL_MAC. Default: 02:00:00:00:00:01.
	MAC string `json:"mac" mapstructure:"mac"`

	// UserData and MetaData are the cloud-init inputs for the seed builder.
	// user-data must exist; meta-data is generated when absent.
	UserData string `json:"user_data" mapstructure:"user_data"`
	MetaData string `json:"meta_data" mapstructure:"meta_data"`

	// SSHKey and SSHUser configure the guest connector.
	// Env: VMCTL_SSH_KEY, VMCTL_SSH_USER. Defaults: vm_key, ubuntu.
	SSHKey  string `json:"ssh_key" mapstructure:"ssh_key"`
	SSHUser string `json:"ssh_user" mapstructure:"ssh_user"`

	// Image is the local cloud-image source file the raw disk is converted
	// from; ImageURL is where it is fetched when absent. http(s):// and
	// oci:// schemes are supported.
	Image    string `json:"image" mapstructure:"image"`
	ImageURL string `json:"image_url" mapstructure:"image_url"`

	// DataDir is the base directory for runtime state and logs.
	// Env: VMCTL_DATA_DIR. Default: ~/.vmctl.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// StopTimeoutSeconds is how long `vmctl stop` waits for a graceful
	// shutdown before sending SIGKILL. Default: 5.
	StopTimeoutSeconds int `json:"stop_timeout_seconds" mapstructure:"stop_timeout_seconds"`

	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config populated with every documented default.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Name:               DefaultName,
		Disk:               DefaultDisk,
		Seed:               DefaultSeed,
		EFIStore:           DefaultEFIStore,
		MachineID:          DefaultMachineID,
		CPU:                DefaultCPU,
		Memory:             DefaultMemory,
		MAC:                DefaultMAC,
		UserData:           DefaultUserData,
		MetaData:           DefaultMetaData,
		SSHKey:             DefaultSSHKey,
		SSHUser:            DefaultSSHUser,
		Image:              DefaultImage,
		ImageURL:           DefaultImageURL,
		DataDir:            filepath.Join(home, ".vmctl"),
		StopTimeoutSeconds: DefaultStopTimeoutSeconds,
		Log:                coretypes.ServerLogConfig{Level: "info"},
	}
}

// Resolve binds the VMCTL_ environment and defaults into v, reads the
// optional config file set on v, and unmarshals the result.
func Resolve(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("VMCTL")
	v.AutomaticEnv()

	// Register every key so AutomaticEnv surfaces it during Unmarshal.
	def := DefaultConfig()
	v.SetDefault("name", def.Name)
	v.SetDefault("disk", def.Disk)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("efi_store", def.EFIStore)
	v.SetDefault("machine_id", def.MachineID)
	v.SetDefault("cpu", def.CPU)
	v.SetDefault("memory", def.Memory)
	v.SetDefault("mac", def.MAC)
	v.SetDefault("user_data", def.UserData)
	v.SetDefault("meta_data", def.MetaData)
	v.SetDefault("ssh_key", def.SSHKey)
	v.SetDefault("ssh_user", def.SSHUser)
	v.SetDefault("image", def.Image)
	v.SetDefault("image_url", def.ImageURL)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("stop_timeout_seconds", def.StopTimeoutSeconds)
	v.SetDefault("log.level", def.Log.Level)

	_ = v.ReadInConfig() // optional; missing file is OK

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks value-domain constraints. File existence is checked later,
// at configuration-build time.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if strings.ContainsAny(c.Name, "/\\ ") {
		return fmt.Errorf("name %q must not contain path separators or spaces", c.Name)
	}
	if c.CPU <= 0 {
		return fmt.Errorf("cpu must be positive, got %d", c.CPU)
	}
	mem, err := c.MemoryBytes()
	if err != nil {
		return err
	}
	if mem <= 0 {
		return fmt.Errorf("memory must be positive, got %d", mem)
	}
	if _, err := c.HardwareAddr(); err != nil {
		return err
	}
	if c.StopTimeoutSeconds <= 0 {
		c.StopTimeoutSeconds = DefaultStopTimeoutSeconds
	}
	return nil
}

// MemoryBytes parses the Memory field into bytes.
func (c *Config) MemoryBytes() (int64, error) {
	mem, err := units.RAMInBytes(c.Memory)
	if err != nil {
		return 0, fmt.Errorf("parse memory %q: %w", c.Memory, err)
	}
	return mem, nil
}

// HardwareAddr resolves the MAC field, deriving a stable per-name address
// for "auto".
func (c *Config) HardwareAddr() (net.HardwareAddr, error) {
	if c.MAC == MACAuto {
		return utils.MACFromName(c.Name), nil
	}
	mac, err := net.ParseMAC(c.MAC)
	if err != nil {
		return nil, fmt.Errorf("parse mac %q: %w", c.MAC, err)
	}
	return mac, nil
}

// Environ renders the resolved config as VMCTL_* assignments for handing the
// exact configuration to a re-executed child.
func (c *Config) Environ() []string {
	mem := c.Memory
	if b, err := c.MemoryBytes(); err == nil {
		mem = fmt.Sprintf("%d", b)
	}
	mac := c.MAC
	if addr, err := c.HardwareAddr(); err == nil {
		mac = addr.String()
	}
	return []string{
		"VMCTL_NAME=" + c.Name,
		"VMCTL_DISK=" + c.Disk,
		"VMCTL_SEED=" + c.Seed,
		"VMCTL_EFI_STORE=" + c.EFIStore,
		"VMCTL_MACHINE_ID=" + c.MachineID,
		fmt.Sprintf("VMCTL_CPU=%d", c.CPU),
		"VMCTL_MEMORY=" + mem,
		"VMCTL_MAC=" + mac,
		"VMCTL_SSH_KEY=" + c.SSHKey,
		"VMCTL_SSH_USER=" + c.SSHUser,
		"VMCTL_DATA_DIR=" + c.DataDir,
		fmt.Sprintf("VMCTL_STOP_TIMEOUT_SECONDS=%d", c.StopTimeoutSeconds),
	}
}
