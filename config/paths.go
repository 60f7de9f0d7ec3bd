package config

import (
	"path/filepath"

	"github.com/vmctl-dev/vmctl/utils"
)

// Derived path helpers. Registry and per-VM runtime state live under
// {DataDir}/run, logs under {DataDir}/log.

func (c *Config) RunDir() string { return filepath.Join(c.DataDir, "run") }
func (c *Config) LogDir() string { return filepath.Join(c.DataDir, "log") }

// IndexFile and IndexLock are the registry store paths.
func (c *Config) IndexFile() string { return filepath.Join(c.RunDir(), "vms.json") }
func (c *Config) IndexLock() string { return filepath.Join(c.RunDir(), "vms.lock") }

// Runtime paths (per VM, ephemeral).

func (c *Config) VMRunDir(name string) string      { return filepath.Join(c.RunDir(), name) }
func (c *Config) VMPIDFile(name string) string     { return filepath.Join(c.VMRunDir(name), "vm.pid") }
func (c *Config) VMConsoleSock(name string) string { return filepath.Join(c.VMRunDir(name), "console.sock") }

// Log paths (per VM).

func (c *Config) VMLogDir(name string) string     { return filepath.Join(c.LogDir(), name) }
func (c *Config) VMSerialLog(name string) string  { return filepath.Join(c.VMLogDir(name), "serial.log") }
func (c *Config) VMProcessLog(name string) string { return filepath.Join(c.VMLogDir(name), "vmctl.log") }

// EnsureDirs creates the static state directories.
func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(
		c.RunDir(),
		c.LogDir(),
	)
}

// EnsureVMDirs creates per-VM runtime and log directories.
// Called when a guest is launched.
func (c *Config) EnsureVMDirs(name string) error {
	return utils.EnsureDirs(
		c.VMRunDir(name),
		c.VMLogDir(name),
	)
}
