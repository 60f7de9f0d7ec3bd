package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfigFile is where persistent overrides live, inside DataDir.
func (c *Config) ConfigFile() string { return filepath.Join(c.DataDir, "config.json") }

// DefaultConfigFile locates the config file before the configuration
// is resolved. Only VMCTL_DATA_DIR can move it; the file itself cannot
// relocate the directory it lives in.
func DefaultConfigFile() string {
	if dir := os.Getenv("VMCTL_DATA_DIR"); dir != "" {
		return filepath.Join(dir, "config.json")
	}
	return DefaultConfig().ConfigFile()
}

// Keys lists every key accepted in the config file and by
// `vmctl config --set`.
var Keys = []string{
	"name", "disk", "seed", "efi_store", "machine_id",
	"cpu", "memory", "mac",
	"user_data", "meta_data",
	"ssh_key", "ssh_user",
	"image", "image_url",
	"data_dir", "stop_timeout_seconds",
}

func isKey(k string) bool {
	for _, known := range Keys {
		if k == known {
			return true
		}
	}
	return false
}

// LoadOverrides reads the config file into a key/value map. A missing
// file yields an empty map.
func LoadOverrides(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return m, nil
}

// SetOverride stores key=value in the config file, creating it when
// needed. Integer fields are coerced so the stored JSON carries real
// numbers.
func SetOverride(path, key, value string) error {
	if !isKey(key) {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	m, err := LoadOverrides(path)
	if err != nil {
		return err
	}

	var v any = value
	switch key {
	case "cpu", "stop_timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, value)
		}
		v = n
	}
	m[key] = v

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ResetOverrides deletes the config file. Already gone is fine.
func ResetOverrides(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove config %s: %w", path, err)
	}
	return nil
}
