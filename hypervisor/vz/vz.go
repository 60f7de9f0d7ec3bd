// Package vz runs the guest on the macOS Virtualization.framework.
package vz

import "os"

// needsNewEFIStore reports whether the EFI variable store at path must be
// created rather than reopened. An existing store is reused so firmware
// NVRAM settings survive restarts.
func needsNewEFIStore(path string) bool {
	_, err := os.Stat(path)
	return os.IsNotExist(err)
}

// usableMachineID reports whether path holds a non-empty machine
// identifier blob. Truncated or cloned-empty files fail this check and
// the identifier is regenerated.
func usableMachineID(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}
