//go:build linux

package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

func verifyProcessExe(pid int, binaryName string) (matched, available bool) {
	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return false, false
	}
	return filepath.Base(exe) == binaryName, true
}
