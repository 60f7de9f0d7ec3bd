//go:build darwin

package utils

import (
	"github.com/shirou/gopsutil/v4/process"
)

func verifyProcessExe(pid int, binaryName string) (matched, available bool) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false, false
	}
	name, err := proc.Name()
	if err != nil {
		return false, false
	}
	return name == binaryName, true
}
