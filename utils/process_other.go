//go:build !linux && !darwin

package utils

func verifyProcessExe(_ int, _ string) (matched, available bool) {
	return false, false
}
