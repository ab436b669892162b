//go:build !windows

package local

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive 用 0 号信号探测进程是否存在
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
