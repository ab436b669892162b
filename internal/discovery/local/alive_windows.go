//go:build windows

package local

import (
	"errors"

	"golang.org/x/sys/windows"
)

// stillActive GetExitCodeProcess 对运行中进程返回的退出码
const stillActive = 259

// processAlive 能打开进程句柄且尚未退出即视为存活
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	defer func() { _ = windows.CloseHandle(h) }()

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return true
	}
	return code == stillActive
}
