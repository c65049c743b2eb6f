//go:build windows

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

const stillActive = 259

type windowsHandle struct {
	h   windows.Handle
	pid int32
}

// Open acquires a PROCESS_TERMINATE handle for pid.
func (c *Control) Open(pid int32) (runtime.ProcessHandle, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, runtime.ErrProcessNotFound)
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		switch {
		case errors.Is(err, windows.ERROR_ACCESS_DENIED):
			return nil, fmt.Errorf("pid %d: %w", pid, runtime.ErrPermissionDenied)
		case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
			return nil, fmt.Errorf("pid %d: %w", pid, runtime.ErrProcessNotFound)
		default:
			return nil, fmt.Errorf("open pid %d: %w", pid, err)
		}
	}
	if h == 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, runtime.ErrPermissionDenied)
	}
	return &windowsHandle{h: h, pid: pid}, nil
}

func (h *windowsHandle) Kill(exitCode uint32) error {
	if err := windows.TerminateProcess(h.h, exitCode); err != nil {
		// Terminating a process that already exited fails with access denied.
		var code uint32
		if windows.GetExitCodeProcess(h.h, &code) == nil && code != stillActive {
			return fmt.Errorf("pid %d: %w", h.pid, runtime.ErrProcessNotFound)
		}
		return fmt.Errorf("%w: pid %d: %v", runtime.ErrKillFailed, h.pid, err)
	}
	return nil
}

func (h *windowsHandle) Close() error {
	return windows.CloseHandle(h.h)
}
