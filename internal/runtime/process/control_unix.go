//go:build unix

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

// signalHandle remembers a pid that was verified to be signalable at Open.
type signalHandle struct {
	pid int32
}

func openSignalHandle(pid int32) (runtime.ProcessHandle, error) {
	if err := unix.Kill(int(pid), 0); err != nil {
		return nil, classifyErrno(pid, err)
	}
	return &signalHandle{pid: pid}, nil
}

func (h *signalHandle) Kill(uint32) error {
	if err := unix.Kill(int(h.pid), unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("pid %d: %w", h.pid, runtime.ErrProcessNotFound)
		}
		return fmt.Errorf("%w: pid %d: %v", runtime.ErrKillFailed, h.pid, err)
	}
	return nil
}

func (h *signalHandle) Close() error {
	return nil
}

func classifyErrno(pid int32, err error) error {
	switch {
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("pid %d: %w", pid, runtime.ErrProcessNotFound)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("pid %d: %w", pid, runtime.ErrPermissionDenied)
	default:
		return fmt.Errorf("open pid %d: %w", pid, err)
	}
}
