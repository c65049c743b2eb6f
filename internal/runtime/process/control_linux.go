//go:build linux

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

type pidfdHandle struct {
	fd  int
	pid int32
}

// Open acquires a pidfd for pid. Kernels without pidfd support fall back to a
// signal based handle.
func (c *Control) Open(pid int32) (runtime.ProcessHandle, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, runtime.ErrProcessNotFound)
	}
	fd, err := unix.PidfdOpen(int(pid), 0)
	if err != nil {
		if errors.Is(err, unix.ENOSYS) {
			return openSignalHandle(pid)
		}
		return nil, classifyErrno(pid, err)
	}
	// pidfd_open performs no permission check; signal 0 does.
	if err := unix.PidfdSendSignal(fd, unix.Signal(0), nil, 0); err != nil {
		_ = unix.Close(fd)
		return nil, classifyErrno(pid, err)
	}
	return &pidfdHandle{fd: fd, pid: pid}, nil
}

func (h *pidfdHandle) Kill(uint32) error {
	if err := unix.PidfdSendSignal(h.fd, unix.SIGKILL, nil, 0); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("pid %d: %w", h.pid, runtime.ErrProcessNotFound)
		}
		return fmt.Errorf("%w: pid %d: %v", runtime.ErrKillFailed, h.pid, err)
	}
	return nil
}

func (h *pidfdHandle) Close() error {
	return unix.Close(h.fd)
}
