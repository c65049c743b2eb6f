//go:build unix && !linux

package process

import (
	"fmt"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

// Open verifies pid can be signalled and returns a handle remembering it.
func (c *Control) Open(pid int32) (runtime.ProcessHandle, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, runtime.ErrProcessNotFound)
	}
	return openSignalHandle(pid)
}
