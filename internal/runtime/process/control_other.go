//go:build !unix && !windows

package process

import (
	"fmt"
	goruntime "runtime"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

// Open is unsupported on this platform.
func (c *Control) Open(pid int32) (runtime.ProcessHandle, error) {
	return nil, fmt.Errorf("open pid %d: process control unsupported on %s: %w", pid, goruntime.GOOS, runtime.ErrPermissionDenied)
}
