package process

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

// Control acquires terminate-capable process handles for the host platform.
type Control struct{}

// NewControl constructs the platform process control surface.
func NewControl() *Control {
	return &Control{}
}

// Exists reports whether pid is present in the OS process table.
func (c *Control) Exists(ctx context.Context, pid int32) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	return process.PidExistsWithContext(ctx, pid)
}

var _ runtime.ProcessControl = (*Control)(nil)
