package process

import (
	"os"

	"github.com/Paintersrp/tasktide/internal/task"
)

// ExecutableIcons resolves icon references by executable path. The reference
// is the path itself; rendering the bitmap is left to the presentation layer.
type ExecutableIcons struct {
	stat func(string) (os.FileInfo, error)
}

// NewExecutableIcons constructs an icon resolver backed by the filesystem.
func NewExecutableIcons() *ExecutableIcons {
	return &ExecutableIcons{stat: os.Stat}
}

// ResolveIcon returns a reference for exePath when the executable exists.
func (r *ExecutableIcons) ResolveIcon(exePath string) (task.Icon, bool) {
	if exePath == "" {
		return task.Icon{}, false
	}
	info, err := r.stat(exePath)
	if err != nil || info.IsDir() {
		return task.Icon{}, false
	}
	return task.Icon{Ref: exePath}, true
}
