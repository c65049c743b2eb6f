//go:build !windows

package desktop

import "github.com/Paintersrp/tasktide/internal/runtime"

// New returns the host's window and keyboard surfaces.
func New() (runtime.WindowSurface, runtime.Keyboard) {
	return Headless{}, Headless{}
}

// Supported reports whether save attempts can reach real windows.
func Supported() bool {
	return false
}
