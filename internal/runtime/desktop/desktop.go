// Package desktop exposes the window manager and keyboard injection surfaces
// used for save attempts. Only Windows has a real implementation; other
// platforms get a headless surface that never finds a window, which makes the
// termination protocol skip straight to the kill.
package desktop

import (
	"iter"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

// Headless is a window surface without windows and a keyboard that drops all
// input.
type Headless struct{}

var (
	_ runtime.WindowSurface = Headless{}
	_ runtime.Keyboard      = Headless{}
)

func (Headless) Find(string, string) (runtime.Window, bool) { return 0, false }

func (Headless) Windows() iter.Seq[runtime.Window] {
	return func(func(runtime.Window) bool) {}
}

func (Headless) Title(runtime.Window) string { return "" }

func (Headless) Press(runtime.Chord) error { return nil }

func (Headless) Release(runtime.Chord) error { return nil }
