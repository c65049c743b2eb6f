// Package window locates a live top-level window belonging to a process,
// given only the process's display name.
package window

import (
	"iter"
	"strings"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

// Strategy identifies which discovery step produced a match.
type Strategy string

const (
	StrategyNone      Strategy = ""
	StrategyClass     Strategy = "class"
	StrategyTitle     Strategy = "title"
	StrategyEnumerate Strategy = "enumerate"
)

// ClassTable maps a process name to its application's top-level window class.
type ClassTable interface {
	WindowClass(name string) (string, bool)
}

// Finder runs the discovery heuristics against a window surface.
type Finder struct {
	surface runtime.WindowSurface
	classes ClassTable
}

// NewFinder constructs a Finder. A nil class table skips the class lookup.
func NewFinder(surface runtime.WindowSurface, classes ClassTable) *Finder {
	return &Finder{surface: surface, classes: classes}
}

// Locate returns the first window found by, in order: the window class
// registered for the upper-cased name, an exact title match on the name, and a
// case-insensitive title substring scan over all top-level windows. Finding
// nothing is a valid outcome.
func (f *Finder) Locate(name string) (runtime.Window, Strategy, bool) {
	if f == nil || f.surface == nil || name == "" {
		return 0, StrategyNone, false
	}

	if f.classes != nil {
		if class, ok := f.classes.WindowClass(strings.ToUpper(name)); ok {
			if w, ok := f.surface.Find(class, ""); ok {
				return w, StrategyClass, true
			}
		}
	}

	if w, ok := f.surface.Find("", name); ok {
		return w, StrategyTitle, true
	}

	needle := strings.ToLower(name)
	w, ok := First(f.surface.Windows(), func(w runtime.Window) bool {
		return strings.Contains(strings.ToLower(f.surface.Title(w)), needle)
	})
	if ok {
		return w, StrategyEnumerate, true
	}
	return 0, StrategyNone, false
}

// First returns the first element of seq that satisfies match.
func First[T any](seq iter.Seq[T], match func(T) bool) (T, bool) {
	for v := range seq {
		if match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
