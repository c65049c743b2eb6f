package runtime

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrProcessNotFound reports that a pid no longer refers to a live process.
	ErrProcessNotFound = errors.New("process not found")
	// ErrPermissionDenied reports that a terminate-capable handle could not be
	// acquired because of insufficient privilege.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrKillFailed reports that the OS refused to terminate a process.
	ErrKillFailed = errors.New("terminate process failed")
)

// ProcessRecord is a single entry of a process snapshot.
type ProcessRecord struct {
	PID         int32
	Name        string
	CPUPercent  float64
	MemoryBytes uint64
	ExePath     string
}

// Snapshotter returns the full list of processes at one point in time. No
// ordering is guaranteed.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]ProcessRecord, error)
}

// ProcessHandle is a terminate-capable reference to a process. Close must be
// called exactly once regardless of the Kill outcome.
type ProcessHandle interface {
	Kill(exitCode uint32) error
	Close() error
}

// ProcessControl acquires terminate-capable handles.
type ProcessControl interface {
	// Exists reports whether pid still refers to a live process.
	Exists(ctx context.Context, pid int32) (bool, error)
	Open(pid int32) (ProcessHandle, error)
}

// Window is an opaque top-level window handle.
type Window uintptr

// WindowSurface exposes the OS window manager. Implementations touch global
// OS state and must not be called concurrently.
type WindowSurface interface {
	// Find returns a window matching the class and title exactly. Empty
	// arguments act as wildcards.
	Find(class, title string) (Window, bool)
	// Windows lazily enumerates top-level windows in OS-defined order.
	Windows() iter.Seq[Window]
	// Title returns the window's title text.
	Title(w Window) string
}

// Modifier identifies a keyboard modifier.
type Modifier int

const (
	ModNone Modifier = iota
	ModControl
	ModShift
	ModAlt
	ModSuper
)

// Chord is a modifier plus key combination such as Ctrl+S.
type Chord struct {
	Modifier Modifier
	Key      rune
}

// SaveChord is the platform's standard save shortcut.
var SaveChord = Chord{Modifier: ModControl, Key: 's'}

func (c Chord) String() string {
	prefix := ""
	switch c.Modifier {
	case ModControl:
		prefix = "Ctrl+"
	case ModShift:
		prefix = "Shift+"
	case ModAlt:
		prefix = "Alt+"
	case ModSuper:
		prefix = "Super+"
	}
	return prefix + string(c.Key)
}

// Keyboard injects synthetic input into the shared OS input queue. Input is
// delivered to whichever window currently holds focus.
type Keyboard interface {
	Press(c Chord) error
	Release(c Chord) error
}
