//go:build windows

package desktop

import (
	"fmt"
	"iter"
	stdruntime "runtime"
	"unicode"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

const (
	maxTitleLength = 512
	keyeventfKeyUp = 0x0002
	vkControl      = 0x11
	vkShift        = 0x10
	vkMenu         = 0x12
	vkLeftWindows  = 0x5B
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procFindWindowW = user32.NewProc("FindWindowW")
	procKeybdEvent  = user32.NewProc("keybd_event")

	// enumWindowsProc is created once; windows.NewCallback slots are a
	// limited resource.
	enumWindowsProc = windows.NewCallback(func(hwnd windows.HWND, lparam uintptr) uintptr {
		yield := *(*func(runtime.Window) bool)(unsafe.Pointer(lparam))
		if yield(runtime.Window(hwnd)) {
			return 1
		}
		return 0
	})
)

// Win32 drives the Windows window manager and input queue.
type Win32 struct{}

// New returns the host's window and keyboard surfaces.
func New() (runtime.WindowSurface, runtime.Keyboard) {
	return Win32{}, Win32{}
}

// Supported reports whether save attempts can reach real windows.
func Supported() bool {
	return true
}

func (Win32) Find(class, title string) (runtime.Window, bool) {
	var classPtr, titlePtr *uint16
	var err error
	if class != "" {
		if classPtr, err = windows.UTF16PtrFromString(class); err != nil {
			return 0, false
		}
	}
	if title != "" {
		if titlePtr, err = windows.UTF16PtrFromString(title); err != nil {
			return 0, false
		}
	}
	r, _, _ := procFindWindowW.Call(uintptr(unsafe.Pointer(classPtr)), uintptr(unsafe.Pointer(titlePtr)))
	if r == 0 {
		return 0, false
	}
	return runtime.Window(r), true
}

func (Win32) Windows() iter.Seq[runtime.Window] {
	return func(yield func(runtime.Window) bool) {
		// EnumWindows reports an error when the callback stops early.
		_ = windows.EnumWindows(enumWindowsProc, unsafe.Pointer(&yield))
		stdruntime.KeepAlive(&yield)
	}
}

func (Win32) Title(w runtime.Window) string {
	buf := make([]uint16, maxTitleLength)
	n, err := windows.GetWindowText(windows.HWND(w), &buf[0], int32(len(buf)))
	if err != nil || n <= 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

// Press resolves the key before touching the input queue so an unmappable
// key never leaves the modifier held down.
func (Win32) Press(c runtime.Chord) error {
	key, err := virtualKey(c.Key)
	if err != nil {
		return err
	}
	if vk, ok := modifierKey(c.Modifier); ok {
		keybdEvent(vk, 0)
	}
	keybdEvent(key, 0)
	return nil
}

// Release always lifts the modifier, even when the key cannot be mapped.
func (Win32) Release(c runtime.Chord) error {
	key, err := virtualKey(c.Key)
	if err == nil {
		keybdEvent(key, keyeventfKeyUp)
	}
	if vk, ok := modifierKey(c.Modifier); ok {
		keybdEvent(vk, keyeventfKeyUp)
	}
	return err
}

func keybdEvent(vk byte, flags uint32) {
	procKeybdEvent.Call(uintptr(vk), 0, uintptr(flags), 0)
}

func modifierKey(m runtime.Modifier) (byte, bool) {
	switch m {
	case runtime.ModControl:
		return vkControl, true
	case runtime.ModShift:
		return vkShift, true
	case runtime.ModAlt:
		return vkMenu, true
	case runtime.ModSuper:
		return vkLeftWindows, true
	default:
		return 0, false
	}
}

// virtualKey maps ASCII letters and digits to their virtual key codes, which
// equal the upper-case character code.
func virtualKey(r rune) (byte, error) {
	r = unicode.ToUpper(r)
	if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
		return byte(r), nil
	}
	return 0, fmt.Errorf("unsupported key %q", r)
}
