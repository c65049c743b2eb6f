package desktop

import (
	"testing"

	"github.com/Paintersrp/tasktide/internal/runtime"
)

func TestHeadlessSurfaceFindsNothing(t *testing.T) {
	var h Headless
	if _, ok := h.Find("OpusApp", ""); ok {
		t.Fatalf("expected headless surface to find no windows")
	}
	count := 0
	for range h.Windows() {
		count++
	}
	if count != 0 {
		t.Fatalf("expected no enumerated windows, got %d", count)
	}
	if err := h.Press(runtime.SaveChord); err != nil {
		t.Fatalf("press: %v", err)
	}
	if err := h.Release(runtime.SaveChord); err != nil {
		t.Fatalf("release: %v", err)
	}
}
