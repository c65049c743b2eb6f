package apps

import "testing"

func TestShouldAttemptSave(t *testing.T) {
	c := NewCatalog()

	tests := map[string]bool{
		"WINWORD.EXE":        true,
		"winword.exe":        true,
		"Code.exe":           true,
		"VSCode.exe":         true,
		"chrome.exe":         true,
		"blender.exe":        true,
		"svchost.exe":        false,
		"explorer.exe":       false,
		"":                   false,
		"System Idle":        false,
		"pycharm64.exe":      true,
		"github desktop.exe": true,
	}

	for name, want := range tests {
		if got := c.ShouldAttemptSave(name); got != want {
			t.Errorf("ShouldAttemptSave(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestCatalogSize(t *testing.T) {
	c := NewCatalog()
	if c.Size() != 58 {
		t.Fatalf("expected 58 distinct built-in entries, got %d", c.Size())
	}
}

func TestWithSaveCapableExtendsCatalog(t *testing.T) {
	c := NewCatalog(WithSaveCapable("obsidian.exe", "  "))
	if !c.ShouldAttemptSave("Obsidian.exe") {
		t.Fatalf("expected custom entry to be honoured")
	}
	cat, ok := c.Category("OBSIDIAN.EXE")
	if !ok || cat != "custom" {
		t.Fatalf("Category() = %q, %v", cat, ok)
	}
}

func TestWindowClass(t *testing.T) {
	c := NewCatalog(WithWindowClasses(map[string]string{"sumatrapdf.exe": "SUMATRA_PDF_FRAME"}))

	if class, ok := c.WindowClass("winword.exe"); !ok || class != "OpusApp" {
		t.Fatalf("WindowClass(winword.exe) = %q, %v", class, ok)
	}
	if class, ok := c.WindowClass("SumatraPDF.exe"); !ok || class != "SUMATRA_PDF_FRAME" {
		t.Fatalf("WindowClass(SumatraPDF.exe) = %q, %v", class, ok)
	}
	if _, ok := c.WindowClass("chrome.exe"); ok {
		t.Fatalf("expected no class for chrome.exe")
	}

	classes := c.WindowClasses()
	classes["WINWORD.EXE"] = "mutated"
	if class, _ := c.WindowClass("WINWORD.EXE"); class != "OpusApp" {
		t.Fatalf("WindowClasses must return a copy")
	}
}
