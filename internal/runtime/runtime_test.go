package runtime

import "testing"

func TestParseChord(t *testing.T) {
	tests := []struct {
		expr string
		want Chord
	}{
		{expr: "ctrl+s", want: SaveChord},
		{expr: "Control+S", want: SaveChord},
		{expr: "alt+f", want: Chord{Modifier: ModAlt, Key: 'f'}},
		{expr: "x", want: Chord{Key: 'x'}},
	}
	for _, tt := range tests {
		got, err := ParseChord(tt.expr)
		if err != nil {
			t.Fatalf("ParseChord(%q): %v", tt.expr, err)
		}
		if got != tt.want {
			t.Fatalf("ParseChord(%q) = %+v, want %+v", tt.expr, got, tt.want)
		}
	}

	for _, bad := range []string{"", "hyper+s", "ctrl+", "ctrl+shift+s", "ctrl+ss", "ctrl+;", "ctrl+é", "alt+ "} {
		if _, err := ParseChord(bad); err == nil {
			t.Fatalf("ParseChord(%q) expected error", bad)
		}
	}
}

func TestChordString(t *testing.T) {
	if got := SaveChord.String(); got != "Ctrl+s" {
		t.Fatalf("SaveChord.String() = %q", got)
	}
}
