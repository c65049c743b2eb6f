package runtime

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ParseChord parses expressions such as "ctrl+s" or "Alt+F". Keys are limited
// to ASCII letters and digits.
func ParseChord(expr string) (Chord, error) {
	parts := strings.Split(strings.TrimSpace(expr), "+")
	if len(parts) == 0 || len(parts) > 2 {
		return Chord{}, fmt.Errorf("invalid key chord %q", expr)
	}

	var chord Chord
	keyPart := parts[len(parts)-1]
	if len(parts) == 2 {
		switch strings.ToLower(strings.TrimSpace(parts[0])) {
		case "ctrl", "control":
			chord.Modifier = ModControl
		case "shift":
			chord.Modifier = ModShift
		case "alt":
			chord.Modifier = ModAlt
		case "super", "cmd", "win":
			chord.Modifier = ModSuper
		default:
			return Chord{}, fmt.Errorf("invalid key chord %q: unknown modifier %q", expr, parts[0])
		}
	}

	keyPart = strings.ToLower(strings.TrimSpace(keyPart))
	if utf8.RuneCountInString(keyPart) != 1 {
		return Chord{}, fmt.Errorf("invalid key chord %q: key must be a single character", expr)
	}
	chord.Key, _ = utf8.DecodeRuneInString(keyPart)
	if !isChordKey(chord.Key) {
		return Chord{}, fmt.Errorf("invalid key chord %q: key must be a letter or digit", expr)
	}
	return chord, nil
}

// isChordKey reports whether r maps to a virtual key on every platform.
func isChordKey(r rune) bool {
	return ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')
}
