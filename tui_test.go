package main

import (
	"testing"
	"unicode/utf8"
)

func TestWrapTextBreaksOnSpaces(t *testing.T) {
	lines := wrapText("the quick brown fox", 10)
	want := []string{"the quick", "brown fox"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWrapTextKeepsRunesIntact(t *testing.T) {
	// No space within width forces a hard split; it must land on a rune
	// boundary, not inside a multibyte sequence.
	text := "привет мир это длинное слово"
	for _, width := range []int{3, 5, 8} {
		for _, line := range wrapText(text, width) {
			if !utf8.ValidString(line) {
				t.Fatalf("width %d produced invalid UTF-8 line %q", width, line)
			}
			if got := len([]rune(line)); got > width {
				t.Errorf("width %d line %q has %d runes", width, line, got)
			}
		}
	}
}

func TestWrapTextEdgeInputs(t *testing.T) {
	if lines := wrapText("", 20); len(lines) != 1 || lines[0] != "" {
		t.Errorf("empty input = %v", lines)
	}
	if lines := wrapText("ab", 0); len(lines) != 2 {
		t.Errorf("zero width should degrade to one rune per line, got %v", lines)
	}
}
