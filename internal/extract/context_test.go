package extract

import (
	"strings"
	"testing"
)

func TestContextWindowClipsToBoundaries(t *testing.T) {
	text := "short"
	if got := contextFor(text, spanOf(0, 5), 50); got != "short" {
		t.Fatalf("got %q", got)
	}
}

func TestContextWindowSlicesBothSides(t *testing.T) {
	text := strings.Repeat("a", 60) + "XYZ" + strings.Repeat("b", 60)
	got := contextFor(text, spanOf(60, 63), 10)
	want := strings.Repeat("a", 10) + "XYZ" + strings.Repeat("b", 10)
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestContextZeroWindow(t *testing.T) {
	if got := contextFor("anything", spanOf(0, 3), 0); got != "" {
		t.Fatalf("zero window must yield no context, got %q", got)
	}
}

func TestContextNeverSplitsRunes(t *testing.T) {
	// é is two bytes; a byte-based slice of width 3 would cut one in half.
	text := "ééééé date ééééé"
	start := strings.Index(text, "date")
	got := contextFor(text, spanOf(start, start+4), 3)
	if !strings.Contains(got, "date") {
		t.Fatalf("got %q", got)
	}
	for _, r := range got {
		if r == '�' {
			t.Fatalf("context contains a broken rune: %q", got)
		}
	}
	if got != "éé date éé" {
		t.Fatalf("window must count characters, not bytes: %q", got)
	}
}

func TestContextTrimsSurroundingSpace(t *testing.T) {
	text := "word     target     word"
	start := strings.Index(text, "target")
	got := contextFor(text, spanOf(start, start+6), 3)
	if got != "target" {
		t.Fatalf("got %q", got)
	}
}
