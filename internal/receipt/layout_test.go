package receipt

import (
	"strings"
	"testing"

	"golang.org/x/image/font"
)

func testFace(t *testing.T, size float64) font.Face {
	t.Helper()
	face, err := NewFontCache(nil, nil).Face(FontSpec{Name: BuiltinPrefix + "regular", Size: size})
	if err != nil {
		t.Fatalf("Face: %v", err)
	}
	t.Cleanup(func() { _ = face.Close() })
	return face
}

func TestWrapEmptyYieldsOneEmptyLine(t *testing.T) {
	face := testFace(t, 24)
	for _, in := range []string{"", "   ", "\t\n"} {
		lines := Wrap(in, face, 100)
		if len(lines) != 1 || lines[0] != "" {
			t.Fatalf("Wrap(%q) = %q, want one empty line", in, lines)
		}
	}
}

func TestWrapKeepsLinesWithinWidth(t *testing.T) {
	face := testFace(t, 24)
	text := "the quick brown fox jumps over the lazy dog and keeps on running"
	lines := Wrap(text, face, 200)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %q", lines)
	}
	for _, ln := range lines {
		if strings.Contains(ln, " ") && Measure(ln, face) > 200 {
			t.Fatalf("multi-word line %q is %dpx wide, limit 200", ln, Measure(ln, face))
		}
	}
}

func TestWrapNeverSplitsWordsAndRoundTrips(t *testing.T) {
	face := testFace(t, 28)
	text := "  Wasser   trinken\tSchriftstelle lesen Sport zwanzig Minuten  "
	words := strings.Fields(text)
	widest := 0
	for _, w := range words {
		if m := Measure(w, face); m > widest {
			widest = m
		}
	}
	for _, limit := range []int{widest, widest + 17, 2 * widest, 10000} {
		lines := Wrap(text, face, limit)
		var got []string
		for _, ln := range lines {
			got = append(got, strings.Fields(ln)...)
		}
		if strings.Join(got, " ") != strings.Join(words, " ") {
			t.Fatalf("limit %d: words changed: %q", limit, lines)
		}
		if strings.Join(lines, " ") != strings.Join(words, " ") {
			t.Fatalf("limit %d: lines do not rejoin to normalized text: %q", limit, lines)
		}
	}
}

func TestWrapOverlongWordStandsAlone(t *testing.T) {
	face := testFace(t, 24)
	lines := Wrap("a Donaudampfschifffahrtsgesellschaft b", face, 40)
	want := []string{"a", "Donaudampfschifffahrtsgesellschaft", "b"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("Wrap = %q, want %q", lines, want)
	}
}

func TestAlign(t *testing.T) {
	face := testFace(t, 24)
	const width, ml, mr = 576, 18, 22

	if x := Align("hello", face, width, AlignLeft, ml, mr); x != ml {
		t.Fatalf("left: got %d, want %d", x, ml)
	}

	for _, text := range []string{"x", "hello world", strings.Repeat("wide ", 40)} {
		x := Align(text, face, width, AlignCenter, ml, mr)
		if x < ml {
			t.Fatalf("center %q: offset %d is left of margin %d", text, x, ml)
		}
	}

	text := "right edge"
	x := Align(text, face, width, AlignRight, ml, mr)
	edge := x + Measure(text, face)
	if d := edge - (width - mr); d < -1 || d > 1 {
		t.Fatalf("right edge at %d, want %d", edge, width-mr)
	}
}

func TestAdvanceScalesWithLineHeight(t *testing.T) {
	face := testFace(t, 30)
	ascent, descent := faceMetrics(face)
	if got := Advance(face, 1); got != ascent+descent {
		t.Fatalf("Advance(1) = %d, want %d", got, ascent+descent)
	}
	if got := Advance(face, 0); got != 0 {
		t.Fatalf("Advance(0) = %d, want 0", got)
	}
	if a, b := Advance(face, 1.0), Advance(face, 1.5); b <= a {
		t.Fatalf("Advance(1.5)=%d should exceed Advance(1)=%d", b, a)
	}
}
