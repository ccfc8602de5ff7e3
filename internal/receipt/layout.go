package receipt

import (
	"math"
	"strings"

	"golang.org/x/image/font"
)

// Measure returns the advance width of text in whole pixels. The string
// is measured as a unit so kerning pairs are honoured.
func Measure(text string, face font.Face) int {
	return font.MeasureString(face, text).Round()
}

// Wrap greedily packs the words of text into lines no wider than
// maxWidth. A word that alone exceeds maxWidth is emitted as its own
// overflowing line rather than split. Empty input yields one empty line.
func Wrap(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		candidate := cur + " " + w
		if Measure(candidate, face) <= maxWidth {
			cur = candidate
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}

// Align returns the x offset at which text starts for the given alignment.
func Align(text string, face font.Face, canvasWidth int, a Alignment, marginLeft, marginRight int) int {
	w := Measure(text, face)
	switch a {
	case AlignRight:
		return canvasWidth - marginRight - w
	case AlignCenter:
		usable := canvasWidth - marginLeft - marginRight
		free := usable - w
		if free < 0 {
			free = 0
		}
		return marginLeft + free/2
	default:
		return marginLeft
	}
}

// Advance is the vertical step after one line drawn with face.
func Advance(face font.Face, lineHeight float64) int {
	ascent, descent := faceMetrics(face)
	return int(math.Round(float64(ascent+descent) * lineHeight))
}

// faceMetrics returns ascent and descent rounded up to whole pixels.
func faceMetrics(face font.Face) (int, int) {
	m := face.Metrics()
	return m.Ascent.Ceil(), m.Descent.Ceil()
}
