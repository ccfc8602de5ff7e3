package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// threshold is the luminance below which a pixel prints black.
const threshold = 128

var bilevel = color.Palette{color.Gray{Y: 0}, color.Gray{Y: 0xff}}

// Threshold reduces img to strict black and white. A two-entry palette
// makes the PNG encoder emit a 1-bit image.
func Threshold(img image.Image) *image.Paletted {
	b := img.Bounds()
	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), bilevel)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := (y - b.Min.Y) * out.Stride
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y >= threshold {
				out.Pix[row+x-b.Min.X] = 1
			}
		}
	}
	return out
}

// EncodePNG returns the thresholded image as a maximally compressed PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("receipt: nothing to encode")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Threshold(img), imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("receipt: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode returns the base64 text of EncodePNG, the payload handed to the
// delivery sink.
func Encode(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
