// Package receipt lays out and rasterizes receipts: wrapped, aligned text
// blocks on a fixed-width monochrome canvas whose height grows with the
// content, optionally stacked above a photo.
package receipt

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/iliyamo/receipt-printer/internal/clock"
)

var (
	// ErrInvalidWidth is returned for a canvas width that is not positive.
	ErrInvalidWidth = errors.New("receipt: canvas width must be positive")
	// ErrInvalidPhoto is returned for photos that cannot be decoded or
	// have no pixels.
	ErrInvalidPhoto = errors.New("receipt: invalid photo")
	// ErrEmptyReceipt is returned when a request with zero margins has
	// nothing to draw, leaving a canvas with no rows.
	ErrEmptyReceipt = errors.New("receipt: nothing to print")
)

// SenderPrefix is prepended to the guest name under the title.
const SenderPrefix = "From: "

// Request is the per-call receipt content.
type Request struct {
	Title        string
	Lines        []string
	AddTimestamp bool
	Sender       string
}

// Composer renders receipts. It holds no per-request state and is safe
// for concurrent use.
type Composer struct {
	Fonts *FontCache
	Clock clock.Clock
}

// NewComposer returns a Composer using fonts and clk.
func NewComposer(fonts *FontCache, clk clock.Clock) *Composer {
	return &Composer{Fonts: fonts, Clock: clk}
}

type faceSet struct {
	title, text, time font.Face
}

func (f faceSet) Close() {
	for _, face := range []font.Face{f.title, f.text, f.time} {
		if face != nil {
			_ = face.Close()
		}
	}
}

func (c *Composer) openFaces(st Style) (faceSet, error) {
	var fs faceSet
	var err error
	if fs.title, err = c.Fonts.Face(st.TitleFont); err != nil {
		return fs, err
	}
	if fs.text, err = c.Fonts.Face(st.TextFont); err != nil {
		fs.Close()
		return faceSet{}, err
	}
	if fs.time, err = c.Fonts.Face(st.TimeFont); err != nil {
		fs.Close()
		return faceSet{}, err
	}
	return fs, nil
}

// drawOp is one text line or one filled rule positioned on the canvas.
type drawOp struct {
	face font.Face
	text string
	x, y int // top-left of the line box
	rule image.Rectangle
}

// plan is the result of the layout pass: what to draw and how tall the
// canvas has to be.
type plan struct {
	ops    []drawOp
	height int
}

// Render lays out req on a canvas width pixels wide and returns the
// rasterized receipt. The canvas height is exactly what the content uses.
func (c *Composer) Render(req Request, width int, st Style) (*image.Gray, error) {
	img, err := c.render(req, width, st)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dy() == 0 {
		return nil, ErrEmptyReceipt
	}
	return img, nil
}

// render is Render without the empty check; a photo header may be empty.
func (c *Composer) render(req Request, width int, st Style) (*image.Gray, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	faces, err := c.openFaces(st)
	if err != nil {
		return nil, err
	}
	defer faces.Close()

	p := layoutReceipt(req, width, st, faces, c.now)
	img := image.NewGray(image.Rect(0, 0, width, p.height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for _, op := range p.ops {
		if op.face == nil {
			draw.Draw(img, op.rule, image.Black, image.Point{}, draw.Src)
			continue
		}
		ascent, _ := faceMetrics(op.face)
		d := font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: op.face,
			Dot:  fixed.P(op.x, op.y+ascent),
		}
		d.DrawString(op.text)
	}
	return img, nil
}

func (c *Composer) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

func layoutReceipt(req Request, width int, st Style, faces faceSet, now func() time.Time) plan {
	var p plan
	y := st.MarginTop
	maxW := width - st.MarginLeft - st.MarginRight

	emit := func(text string, face font.Face, a Alignment) {
		x := Align(text, face, width, a, st.MarginLeft, st.MarginRight)
		p.ops = append(p.ops, drawOp{face: face, text: text, x: x, y: y})
		y += Advance(face, st.LineHeight)
	}

	if title := strings.TrimSpace(req.Title); title != "" {
		for _, ln := range Wrap(title, faces.title, maxW) {
			emit(ln, faces.title, st.AlignTitle)
		}
		if st.RuleAfterTitle {
			y += st.RulePad
			p.ops = append(p.ops, drawOp{rule: image.Rect(st.MarginLeft, y, width-st.MarginRight, y+st.RulePx)})
			y += st.RulePx + st.RulePad
		} else {
			y += st.GapTitleText
		}
	}

	if sender := strings.TrimSpace(req.Sender); sender != "" {
		emit(SenderPrefix+sender, faces.time, st.AlignTime)
	}

	if req.AddTimestamp {
		emit(TimestampText(now(), st), faces.time, st.AlignTime)
	}

	for _, raw := range req.Lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			y += Advance(faces.text, st.LineHeight)
			continue
		}
		for _, ln := range Wrap(line, faces.text, maxW) {
			emit(ln, faces.text, st.AlignText)
		}
	}

	p.height = y + st.MarginBottom
	return p
}

// TimestampText formats now for the receipt header. Date and hour are
// always shown; minutes appear when minutes or seconds are enabled.
func TimestampText(now time.Time, st Style) string {
	layout := "2006-01-02 15"
	if st.TimeShowMinutes || st.TimeShowSeconds {
		layout += ":04"
	}
	if st.TimeShowSeconds {
		layout += ":05"
	}
	return strings.TrimSpace(st.TimePrefix + now.Format(layout))
}

// ComposeWithPhoto renders a header (title, optional subtitle and sender,
// no timestamp) and stacks it directly above photo scaled to width.
func (c *Composer) ComposeWithPhoto(photo image.Image, width int, st Style, title, subtitle, sender string) (*image.Gray, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	body, err := NormalizePhoto(photo, width)
	if err != nil {
		return nil, err
	}

	var lines []string
	if s := strings.TrimSpace(subtitle); s != "" {
		lines = []string{s}
	}
	head, err := c.render(Request{Title: title, Lines: lines, Sender: sender}, width, st)
	if err != nil {
		return nil, err
	}

	hh := head.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, width, hh+body.Bounds().Dy()))
	draw.Draw(out, head.Bounds(), head, image.Point{}, draw.Src)
	draw.Draw(out, body.Bounds().Add(image.Pt(0, hh)), body, image.Point{}, draw.Src)
	return out, nil
}

// NormalizePhoto converts photo to grayscale and scales it to width,
// keeping the aspect ratio (height rounded to the nearest pixel).
func NormalizePhoto(photo image.Image, width int) (*image.Gray, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	if photo == nil {
		return nil, ErrInvalidPhoto
	}
	b := photo.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrInvalidPhoto, b.Dx(), b.Dy())
	}

	var src image.Image = imaging.Grayscale(photo)
	if b.Dx() != width {
		h := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
		if h < 1 {
			h = 1
		}
		src = imaging.Resize(src, width, h, imaging.Lanczos)
	}
	return toGray(src), nil
}

// DecodePhoto decodes an uploaded image (JPEG, PNG, GIF, BMP, TIFF),
// applying EXIF orientation.
func DecodePhoto(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhoto, err)
	}
	return img, nil
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	if g, ok := src.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
