package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// BuiltinPrefix selects one of the embedded Go fonts, e.g. "builtin:bold".
const BuiltinPrefix = "builtin:"

var builtinFonts = map[string][]byte{
	"regular": goregular.TTF,
	"bold":    gobold.TTF,
	"mono":    gomono.TTF,
}

// alternates are tried when the configured font cannot be found.
var alternates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/Library/Fonts/Arial.ttf",
}

// FontCache resolves font names to parsed fonts. Parsed fonts are shared;
// faces are not safe for concurrent use, so Face returns a fresh one per
// call and the caller closes it.
type FontCache struct {
	dirs []string
	log  *logrus.Logger

	readFile func(string) ([]byte, error)

	mu     sync.Mutex
	parsed map[string]*opentype.Font // by requested name
}

// NewFontCache creates a cache that searches dirs for relative font names.
// log may be nil.
func NewFontCache(dirs []string, log *logrus.Logger) *FontCache {
	return &FontCache{
		dirs:     dirs,
		log:      log,
		readFile: os.ReadFile,
		parsed:   map[string]*opentype.Font{},
	}
}

// Face returns a new face for spec at 72 DPI, so the point size equals the
// pixel size on the receipt raster.
func (c *FontCache) Face(spec FontSpec) (font.Face, error) {
	if spec.Size <= 0 {
		return nil, fmt.Errorf("receipt: font size must be positive, got %v", spec.Size)
	}
	f, err := c.font(spec.Name)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    spec.Size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (c *FontCache) font(name string) (*opentype.Font, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.parsed[name]; ok {
		return f, nil
	}
	var lastErr error
	for _, cand := range c.candidates(name) {
		data, err := cand.load()
		if err != nil {
			lastErr = err
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			lastErr = fmt.Errorf("parse %s: %w", cand.src, err)
			continue
		}
		if cand.fallback && c.log != nil {
			c.log.WithFields(logrus.Fields{
				"module":   "receipt",
				"font":     name,
				"resolved": cand.src,
			}).Warn("font not found, using fallback")
		}
		c.parsed[name] = f
		return f, nil
	}
	return nil, fmt.Errorf("receipt: no usable font for %q: %w", name, lastErr)
}

type fontCandidate struct {
	src      string
	fallback bool
	load     func() ([]byte, error)
}

// candidates lists sources in priority order: the requested font, the
// known system alternates, then the embedded regular face.
func (c *FontCache) candidates(name string) []fontCandidate {
	var out []fontCandidate
	if key, ok := strings.CutPrefix(name, BuiltinPrefix); ok {
		if data, ok := builtinFonts[key]; ok {
			out = append(out, fontCandidate{src: name, load: func() ([]byte, error) { return data, nil }})
		}
	} else if name != "" {
		paths := []string{name}
		if !filepath.IsAbs(name) {
			for _, dir := range c.dirs {
				paths = append(paths, filepath.Join(dir, name))
			}
		}
		for _, p := range paths {
			out = append(out, c.fileCandidate(p, false))
		}
	}
	for _, p := range alternates {
		out = append(out, c.fileCandidate(p, true))
	}
	return append(out, fontCandidate{
		src:      BuiltinPrefix + "regular",
		fallback: true,
		load:     func() ([]byte, error) { return goregular.TTF, nil },
	})
}

func (c *FontCache) fileCandidate(path string, fallback bool) fontCandidate {
	return fontCandidate{
		src:      path,
		fallback: fallback,
		load:     func() ([]byte, error) { return c.readFile(path) },
	}
}
