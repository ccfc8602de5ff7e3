package receipt

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Alignment is the horizontal placement of a line inside the content box.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// ParseAlignment accepts left, center or right (case-insensitive).
func ParseAlignment(s string) (Alignment, error) {
	switch a := Alignment(strings.ToLower(strings.TrimSpace(s))); a {
	case AlignLeft, AlignCenter, AlignRight:
		return a, nil
	}
	return "", fmt.Errorf("receipt: unknown alignment %q", s)
}

// FontSpec names a font file (or family) and its point size.
type FontSpec struct {
	Name string  `json:"name"`
	Size float64 `json:"size"`
}

// Style is the immutable per-render layout configuration. Values are
// pixels unless stated otherwise.
type Style struct {
	Preset string `json:"preset"`

	TitleFont FontSpec `json:"title_font"`
	TextFont  FontSpec `json:"text_font"`
	TimeFont  FontSpec `json:"time_font"`

	MarginTop    int `json:"margin_top"`
	MarginBottom int `json:"margin_bottom"`
	MarginLeft   int `json:"margin_left"`
	MarginRight  int `json:"margin_right"`

	GapTitleText int     `json:"gap_title_text"`
	LineHeight   float64 `json:"line_height"` // multiplier applied to ascent+descent

	AlignTitle Alignment `json:"align_title"`
	AlignText  Alignment `json:"align_text"`
	AlignTime  Alignment `json:"align_time"`

	TimeShowMinutes bool   `json:"time_show_minutes"`
	TimeShowSeconds bool   `json:"time_show_seconds"`
	TimePrefix      string `json:"time_prefix"`

	RuleAfterTitle bool `json:"rule_after_title"`
	RulePx         int  `json:"rule_px"`
	RulePad        int  `json:"rule_pad"`
}

// DefaultFont is used for all three font slots unless overridden.
const DefaultFont = "DejaVuSans.ttf"

// DefaultStyle returns the built-in defaults (preset "clean").
func DefaultStyle() Style {
	return Style{
		Preset:          "clean",
		TitleFont:       FontSpec{Name: DefaultFont, Size: 36},
		TextFont:        FontSpec{Name: DefaultFont, Size: 28},
		TimeFont:        FontSpec{Name: DefaultFont, Size: 24},
		MarginTop:       28,
		MarginBottom:    18,
		MarginLeft:      18,
		MarginRight:     18,
		GapTitleText:    10,
		LineHeight:      1.15,
		AlignTitle:      AlignLeft,
		AlignText:       AlignLeft,
		AlignTime:       AlignLeft,
		TimeShowMinutes: true,
		RulePx:          1,
		RulePad:         6,
	}
}

// Presets maps a preset name to the field overrides it contributes on top
// of DefaultStyle. Keys use the same vocabulary as ResolveStyle.
var Presets = map[string]map[string]string{
	"clean": {},
	"compact": {
		"TITLE_SIZE":     "30",
		"TEXT_SIZE":      "24",
		"TIME_SIZE":      "20",
		"MARGIN_TOP":     "16",
		"MARGIN_BOTTOM":  "12",
		"MARGIN_LEFT":    "12",
		"MARGIN_RIGHT":   "12",
		"GAP_TITLE_TEXT": "6",
		"LINE_HEIGHT":    "1.05",
	},
	"bigtitle": {
		"TITLE_SIZE":       "52",
		"GAP_TITLE_TEXT":   "14",
		"RULE_AFTER_TITLE": "true",
	},
}

// StyleKeys lists every key ResolveStyle understands, in a stable order.
func StyleKeys() []string {
	keys := make([]string, 0, len(styleSetters)+1)
	keys = append(keys, "PRESET")
	for k := range styleSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys[1:])
	return keys
}

// NormalizeKey upper-cases k and strips an optional RECEIPT_ prefix so
// RECEIPT_TITLE_SIZE and title_size address the same field.
func NormalizeKey(k string) string {
	k = strings.ToUpper(strings.TrimSpace(k))
	return strings.TrimPrefix(k, "RECEIPT_")
}

// ResolveStyle builds a Style from built-in defaults, then the preset
// named by the PRESET override, then every explicit override.
func ResolveStyle(overrides map[string]string) (Style, error) {
	norm := make(map[string]string, len(overrides))
	for k, v := range overrides {
		norm[NormalizeKey(k)] = v
	}

	st := DefaultStyle()
	if name := strings.ToLower(strings.TrimSpace(norm["PRESET"])); name != "" {
		preset, ok := Presets[name]
		if !ok {
			return Style{}, fmt.Errorf("receipt: unknown preset %q", name)
		}
		st.Preset = name
		if err := applyOverrides(&st, preset); err != nil {
			return Style{}, err
		}
	}
	delete(norm, "PRESET")
	if err := applyOverrides(&st, norm); err != nil {
		return Style{}, err
	}
	if err := st.Validate(); err != nil {
		return Style{}, err
	}
	return st, nil
}

// Upper bounds a style may use. A receipt roll is a few hundred pixels
// wide, so anything past these is a typo that would blow up the canvas.
const (
	MaxSpacingPx  = 2000
	MaxFontSize   = 400
	MaxLineHeight = 10
)

// Validate rejects styles the composer cannot lay out.
func (s Style) Validate() error {
	for _, px := range []int{s.MarginTop, s.MarginBottom, s.MarginLeft, s.MarginRight} {
		if px < 0 || px > MaxSpacingPx {
			return fmt.Errorf("receipt: margins must be within 0..%d, got %d", MaxSpacingPx, px)
		}
	}
	if !finite(s.LineHeight) || s.LineHeight < 0 || s.LineHeight > MaxLineHeight {
		return fmt.Errorf("receipt: line height must be within 0..%d, got %v", MaxLineHeight, s.LineHeight)
	}
	for _, px := range []int{s.GapTitleText, s.RulePx, s.RulePad} {
		if px < 0 || px > MaxSpacingPx {
			return fmt.Errorf("receipt: spacing must be within 0..%d, got %d", MaxSpacingPx, px)
		}
	}
	for _, f := range []FontSpec{s.TitleFont, s.TextFont, s.TimeFont} {
		if !finite(f.Size) || f.Size <= 0 || f.Size > MaxFontSize {
			return fmt.Errorf("receipt: font size must be within (0, %d], got %v", MaxFontSize, f.Size)
		}
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func applyOverrides(st *Style, values map[string]string) error {
	// deterministic order keeps error messages stable
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, ok := styleSetters[k]
		if !ok {
			continue
		}
		if err := set(st, values[k]); err != nil {
			return fmt.Errorf("receipt: %s: %w", k, err)
		}
	}
	return nil
}

type styleSetter func(*Style, string) error

var styleSetters = map[string]styleSetter{
	"MARGIN_TOP":        intField(func(s *Style) *int { return &s.MarginTop }),
	"MARGIN_BOTTOM":     intField(func(s *Style) *int { return &s.MarginBottom }),
	"MARGIN_LEFT":       intField(func(s *Style) *int { return &s.MarginLeft }),
	"MARGIN_RIGHT":      intField(func(s *Style) *int { return &s.MarginRight }),
	"GAP_TITLE_TEXT":    intField(func(s *Style) *int { return &s.GapTitleText }),
	"RULE_PX":           intField(func(s *Style) *int { return &s.RulePx }),
	"RULE_PAD":          intField(func(s *Style) *int { return &s.RulePad }),
	"LINE_HEIGHT":       floatField(func(s *Style) *float64 { return &s.LineHeight }),
	"TITLE_SIZE":        floatField(func(s *Style) *float64 { return &s.TitleFont.Size }),
	"TEXT_SIZE":         floatField(func(s *Style) *float64 { return &s.TextFont.Size }),
	"TIME_SIZE":         floatField(func(s *Style) *float64 { return &s.TimeFont.Size }),
	"TITLE_FONT":        stringField(func(s *Style) *string { return &s.TitleFont.Name }),
	"TEXT_FONT":         stringField(func(s *Style) *string { return &s.TextFont.Name }),
	"TIME_FONT":         stringField(func(s *Style) *string { return &s.TimeFont.Name }),
	"TIME_PREFIX":       func(s *Style, v string) error { s.TimePrefix = v; return nil }, // verbatim, keeps the separator
	"RULE_AFTER_TITLE":  boolField(func(s *Style) *bool { return &s.RuleAfterTitle }),
	"TIME_SHOW_MINUTES": boolField(func(s *Style) *bool { return &s.TimeShowMinutes }),
	"TIME_SHOW_SECONDS": boolField(func(s *Style) *bool { return &s.TimeShowSeconds }),
	"ALIGN_TITLE":       alignField(func(s *Style) *Alignment { return &s.AlignTitle }),
	"ALIGN_TEXT":        alignField(func(s *Style) *Alignment { return &s.AlignText }),
	"ALIGN_TIME":        alignField(func(s *Style) *Alignment { return &s.AlignTime }),
}

func intField(ptr func(*Style) *int) styleSetter {
	return func(s *Style, v string) error {
		// the settings form posts numbers as "12" or "12.0"
		f, err := parseFinite(v)
		if err != nil {
			return err
		}
		if math.Abs(f) > math.MaxInt32 {
			return fmt.Errorf("%v out of range", f)
		}
		*ptr(s) = int(f)
		return nil
	}
}

func floatField(ptr func(*Style) *float64) styleSetter {
	return func(s *Style, v string) error {
		f, err := parseFinite(v)
		if err != nil {
			return err
		}
		*ptr(s) = f
		return nil
	}
}

// parseFinite parses a trimmed float and refuses NaN and infinities,
// which strconv accepts.
func parseFinite(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, err
	}
	if !finite(f) {
		return 0, fmt.Errorf("%q is not a finite number", v)
	}
	return f, nil
}

func stringField(ptr func(*Style) *string) styleSetter {
	return func(s *Style, v string) error {
		v = strings.TrimSpace(v)
		if v == "" {
			return fmt.Errorf("must not be empty")
		}
		*ptr(s) = v
		return nil
	}
}

func boolField(ptr func(*Style) *bool) styleSetter {
	return func(s *Style, v string) error {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on", "y", "t":
			*ptr(s) = true
		case "0", "false", "no", "off", "n", "f", "":
			*ptr(s) = false
		default:
			return fmt.Errorf("invalid boolean %q", v)
		}
		return nil
	}
}

func alignField(ptr func(*Style) *Alignment) styleSetter {
	return func(s *Style, v string) error {
		a, err := ParseAlignment(v)
		if err != nil {
			return err
		}
		*ptr(s) = a
		return nil
	}
}
