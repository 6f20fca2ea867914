// Package text renders strings with bitmap faces onto any draw.Image.
//
// The origin of a string is its left edge; its vertical meaning is chosen
// by a Baseline. Anything outside the target image is clipped.
package text

import (
	"fmt"
	"github.com/jypelle/oledhello/internal/fault"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"image"
	"image/color"
	"image/draw"
	"reflect"
	"strings"
)

// Baseline is the vertical anchor of the origin.
type Baseline int

const (
	// Top puts the first pixel row of the text cell at the origin.
	Top Baseline = iota
	// Middle centers the text cell on the origin.
	Middle
	// Bottom puts the last pixel row of the text cell at the origin.
	Bottom
	// Alphabetic puts the last row of an upper case letter at the origin.
	Alphabetic
)

var baselineNames = []string{"top", "middle", "bottom", "alphabetic"}

func (b Baseline) String() string {
	if b < 0 || int(b) >= len(baselineNames) {
		return fmt.Sprintf("Baseline(%d)", int(b))
	}
	return baselineNames[b]
}

// ParseBaseline is the inverse of Baseline.String.
func ParseBaseline(s string) (Baseline, error) {
	for i, name := range baselineNames {
		if strings.EqualFold(s, name) {
			return Baseline(i), nil
		}
	}
	return Top, fmt.Errorf("unknown baseline %q", s)
}

// Replacement is drawn for runes the face does not cover.
const Replacement = '?'

// Style is a face and the colors to draw it with. A nil BackgroundColor
// leaves the pixels around the glyphs untouched.
type Style struct {
	Face            font.Face
	TextColor       color.Color
	BackgroundColor color.Color
}

// NewStyle returns a transparent style.
func NewStyle(face font.Face, textColor color.Color) Style {
	return Style{Face: face, TextColor: textColor}
}

// WithBackground returns s filling the text cells with c.
func (s Style) WithBackground(c color.Color) Style {
	s.BackgroundColor = c
	return s
}

func (s Style) validate() error {
	if s.Face == nil || isNilPointer(s.Face) {
		return fault.New(fault.InvalidConfig, "text: style", "no face")
	}
	if s.TextColor == nil {
		return fault.New(fault.InvalidConfig, "text: style", "no text color")
	}
	return nil
}

func isNilPointer(face font.Face) bool {
	v := reflect.ValueOf(face)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Draw renders s at origin and returns the origin following the last
// character. Line feeds restart at origin.X one line lower.
func Draw(dst draw.Image, s string, origin image.Point, style Style, baseline Baseline) (image.Point, error) {
	if err := style.validate(); err != nil {
		return origin, err
	}
	m := style.Face.Metrics()
	offset := dotOffset(m, baseline)
	lineHeight := m.Height.Ceil()

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(style.TextColor),
		Face: style.Face,
	}
	var bg image.Image
	if style.BackgroundColor != nil {
		bg = image.NewUniform(style.BackgroundColor)
	}

	y := origin.Y
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			y += lineHeight
		}
		line = covered(style.Face, line)
		d.Dot = fixed.P(origin.X, y+offset)
		if bg != nil {
			cell := image.Rect(
				origin.X, y+offset-m.Ascent.Ceil(),
				origin.X+d.MeasureString(line).Ceil(), y+offset+m.Descent.Ceil(),
			)
			draw.Draw(dst, cell, bg, image.Point{}, draw.Src)
		}
		d.DrawString(line)
	}
	return image.Pt(d.Dot.X.Round(), y), nil
}

// Bounds returns the cell Draw would cover, clipping aside.
func Bounds(s string, origin image.Point, style Style, baseline Baseline) (image.Rectangle, error) {
	if err := style.validate(); err != nil {
		return image.Rectangle{}, err
	}
	m := style.Face.Metrics()
	offset := dotOffset(m, baseline)
	lines := strings.Split(s, "\n")
	width := 0
	for _, line := range lines {
		if w := font.MeasureString(style.Face, covered(style.Face, line)).Ceil(); w > width {
			width = w
		}
	}
	top := origin.Y + offset - m.Ascent.Ceil()
	bottom := origin.Y + (len(lines)-1)*m.Height.Ceil() + offset + m.Descent.Ceil()
	return image.Rect(origin.X, top, origin.X+width, bottom), nil
}

// dotOffset is the distance from the origin to the font baseline.
func dotOffset(m font.Metrics, baseline Baseline) int {
	ascent := m.Ascent.Ceil()
	height := ascent + m.Descent.Ceil()
	switch baseline {
	case Middle:
		return ascent - (height-1)/2
	case Bottom:
		return ascent - height + 1
	case Alphabetic:
		return 1
	}
	return ascent
}

func covered(face font.Face, s string) string {
	return strings.Map(func(r rune) rune {
		if _, _, _, _, ok := face.Glyph(fixed.Point26_6{}, r); !ok {
			return Replacement
		}
		return r
	}, s)
}
