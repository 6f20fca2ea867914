package text

import (
	_ "embed"
	"fmt"
	"github.com/hajimehoshi/bitmapfont/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"image"
	"strconv"
	"strings"
)

//go:embed font6x10.txt
var font6x10File string

// Face6x10 is a 6x10 monospace face covering printable ASCII, 8 pixels
// above the baseline and 2 below.
var Face6x10 = mustParseGlyphs(font6x10File, 6, 10, 8)

func mustParseGlyphs(data string, width, height, ascent int) *basicfont.Face {
	face, err := parseGlyphs(data, width, height, ascent)
	if err != nil {
		logrus.Panicf("Can't load %dx%d font: %v", width, height, err)
	}
	return face
}

// FaceByName returns one of the built-in faces.
func FaceByName(name string) (font.Face, error) {
	switch name {
	case "6x10":
		return Face6x10, nil
	case "7x13":
		return basicfont.Face7x13, nil
	case "bitmap":
		return bitmapfont.Face, nil
	}
	return nil, fmt.Errorf("unknown font %q", name)
}

// parseGlyphs builds a face from a glyph table: one glyph per line, the
// hexadecimal code point followed by one hexadecimal byte per row. Bit 7 is
// the leftmost column. Code points must be ascending.
func parseGlyphs(data string, width, height, ascent int) (*basicfont.Face, error) {
	if width < 1 || width > 8 || ascent > height {
		return nil, fmt.Errorf("invalid cell %dx%d, ascent %d", width, height, ascent)
	}
	unused := byte(0xFF >> uint(width))

	var codes []rune
	var rows [][]byte
	for n, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != height+1 {
			return nil, fmt.Errorf("line %d: %d rows, want %d", n+1, len(fields)-1, height)
		}
		code, err := strconv.ParseUint(fields[0], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", n+1, err)
		}
		if len(codes) > 0 && rune(code) <= codes[len(codes)-1] {
			return nil, fmt.Errorf("line %d: code point %X out of order", n+1, code)
		}
		glyph := make([]byte, height)
		for i, f := range fields[1:] {
			b, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: %v", n+1, err)
			}
			if byte(b)&unused != 0 {
				return nil, fmt.Errorf("line %d: row %d wider than %d pixels", n+1, i, width)
			}
			glyph[i] = byte(b)
		}
		codes = append(codes, rune(code))
		rows = append(rows, glyph)
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("no glyphs")
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height*len(codes)))
	var ranges []basicfont.Range
	for i, code := range codes {
		if i == 0 || code != codes[i-1]+1 {
			ranges = append(ranges, basicfont.Range{Low: code, High: code + 1, Offset: i})
		} else {
			ranges[len(ranges)-1].High = code + 1
		}
		for y, row := range rows[i] {
			for x := 0; x < width; x++ {
				if row&(0x80>>uint(x)) != 0 {
					mask.Pix[(i*height+y)*mask.Stride+x] = 0xFF
				}
			}
		}
	}

	return &basicfont.Face{
		Advance: width,
		Width:   width,
		Height:  height,
		Ascent:  ascent,
		Descent: height - ascent,
		Mask:    mask,
		Ranges:  ranges,
	}, nil
}
