package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// families maps style font names onto embedded TrueType data. A nil entry
// selects the 7x13 bitmap face, which ignores size and DPI.
var families = map[string][]byte{
	"go":         goregular.TTF,
	"go-regular": goregular.TTF,
	"sans-serif": goregular.TTF,
	"go-mono":    gomono.TTF,
	"monospace":  gomono.TTF,
	"go-bold":    gobold.TTF,
	"go-italic":  goitalic.TTF,
	"basic":      nil,
}

var hintings = map[string]font.Hinting{
	"none":     font.HintingNone,
	"vertical": font.HintingVertical,
	"full":     font.HintingFull,
}

// FontNames returns the accepted font family names.
func FontNames() []string {
	names := make([]string, 0, len(families))
	for n := range families {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// newFace opens the face for a font family at size points and dpi.
func newFace(family string, size, dpi float64, rendering string) (font.Face, error) {
	ttf, ok := families[family]
	if !ok {
		return nil, fmt.Errorf("unknown font family %q (available: %v)", family, FontNames())
	}
	hinting, ok := hintings[rendering]
	if !ok {
		return nil, fmt.Errorf("unknown text rendering %q", rendering)
	}
	if ttf == nil {
		return basicfont.Face7x13, nil
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("cannot parse font %q: %w", family, err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     dpi,
		Hinting: hinting,
	})
}

// writer draws single lines of text with one face.
type writer struct {
	face   font.Face
	ascent int
	height int
}

func newWriter(face font.Face) writer {
	m := face.Metrics()
	return writer{face: face, ascent: m.Ascent.Ceil(), height: m.Height.Ceil()}
}

// width returns the advance width of s in pixels.
func (w writer) width(s string) int {
	return font.MeasureString(w.face, s).Ceil()
}

// draw draws s with its top left corner at pt.
func (w writer) draw(dst draw.Image, s string, col color.Color, pt image.Point) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: w.face,
		Dot:  fixed.P(pt.X, pt.Y+w.ascent),
	}
	d.DrawString(s)
}

// anchor positions text relative to a point: 0 is left/top, 0.5 centers
// and 1 is right/bottom, the same relative placement the dx/dy arguments
// of a centered text draw use.
func (w writer) anchor(s string, pt image.Point, ax, ay float64) image.Point {
	return image.Point{
		X: pt.X - int(ax*float64(w.width(s))),
		Y: pt.Y - int(ay*float64(w.height)),
	}
}
