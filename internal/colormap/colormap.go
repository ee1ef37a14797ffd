// Package colormap provides the named value to color functions used to paint
// snapshot fields, and the fixed normalization shared by all frames of a run.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// N is the number of entries in a colormap lookup table.
const N = 256

type stop struct {
	pos float64
	col colorful.Color
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(fmt.Sprintf("colormap: bad control point %q: %v", s, err))
	}
	return c
}

// even spreads the colors evenly over [0, 1].
func even(hex ...string) []stop {
	stops := make([]stop, len(hex))
	for i, h := range hex {
		stops[i] = stop{pos: float64(i) / float64(len(hex)-1), col: mustHex(h)}
	}
	return stops
}

var segments = map[string][]stop{
	"gray":   even("#000000", "#ffffff"),
	"gray_r": even("#ffffff", "#000000"),
	"viridis": even(
		"#440154", "#472d7b", "#3b528b", "#2c728e", "#21918c",
		"#28ae80", "#5ec962", "#addc30", "#fde725",
	),
	"magma": even(
		"#000004", "#1c1044", "#4f127b", "#812581", "#b5367a",
		"#e55964", "#fb8761", "#fec287", "#fcfdbf",
	),
	"cool":     even("#00ffff", "#ff00ff"),
	"coolwarm": even("#3b4cc0", "#dddcdc", "#b40426"),
	"hot": {
		{0, mustHex("#0b0000")},
		{0.365, mustHex("#ff0000")},
		{0.746, mustHex("#ffff00")},
		{1, mustHex("#ffffff")},
	},
	"jet": {
		{0, mustHex("#000080")},
		{0.125, mustHex("#0000ff")},
		{0.375, mustHex("#00ffff")},
		{0.625, mustHex("#ffff00")},
		{0.875, mustHex("#ff0000")},
		{1, mustHex("#800000")},
	},
}

// aliases maps alternative names onto segment tables.
var aliases = map[string]string{
	"grayscale": "gray",
	"grey":      "gray",
	"greys_r":   "gray",
}

// Colormap is a lookup table of N colors.
type Colormap struct {
	Name string

	// Bad is the color used for NaN values.
	Bad color.RGBA

	lut [N]color.RGBA
}

// Lookup returns the named colormap.
func Lookup(name string) (*Colormap, error) {
	key := name
	if a, ok := aliases[name]; ok {
		key = a
	}
	stops, ok := segments[key]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (available: %v)", name, Names())
	}
	m := &Colormap{Name: name}
	for i := range m.lut {
		m.lut[i] = sample(stops, float64(i)/(N-1))
	}
	return m, nil
}

// Names returns the sorted list of accepted colormap names.
func Names() []string {
	names := make([]string, 0, len(segments)+len(aliases))
	for n := range segments {
		names = append(names, n)
	}
	for n := range aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sample(stops []stop, t float64) color.RGBA {
	i := sort.Search(len(stops), func(i int) bool { return stops[i].pos >= t })
	var c colorful.Color
	switch {
	case i == 0:
		c = stops[0].col
	case i == len(stops):
		c = stops[len(stops)-1].col
	default:
		a, b := stops[i-1], stops[i]
		c = a.col.BlendRgb(b.col, (t-a.pos)/(b.pos-a.pos))
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// At returns the color for a normalized value t in [0, 1]. Values outside
// the interval are clipped and NaN gives the Bad color.
func (m *Colormap) At(t float64) color.RGBA {
	if math.IsNaN(t) {
		return m.Bad
	}
	i := int(t * N)
	if i < 0 {
		i = 0
	}
	if i >= N {
		i = N - 1
	}
	return m.lut[i]
}

// Norm linearly maps the closed interval [Min, Max] onto [0, 1].
type Norm struct {
	Min, Max float64
}

// Scale returns the normalized, clipped value of v. NaN is passed through.
func (n Norm) Scale(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	t := (v - n.Min) / (n.Max - n.Min)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Color is a shorthand for m.At(n.Scale(v)).
func (m *Colormap) Color(n Norm, v float64) color.RGBA {
	return m.At(n.Scale(v))
}
