package render

import (
	"image"
	"image/color"
	"math"
)

// disc is the Secchi disc marker: a circle split into four quadrants that
// alternate black and white, rotated with the disc.
type disc struct {
	cx, cy float64 // centre in canvas pixels
	r      float64 // radius in pixels
	alpha  float64
	cross  int // half length of the centre marker in pixels
}

var (
	black = color.RGBA{A: 0xff}
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// draw paints the disc rotated by angle radians, clipped to clip. The
// vertical disc axis is z, which grows down the canvas (the first field row,
// drawn at the bottom, is the largest z), so at zero angle
// the dark quadrants are the lower right and upper left ones and a positive
// angle turns the disc clockwise on screen.
func (d disc) draw(dst *image.RGBA, clip image.Rectangle, angle float64) {
	box := image.Rect(
		int(math.Floor(d.cx-d.r-1)), int(math.Floor(d.cy-d.r-1)),
		int(math.Ceil(d.cx+d.r+1)), int(math.Ceil(d.cy+d.r+1)),
	).Intersect(clip).Intersect(dst.Bounds())

	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			dx := float64(x) + 0.5 - d.cx
			dy := (float64(y) + 0.5) - d.cy
			dist := math.Hypot(dx, dy)
			switch {
			case math.Abs(dist-d.r) < 0.75:
				blend(dst, x, y, black, d.alpha)
			case dist < d.r:
				a := math.Mod(math.Atan2(dy, dx)-angle, 2*math.Pi)
				if a < 0 {
					a += 2 * math.Pi
				}
				// first and third quadrants are dark
				if int(a/(math.Pi/2))%2 == 0 {
					blend(dst, x, y, black, d.alpha)
				} else {
					blend(dst, x, y, white, d.alpha)
				}
			}
		}
	}

	cx, cy := int(d.cx), int(d.cy)
	for i := -d.cross; i <= d.cross; i++ {
		if p := image.Pt(cx+i, cy); p.In(box) {
			blend(dst, p.X, p.Y, black, d.alpha)
		}
		if p := image.Pt(cx, cy+i); i != 0 && p.In(box) {
			blend(dst, p.X, p.Y, black, d.alpha)
		}
	}
}

// blend mixes c into the opaque pixel at (x, y) with weight a.
func blend(dst *image.RGBA, x, y int, c color.RGBA, a float64) {
	i := dst.PixOffset(x, y)
	p := dst.Pix[i : i+4 : i+4]
	p[0] = uint8(float64(p[0])*(1-a) + float64(c.R)*a + 0.5)
	p[1] = uint8(float64(p[1])*(1-a) + float64(c.G)*a + 0.5)
	p[2] = uint8(float64(p[2])*(1-a) + float64(c.B)*a + 0.5)
	p[3] = 0xff
}
