// Package render turns snapshot fields into figure images.
//
// A Renderer is the rendering context of a run: it owns the canvas, the font
// face and the colormap, which are acquired once by New and reused for every
// frame until Close.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/1F47E/go-shearreel/internal/colormap"
	"github.com/1F47E/go-shearreel/internal/errs"
	"github.com/1F47E/go-shearreel/internal/snapshot"
	"github.com/1F47E/go-shearreel/pkg/config"
	"github.com/1F47E/go-shearreel/pkg/logger"
)

// Info describes the frame being rendered.
type Info struct {
	Index int
	Time  float64

	// DiscAngle is the disc rotation in radians. It is only used when
	// the disc overlay is configured.
	DiscAngle float64
}

// Renderer draws frames. It is not safe for concurrent use.
type Renderer struct {
	cfg    *config.Config
	canvas *image.RGBA
	face   font.Face
	text   writer
	cmap   *colormap.Colormap
	norm   colormap.Norm
	scaler draw.Scaler

	// per shape state, rebuilt when the field shape changes
	shape snapshot.Shape
	field *image.NRGBA
	plot  image.Rectangle
	bar   image.Rectangle
	disc  *disc
}

// New acquires a rendering context for cfg. Invalid style values are
// reported as *errs.ConfigurationError.
func New(cfg *config.Config) (*Renderer, error) {
	st := cfg.Style
	if len(st.FigSize) != 2 || !(st.DPI > 0) {
		return nil, errs.Config("style", "", fmt.Errorf("invalid figure size %v at %v dpi", st.FigSize, st.DPI))
	}
	cmap, err := colormap.Lookup(st.Colormap)
	if err != nil {
		return nil, errs.Config("style", "", err)
	}
	face, err := newFace(st.Font, st.FontSize, st.DPI, st.TextRendering)
	if err != nil {
		return nil, errs.Config("style", "", err)
	}
	var scaler draw.Scaler
	switch st.Shading {
	case "gouraud":
		scaler = draw.BiLinear
	case "flat":
		scaler = draw.NearestNeighbor
	default:
		face.Close()
		return nil, errs.Config("style", "", fmt.Errorf("unknown shading %q", st.Shading))
	}
	w, h := st.FigurePixels()
	if w < 2 || h < 2 {
		face.Close()
		return nil, errs.Config("style", "", fmt.Errorf("figure too small: %dx%d pixels", w, h))
	}
	logger.Log.WithField("scope", "render").Debugf("canvas %dx%d, colormap %s, font %s", w, h, cmap.Name, st.Font)
	return &Renderer{
		cfg:    cfg,
		canvas: image.NewRGBA(image.Rect(0, 0, w, h)),
		face:   face,
		text:   newWriter(face),
		cmap:   cmap,
		norm:   colormap.Norm{Min: st.VMin, Max: st.VMax},
		scaler: scaler,
	}, nil
}

// Bounds returns the frame bounds.
func (r *Renderer) Bounds() image.Rectangle {
	return r.canvas.Bounds()
}

// Close releases the canvas and the font face. It is safe to call more
// than once.
func (r *Renderer) Close() error {
	if r.face == nil {
		return nil
	}
	err := r.face.Close()
	r.face = nil
	r.canvas = nil
	r.field = nil
	return err
}

// Render draws f into the canvas and returns it. The returned image is
// overwritten by the next call to Render.
func (r *Renderer) Render(f *snapshot.Field, info Info) (*image.RGBA, error) {
	if r.face == nil {
		return nil, errors.New("render: renderer is closed")
	}
	if f.Nx <= 0 || f.Nz <= 0 || len(f.Data) != f.Nx*f.Nz {
		return nil, fmt.Errorf("render: invalid field %dx%d with %d values", f.Nx, f.Nz, len(f.Data))
	}
	if f.Shape() != r.shape {
		r.layout(f.Shape())
	}

	draw.Draw(r.canvas, r.canvas.Bounds(), image.White, image.Point{}, draw.Src)

	moment := r.disc != nil && r.cfg.Disc.MomentScale > 0
	if moment {
		r.disc.draw(r.canvas, r.plot, info.DiscAngle)
	}
	r.paintField(f, moment)
	r.scaler.Scale(r.canvas, r.plot, r.field, r.field.Bounds(), draw.Over, nil)
	if r.disc != nil && !moment {
		r.disc.draw(r.canvas, r.plot, info.DiscAngle)
	}
	frame(r.canvas, r.plot.Inset(-1))

	if r.cfg.Style.Colorbar {
		r.drawColorbar()
	}
	r.drawLabels(info)
	return r.canvas, nil
}

// layout places the plot area, the colorbar and the disc for a field shape.
func (r *Renderer) layout(shape snapshot.Shape) {
	st := r.cfg.Style
	b := r.canvas.Bounds()
	line := r.text.height
	pad := line / 2

	avail := image.Rect(b.Min.X+pad, b.Min.Y+pad, b.Max.X-pad, b.Max.Y-pad)
	if st.Title != "" {
		avail.Min.Y += line + pad
	}
	if st.XLabel != "" {
		avail.Max.Y -= line + pad
	}
	if st.YLabel != "" {
		avail.Min.X += r.text.width(st.YLabel) + pad
	}
	if st.Colorbar {
		labels := max(r.text.width(formatValue(st.VMin)), r.text.width(formatValue(st.VMax)))
		avail.Max.X -= barWidth(b) + 2*pad + labels
	}

	lx, lz := r.extent(shape)
	aw, ah := float64(avail.Dx()), float64(avail.Dy())
	pw, ph := aw, ah
	if aw/ah > lx/lz {
		pw = ah * lx / lz
	} else {
		ph = aw * lz / lx
	}
	pw, ph = math.Max(pw, 1), math.Max(ph, 1)
	off := image.Pt(avail.Min.X+int((aw-pw)/2), avail.Min.Y+int((ah-ph)/2))
	r.plot = image.Rectangle{Min: off, Max: off.Add(image.Pt(int(pw), int(ph)))}

	if st.Colorbar {
		x := r.plot.Max.X + 2*pad
		r.bar = image.Rect(x, r.plot.Min.Y, x+barWidth(b), r.plot.Max.Y)
	}

	r.disc = nil
	if d := r.cfg.Disc; d.History != "" {
		scale := float64(r.plot.Dx()) / lx
		r.disc = &disc{
			cx:    float64(r.plot.Min.X) + float64(r.plot.Dx())/2,
			cy:    float64(r.plot.Min.Y) + float64(r.plot.Dy())/2,
			r:     d.Radius * scale,
			alpha: d.Alpha,
			cross: int(5 * st.DPI / 72),
		}
	}

	r.shape = shape
	r.field = image.NewNRGBA(image.Rect(0, 0, shape.Nx, shape.Nz))
	logger.Log.WithField("scope", "render").Debugf("field %v in plot area %v", shape, r.plot)
}

// extent returns the physical size of the grid, falling back to the grid
// shape when the domain is not configured.
func (r *Renderer) extent(shape snapshot.Shape) (lx, lz float64) {
	lx, lz = r.cfg.Domain.Lx, r.cfg.Domain.Lz
	if lx <= 0 || lz <= 0 {
		lx, lz = float64(shape.Nx), float64(shape.Nz)
	}
	return lx, lz
}

// paintField colors the field samples into the per shape source image.
// The first row of the field is the bottom row of the image. With moment
// set, each sample is made transparent in proportion to its moment about
// the disc axis.
func (r *Renderer) paintField(f *snapshot.Field, moment bool) {
	_, lz := r.extent(f.Shape())
	for k := 0; k < f.Nz; k++ {
		y := f.Nz - 1 - k
		var rz float64
		if moment {
			rz = lz*float64(k)/math.Max(float64(f.Nz-1), 1) - lz/2
		}
		for i := 0; i < f.Nx; i++ {
			v := f.At(i, k)
			c := r.cmap.Color(r.norm, v)
			a := c.A
			if moment && a != 0 {
				a = uint8(math.Min(1, math.Abs(v*rz)/r.cfg.Disc.MomentScale)*0xff + 0.5)
			}
			r.field.SetNRGBA(i, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
}

func (r *Renderer) drawColorbar() {
	bar := r.bar
	for y := bar.Min.Y; y < bar.Max.Y; y++ {
		t := 1 - float64(y-bar.Min.Y)/math.Max(float64(bar.Dy()-1), 1)
		c := r.cmap.At(t)
		for x := bar.Min.X; x < bar.Max.X; x++ {
			r.canvas.SetRGBA(x, y, c)
		}
	}
	frame(r.canvas, bar.Inset(-1))
	pad := r.text.height / 4
	top := formatValue(r.cfg.Style.VMax)
	bottom := formatValue(r.cfg.Style.VMin)
	r.text.draw(r.canvas, top, color.Black, r.text.anchor(top, image.Pt(bar.Max.X+2*pad, bar.Min.Y), 0, 0))
	r.text.draw(r.canvas, bottom, color.Black, r.text.anchor(bottom, image.Pt(bar.Max.X+2*pad, bar.Max.Y), 0, 1))
}

func (r *Renderer) drawLabels(info Info) {
	st := r.cfg.Style
	pad := r.text.height / 4
	if st.Title != "" {
		title := st.FormatTitle(info.Time)
		r.text.draw(r.canvas, title, color.Black, r.text.anchor(title, image.Pt(r.plot.Min.X, r.plot.Min.Y-pad), 0, 1))
	}
	if st.XLabel != "" {
		pt := image.Pt((r.plot.Min.X+r.plot.Max.X)/2, r.plot.Max.Y+pad)
		r.text.draw(r.canvas, st.XLabel, color.Black, r.text.anchor(st.XLabel, pt, 0.5, 0))
	}
	if st.YLabel != "" {
		pt := image.Pt(r.plot.Min.X-2*pad, (r.plot.Min.Y+r.plot.Max.Y)/2)
		r.text.draw(r.canvas, st.YLabel, color.Black, r.text.anchor(st.YLabel, pt, 1, 0.5))
	}
}

// frame draws a one pixel black outline just inside rect.
func frame(dst *image.RGBA, rect image.Rectangle) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		dst.SetRGBA(x, rect.Min.Y, black)
		dst.SetRGBA(x, rect.Max.Y-1, black)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		dst.SetRGBA(rect.Min.X, y, black)
		dst.SetRGBA(rect.Max.X-1, y, black)
	}
}

func barWidth(b image.Rectangle) int {
	return max(b.Dx()/80, 6)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
