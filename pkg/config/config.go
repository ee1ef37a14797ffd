package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/1F47E/go-shearreel/internal/colormap"
	"github.com/1F47E/go-shearreel/internal/errs"
)

// NOTE: defaults reproduce the rotating disc animation at Re_tau 180:
// a 256x128 wall grid spanning 4pi x 4pi/3 channel half-heights
const (
	DefaultInputDir  = "dudy"
	DefaultPattern   = "*"
	DefaultByteOrder = "little"
	DefaultNx        = 256
	DefaultNz        = 128
	DefaultEvery     = 1

	DefaultOutput = "disc.mp4"
	DefaultFPS    = 30
	DefaultCodec  = "libx264"
	DefaultCRF    = 18
	DefaultFFmpeg = "ffmpeg"

	DefaultFont          = "sans-serif"
	DefaultFontSize      = 10
	DefaultTextRendering = "none"
	DefaultFigWidth      = 8   // inches
	DefaultFigHeight     = 4.5 // inches
	DefaultDPI           = 100
	DefaultColormap      = "grayscale"
	DefaultVMin          = 0
	DefaultVMax          = 15
	DefaultShading       = "gouraud"
	DefaultTitle         = "t = %4.2f"
	DefaultXLabel        = "x+"
	DefaultYLabel        = "z+"

	ReTau           = 180
	DefaultTimeStep = 0.0025

	DefaultDiscColumn = 4
	DefaultDiscRadius = ReTau
	DefaultDiscAlpha  = 0.6
	// moment = tau * (z - zc) / 180, opaque above 17
	DefaultMomentScale = ReTau * 17
)

// Config is the complete, read-only configuration of a run. It is built once
// at start-up and passed by pointer to every component.
type Config struct {
	Input  Input  `yaml:"input" toml:"input"`
	Output Output `yaml:"output" toml:"output"`
	Style  Style  `yaml:"style" toml:"style"`
	Domain Domain `yaml:"domain" toml:"domain"`
	Disc   Disc   `yaml:"disc" toml:"disc"`
}

type Input struct {
	Dir     string `yaml:"dir" toml:"dir"`
	Pattern string `yaml:"pattern" toml:"pattern"`
	// Format is "raw" or "text"; empty selects by file extension.
	Format    string `yaml:"format" toml:"format"`
	ByteOrder string `yaml:"byte_order" toml:"byte_order"`
	// Grid shape of raw snapshots. Nz == 0 infers it from the file size.
	Nx int `yaml:"nx" toml:"nx"`
	Nz int `yaml:"nz" toml:"nz"`
	// Index window and stride over the discovered snapshots.
	// Last < 0 means no upper bound.
	First int `yaml:"first" toml:"first"`
	Last  int `yaml:"last" toml:"last"`
	Every int `yaml:"every" toml:"every"`
}

type Output struct {
	Path     string  `yaml:"path" toml:"path"`
	FPS      float64 `yaml:"fps" toml:"fps"`
	Codec    string  `yaml:"codec" toml:"codec"`
	CRF      int     `yaml:"crf" toml:"crf"`
	FFmpeg   string  `yaml:"ffmpeg" toml:"ffmpeg"`
	Manifest string  `yaml:"manifest" toml:"manifest"`
}

type Style struct {
	Font          string    `yaml:"font" toml:"font"`
	FontSize      float64   `yaml:"font_size" toml:"font_size"`
	TextRendering string    `yaml:"text_rendering" toml:"text_rendering"`
	FigSize       []float64 `yaml:"figsize,flow" toml:"figsize"`
	DPI           float64   `yaml:"dpi" toml:"dpi"`
	Colormap      string    `yaml:"colormap" toml:"colormap"`
	VMin          float64   `yaml:"vmin" toml:"vmin"`
	VMax          float64   `yaml:"vmax" toml:"vmax"`
	Shading       string    `yaml:"shading" toml:"shading"`
	Colorbar      bool      `yaml:"colorbar" toml:"colorbar"`
	Title         string    `yaml:"title" toml:"title"`
	XLabel        string    `yaml:"xlabel" toml:"xlabel"`
	YLabel        string    `yaml:"ylabel" toml:"ylabel"`
}

// Domain is the physical extent of the grid and the simulated time between
// two consecutive snapshot indices.
type Domain struct {
	Lx       float64 `yaml:"lx" toml:"lx"`
	Lz       float64 `yaml:"lz" toml:"lz"`
	TimeStep float64 `yaml:"time_step" toml:"time_step"`
}

// Disc configures the rotating disc overlay. It is disabled when History
// is empty.
type Disc struct {
	History     string  `yaml:"history" toml:"history"`
	Column      int     `yaml:"column" toml:"column"`
	Radius      float64 `yaml:"radius" toml:"radius"`
	Alpha       float64 `yaml:"alpha" toml:"alpha"`
	MomentScale float64 `yaml:"moment_scale" toml:"moment_scale"`
}

func Default() *Config {
	return &Config{
		Input: Input{
			Dir:       DefaultInputDir,
			Pattern:   DefaultPattern,
			ByteOrder: DefaultByteOrder,
			Nx:        DefaultNx,
			Nz:        DefaultNz,
			Last:      -1,
			Every:     DefaultEvery,
		},
		Output: Output{
			Path:   DefaultOutput,
			FPS:    DefaultFPS,
			Codec:  DefaultCodec,
			CRF:    DefaultCRF,
			FFmpeg: DefaultFFmpeg,
		},
		Style: Style{
			Font:          DefaultFont,
			FontSize:      DefaultFontSize,
			TextRendering: DefaultTextRendering,
			FigSize:       []float64{DefaultFigWidth, DefaultFigHeight},
			DPI:           DefaultDPI,
			Colormap:      DefaultColormap,
			VMin:          DefaultVMin,
			VMax:          DefaultVMax,
			Shading:       DefaultShading,
			Title:         DefaultTitle,
			XLabel:        DefaultXLabel,
			YLabel:        DefaultYLabel,
		},
		Domain: Domain{
			Lx:       ReTau * 4 * math.Pi,
			Lz:       ReTau * 4 * math.Pi / 3,
			TimeStep: DefaultTimeStep,
		},
		Disc: Disc{
			Column:      DefaultDiscColumn,
			Radius:      DefaultDiscRadius,
			Alpha:       DefaultDiscAlpha,
			MomentScale: DefaultMomentScale,
		},
	}
}

// Load reads a YAML or TOML file, chosen by extension, over the defaults.
// An empty path returns the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Config("config", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errs.Config("config", path, err)
		}
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return nil, errs.Config("config", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errs.Config("config", path, fmt.Errorf("unknown keys: %v", undecoded))
		}
	default:
		return nil, errs.Config("config", path, fmt.Errorf("unsupported config format %q", ext))
	}
	return cfg, nil
}

// Write writes cfg as YAML.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks the values that are not tied to the file system. Every
// failure is a *errs.ConfigurationError.
func (c *Config) Validate() error {
	in := c.Input
	switch {
	case in.Dir == "":
		return errs.Config("input", "", errors.New("snapshot directory not set"))
	case in.Format != "" && in.Format != "raw" && in.Format != "text":
		return errs.Config("input", "", fmt.Errorf("unknown snapshot format %q", in.Format))
	case in.ByteOrder != "little" && in.ByteOrder != "big":
		return errs.Config("input", "", fmt.Errorf("unknown byte order %q", in.ByteOrder))
	case in.Nx < 0 || in.Nz < 0:
		return errs.Config("input", "", fmt.Errorf("negative grid shape %dx%d", in.Nx, in.Nz))
	case in.Nx == 0 && in.Format != "text":
		// an empty format reads .dat and .bin files as raw dumps
		return errs.Config("input", "", errors.New("raw snapshots need a positive nx"))
	case in.Every < 1:
		return errs.Config("input", "", fmt.Errorf("stride must be at least 1, got %d", in.Every))
	case in.Last >= 0 && in.Last < in.First:
		return errs.Config("input", "", fmt.Errorf("empty index window [%d, %d]", in.First, in.Last))
	}
	if _, err := filepath.Match(in.Pattern, ""); err != nil {
		return errs.Config("input", in.Pattern, err)
	}

	out := c.Output
	switch {
	case out.Path == "":
		return errs.Config("output", "", errors.New("output path not set"))
	case !(out.FPS > 0):
		return errs.Config("output", "", fmt.Errorf("frame rate must be positive, got %v", out.FPS))
	case out.Codec == "":
		return errs.Config("output", "", errors.New("codec not set"))
	case out.CRF < 0 || out.CRF > 51:
		return errs.Config("output", "", fmt.Errorf("crf out of range [0, 51]: %d", out.CRF))
	}

	st := c.Style
	switch {
	case len(st.FigSize) != 2:
		return errs.Config("style", "", fmt.Errorf("figsize needs width and height, got %v", st.FigSize))
	case !(st.FigSize[0] > 0) || !(st.FigSize[1] > 0):
		return errs.Config("style", "", fmt.Errorf("figsize must be positive, got %v", st.FigSize))
	case !(st.DPI > 0):
		return errs.Config("style", "", fmt.Errorf("dpi must be positive, got %v", st.DPI))
	case !(st.FontSize > 0):
		return errs.Config("style", "", fmt.Errorf("font size must be positive, got %v", st.FontSize))
	case !(st.VMin < st.VMax):
		return errs.Config("style", "", fmt.Errorf("vmin must be less than vmax, got [%v, %v]", st.VMin, st.VMax))
	case st.Shading != "gouraud" && st.Shading != "flat":
		return errs.Config("style", "", fmt.Errorf("unknown shading %q", st.Shading))
	}
	if verbs := titleVerbs(st.Title); verbs > 1 || strings.Contains(st.FormatTitle(0), "%!") {
		return errs.Config("style", "", fmt.Errorf("title %q must hold at most one float verb, write %%%% for a literal %%", st.Title))
	}
	switch st.TextRendering {
	case "none", "vertical", "full":
	default:
		return errs.Config("style", "", fmt.Errorf("unknown text rendering %q", st.TextRendering))
	}
	if _, err := colormap.Lookup(st.Colormap); err != nil {
		return errs.Config("style", "", err)
	}

	d := c.Domain
	if d.Lx < 0 || d.Lz < 0 || d.TimeStep < 0 {
		return errs.Config("domain", "", fmt.Errorf("negative domain value in %+v", d))
	}

	if disc := c.Disc; disc.History != "" {
		switch {
		case disc.Column < 0:
			return errs.Config("disc", disc.History, fmt.Errorf("negative column %d", disc.Column))
		case !(disc.Radius > 0):
			return errs.Config("disc", disc.History, fmt.Errorf("radius must be positive, got %v", disc.Radius))
		case disc.Alpha < 0 || disc.Alpha > 1:
			return errs.Config("disc", disc.History, fmt.Errorf("alpha out of range [0, 1]: %v", disc.Alpha))
		case disc.MomentScale < 0:
			return errs.Config("disc", disc.History, fmt.Errorf("negative moment scale %v", disc.MomentScale))
		}
	}
	return nil
}

// FormatTitle applies the title format to the frame time t. A title
// without a verb is used as is, with %% read as a literal %.
func (s Style) FormatTitle(t float64) string {
	if titleVerbs(s.Title) == 0 {
		return strings.ReplaceAll(s.Title, "%%", "%")
	}
	return fmt.Sprintf(s.Title, t)
}

// titleVerbs counts the formatting verbs of a title, %% excluded.
func titleVerbs(title string) int {
	var n int
	for i := 0; i < len(title); i++ {
		if title[i] != '%' {
			continue
		}
		if i+1 < len(title) && title[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}

// FigurePixels returns the pixel size of a frame. Both sides are rounded
// down to even numbers as required by yuv420p encoding.
func (s Style) FigurePixels() (width, height int) {
	width = int(s.FigSize[0]*s.DPI) &^ 1
	height = int(s.FigSize[1]*s.DPI) &^ 1
	return width, height
}
