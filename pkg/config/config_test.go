package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1F47E/go-shearreel/internal/errs"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
	w, h := cfg.Style.FigurePixels()
	if w != 800 || h != 450 {
		t.Errorf("got figure %dx%d, want 800x450", w, h)
	}
	if cfg.Input.Last >= 0 {
		t.Errorf("default window should be unbounded, got last=%d", cfg.Input.Last)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "style.yaml")
	err := os.WriteFile(yamlPath, []byte(`
input:
  dir: snaps
  nx: 64
output:
  fps: 24
style:
  colormap: viridis
  figsize: [4, 2]
  dpi: 80
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	tomlPath := filepath.Join(dir, "style.toml")
	err = os.WriteFile(tomlPath, []byte(`
[input]
dir = "snaps"
nx = 64

[output]
fps = 24.0

[style]
colormap = "viridis"
figsize = [4.0, 2.0]
dpi = 80.0
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	want := Default()
	want.Input.Dir = "snaps"
	want.Input.Nx = 64
	want.Output.FPS = 24
	want.Style.Colormap = "viridis"
	want.Style.FigSize = []float64{4, 2}
	want.Style.DPI = 80

	for _, path := range []string{yamlPath, tomlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			got, err := Load(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("unexpected config (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"unknown.yaml": "style:\n  colour: red\n",
		"unknown.toml": "[style]\ncolour = \"red\"\n",
		"broken.yaml":  "style: [\n",
		"style.ini":    "[style]\n",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	for _, name := range []string{"unknown.yaml", "unknown.toml", "broken.yaml", "style.ini", "missing.yaml"} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(filepath.Join(dir, name))
			var cerr *errs.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no input dir", func(c *Config) { c.Input.Dir = "" }},
		{"bad format", func(c *Config) { c.Input.Format = "hdf5" }},
		{"bad byte order", func(c *Config) { c.Input.ByteOrder = "middle" }},
		{"zero stride", func(c *Config) { c.Input.Every = 0 }},
		{"empty window", func(c *Config) { c.Input.First, c.Input.Last = 10, 5 }},
		{"bad pattern", func(c *Config) { c.Input.Pattern = "[" }},
		{"no output", func(c *Config) { c.Output.Path = "" }},
		{"zero fps", func(c *Config) { c.Output.FPS = 0 }},
		{"bad crf", func(c *Config) { c.Output.CRF = 60 }},
		{"figsize length", func(c *Config) { c.Style.FigSize = []float64{8} }},
		{"negative figsize", func(c *Config) { c.Style.FigSize = []float64{8, -1} }},
		{"zero dpi", func(c *Config) { c.Style.DPI = 0 }},
		{"inverted range", func(c *Config) { c.Style.VMin, c.Style.VMax = 15, 0 }},
		{"bad shading", func(c *Config) { c.Style.Shading = "phong" }},
		{"bad text rendering", func(c *Config) { c.Style.TextRendering = "latex" }},
		{"bad colormap", func(c *Config) { c.Style.Colormap = "rainbow-unicorn" }},
		{"negative time step", func(c *Config) { c.Domain.TimeStep = -1 }},
		{"disc alpha", func(c *Config) { c.Disc.History = "disc.dat"; c.Disc.Alpha = 2 }},
		{"disc radius", func(c *Config) { c.Disc.History = "disc.dat"; c.Disc.Radius = 0 }},
		{"raw without nx", func(c *Config) { c.Input.Nx = 0 }},
		{"forced raw without nx", func(c *Config) { c.Input.Format = "raw"; c.Input.Nx = 0 }},
		{"title with bare percent", func(c *Config) { c.Style.Title = "50% span" }},
		{"title with two verbs", func(c *Config) { c.Style.Title = "t = %4.2f of %4.2f" }},
		{"title with string verb", func(c *Config) { c.Style.Title = "t = %s" }},
		{"title with trailing percent", func(c *Config) { c.Style.Title = "t %" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			var cerr *errs.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"defaults", func(c *Config) {}},
		{"text without nx", func(c *Config) { c.Input.Format = "text"; c.Input.Nx = 0 }},
		{"literal percent", func(c *Config) { c.Style.Title = "50%% span" }},
		{"literal percent and time", func(c *Config) { c.Style.Title = "t = %.3f, 50%% span" }},
		{"no title", func(c *Config) { c.Style.Title = "" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFormatTitle(t *testing.T) {
	testCases := []struct {
		title string
		t     float64
		want  string
	}{
		{"t = %4.2f", 0.25, "t = 0.25"},
		{"t = %4.2f", 12.5, "t = 12.50"},
		{"50%% span", 1, "50% span"},
		{"%.1f s, 50%%", 2, "2.0 s, 50%"},
		{"wall shear", 1, "wall shear"},
	}
	for _, tc := range testCases {
		s := Style{Title: tc.title}
		if got := s.FormatTitle(tc.t); got != tc.want {
			t.Errorf("FormatTitle(%q, %v) = %q, want %q", tc.title, tc.t, got, tc.want)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading written config: %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("round trip changed config (-want +got):\n%s", diff)
	}
}
