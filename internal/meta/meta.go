// Package meta records what went into an animation: one record per frame
// with the snapshot it came from and a digest of its pixels.
package meta

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/1F47E/go-shearreel/pkg/logger"
)

// Record describes one encoded frame.
type Record struct {
	Frame    int     `yaml:"frame"`
	Index    int     `yaml:"index"`
	Time     float64 `yaml:"time"`
	Path     string  `yaml:"path"`
	Checksum string  `yaml:"checksum"`
}

// Manifest is the sidecar written next to an animation.
type Manifest struct {
	Output string   `yaml:"output"`
	FPS    float64  `yaml:"fps"`
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
	Frames []Record `yaml:"frames"`
}

// New returns an empty manifest for an animation written to output.
func New(output string, fps float64, size image.Point) *Manifest {
	return &Manifest{Output: filepath.Base(output), FPS: fps, Width: size.X, Height: size.Y}
}

// Add appends the record of the next frame.
func (m *Manifest) Add(index int, t float64, path string, sum uint64) {
	m.Frames = append(m.Frames, Record{
		Frame:    len(m.Frames),
		Index:    index,
		Time:     t,
		Path:     path,
		Checksum: FormatChecksum(sum),
	})
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(path string) error {
	log := logger.Log.WithField("scope", "meta")
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("meta: marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("meta: write manifest: %w", err)
	}
	log.Debugf("manifest with %d frames saved to %s", len(m.Frames), path)
	return nil
}

// Load reads a manifest written by Save.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meta: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("meta: parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Checksum returns the FNV-1a 64 digest of the image size and its pixels
// in row order.
func Checksum(img *image.RGBA) uint64 {
	h := fnv.New64a()
	b := img.Bounds()
	var size [16]byte
	binary.BigEndian.PutUint64(size[:8], uint64(b.Dx()))
	binary.BigEndian.PutUint64(size[8:], uint64(b.Dy()))
	h.Write(size[:])
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		h.Write(img.Pix[i : i+4*b.Dx()])
	}
	return h.Sum64()
}

// FormatChecksum formats a digest as 16 hex digits.
func FormatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
