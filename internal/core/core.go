// Package core is the frame sequencer: it turns a directory of snapshots
// into one animation, one frame per snapshot, in index order.
package core

import (
	"encoding/binary"
	"io"

	"github.com/1F47E/go-shearreel/internal/snapshot"
	"github.com/1F47E/go-shearreel/internal/video"
	"github.com/1F47E/go-shearreel/pkg/config"
)

// Sequencer runs the render pipeline for one configuration.
type Sequencer struct {
	cfg      *config.Config
	reader   *snapshot.Reader
	open     video.Opener
	progress io.Writer
}

// Option customizes a Sequencer.
type Option func(*Sequencer)

// WithEncoder replaces the ffmpeg encoder.
func WithEncoder(open video.Opener) Option {
	return func(s *Sequencer) { s.open = open }
}

// WithProgress draws a progress bar to w while rendering.
func WithProgress(w io.Writer) Option {
	return func(s *Sequencer) { s.progress = w }
}

// WithReader replaces the snapshot reader built from the input config.
func WithReader(r *snapshot.Reader) Option {
	return func(s *Sequencer) { s.reader = r }
}

// New returns a sequencer for cfg. cfg is read, never modified.
func New(cfg *config.Config, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:  cfg,
		open: video.Open,
		reader: &snapshot.Reader{
			Format:    snapshot.Format(cfg.Input.Format),
			ByteOrder: byteOrder(cfg.Input.ByteOrder),
			Nx:        cfg.Input.Nx,
			Nz:        cfg.Input.Nz,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func byteOrder(name string) binary.ByteOrder {
	if name == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
