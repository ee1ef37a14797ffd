package core

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/1F47E/go-shearreel/internal/errs"
	"github.com/1F47E/go-shearreel/internal/meta"
	"github.com/1F47E/go-shearreel/internal/render"
	"github.com/1F47E/go-shearreel/internal/snapshot"
	"github.com/1F47E/go-shearreel/internal/storage"
	"github.com/1F47E/go-shearreel/internal/video"
	"github.com/1F47E/go-shearreel/pkg/logger"
	"github.com/1F47E/go-shearreel/pkg/progress"
)

// Discover returns the snapshots of the input directory in index order,
// restricted to the configured index window and stride.
func (s *Sequencer) Discover(ctx context.Context) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := s.cfg.Input
	snaps, err := storage.Scan(in.Dir, in.Pattern)
	if err != nil {
		return nil, err
	}
	selected := storage.Window(snaps, in.First, in.Last, in.Every)
	if len(selected) == 0 {
		return nil, errs.Config("scan", in.Dir,
			fmt.Errorf("no snapshots in index window [%d, %d] of %d found", in.First, in.Last, len(snaps)))
	}
	return selected, nil
}

// frames renders snapshots with one rendering context. The first field
// fixes the grid shape of the run.
type frames struct {
	seq     *Sequencer
	r       *render.Renderer
	history []float64
	shape   snapshot.Shape
	started bool
}

func (s *Sequencer) newFrames() (*frames, error) {
	r, err := render.New(s.cfg)
	if err != nil {
		return nil, err
	}
	fr := &frames{seq: s, r: r}
	if d := s.cfg.Disc; d.History != "" {
		fr.history, err = snapshot.ReadColumn(d.History, d.Column)
		if err != nil {
			r.Close()
			return nil, err
		}
		logger.Log.WithField("scope", "core").Debugf("disc history: %d steps", len(fr.history))
	}
	return fr, nil
}

func (fr *frames) close() error {
	return fr.r.Close()
}

func (fr *frames) render(snap storage.Snapshot) (*image.RGBA, error) {
	f, err := fr.seq.reader.Read(snap.Path)
	if err != nil {
		return nil, err
	}
	if !fr.started {
		fr.shape, fr.started = f.Shape(), true
	} else if f.Shape() != fr.shape {
		return nil, errs.Data(snap.Path, fmt.Errorf("grid shape %v differs from %v of the first snapshot", f.Shape(), fr.shape))
	}
	info := render.Info{Index: snap.Index, Time: fr.seq.time(snap)}
	if fr.history != nil {
		if snap.Index < 0 || snap.Index >= len(fr.history) {
			return nil, errs.Data(fr.seq.cfg.Disc.History,
				fmt.Errorf("no disc angle for snapshot index %d in %d steps", snap.Index, len(fr.history)))
		}
		info.DiscAngle = fr.history[snap.Index]
	}
	return fr.r.Render(f, info)
}

func (s *Sequencer) time(snap storage.Snapshot) float64 {
	return float64(snap.Index) * s.cfg.Domain.TimeStep
}

// RenderSnapshot renders one snapshot on its own, for previews. Run keeps
// a single rendering context for all frames instead.
func (s *Sequencer) RenderSnapshot(ctx context.Context, snap storage.Snapshot) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	fr, err := s.newFrames()
	if err != nil {
		return nil, err
	}
	defer fr.close()
	img, err := fr.render(snap)
	if err != nil {
		return nil, err
	}
	// the canvas dies with the renderer
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out, nil
}

// Run renders every discovered snapshot and encodes the frames into the
// output file. The output appears only when the whole animation is
// encoded; on failure no file is left behind.
func (s *Sequencer) Run(ctx context.Context) (err error) {
	log := logger.Log.WithField("scope", "core")
	out := s.cfg.Output

	// fail before reading any snapshot
	if err := storage.CheckOutputDir(out.Path); err != nil {
		return err
	}
	if out.Manifest != "" {
		if err := storage.CheckOutputDir(out.Manifest); err != nil {
			return err
		}
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	snaps, err := s.Discover(ctx)
	if err != nil {
		return err
	}
	log.Infof("rendering %d snapshots from %s", len(snaps), s.cfg.Input.Dir)

	fr, err := s.newFrames()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fr.close(); cerr != nil && err == nil {
			err = fmt.Errorf("release renderer: %w", cerr)
		}
	}()

	staging, err := storage.CreateStaging(out.Path)
	if err != nil {
		return err
	}
	log.Debugf("staging file %s", staging)
	committed := false
	defer func() {
		if committed {
			return
		}
		if derr := storage.Discard(staging); derr != nil {
			log.Warnf("cannot remove staging file %s: %v", staging, derr)
		}
	}()

	size := fr.r.Bounds().Size()
	enc, err := s.open(ctx, staging, video.Options{
		Width:  size.X,
		Height: size.Y,
		FPS:    out.FPS,
		Codec:  out.Codec,
		CRF:    out.CRF,
		FFmpeg: out.FFmpeg,
	})
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			if aerr := enc.Abort(); aerr != nil {
				log.Warnf("abort encoder: %v", aerr)
			}
		}
	}()

	var manifest *meta.Manifest
	if out.Manifest != "" {
		manifest = meta.New(out.Path, out.FPS, size)
	}

	bar := progress.New(s.progress, len(snaps), "Rendering...")
	for i, snap := range snaps {
		if err := ctx.Err(); err != nil {
			bar.Clear()
			return err
		}
		img, err := fr.render(snap)
		if err != nil {
			bar.Clear()
			return err
		}
		if err := enc.Encode(img); err != nil {
			bar.Clear()
			return fmt.Errorf("encode frame %d (%s): %w", i, snap.Path, err)
		}
		if manifest != nil {
			manifest.Add(snap.Index, s.time(snap), snap.Path, meta.Checksum(img))
		}
		log.Debugf("frame %d/%d: %s", i+1, len(snaps), snap.Path)
		bar.Add(1)
	}
	bar.Finish()

	closed = true
	if err := enc.Close(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ctxErr, err)
		}
		return err
	}
	if err := storage.Commit(staging, out.Path); err != nil {
		return err
	}
	committed = true
	if manifest != nil {
		if err := manifest.Save(out.Manifest); err != nil {
			return err
		}
	}
	log.Infof("saved %d frames to %s", len(snaps), out.Path)
	return nil
}

// Verify renders the snapshots listed in a manifest again and compares the
// frame digests. It reports how many frames differ.
func (s *Sequencer) Verify(ctx context.Context, manifest string) error {
	log := logger.Log.WithField("scope", "core verify")
	m, err := meta.Load(manifest)
	if err != nil {
		return errs.Config("verify", manifest, err)
	}
	if len(m.Frames) == 0 {
		return errs.Config("verify", manifest, errors.New("manifest lists no frames"))
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	fr, err := s.newFrames()
	if err != nil {
		return err
	}
	defer fr.close()

	if size := fr.r.Bounds().Size(); size != image.Pt(m.Width, m.Height) {
		return fmt.Errorf("frame size %dx%d differs from %dx%d in %s", size.X, size.Y, m.Width, m.Height, manifest)
	}

	bar := progress.New(s.progress, len(m.Frames), "Verifying...")
	var differ int
	for _, rec := range m.Frames {
		if err := ctx.Err(); err != nil {
			bar.Clear()
			return err
		}
		img, err := fr.render(storage.Snapshot{Path: rec.Path, Index: rec.Index})
		if err != nil {
			bar.Clear()
			return err
		}
		if sum := meta.FormatChecksum(meta.Checksum(img)); sum != rec.Checksum {
			log.Debugf("frame %d (%s): checksum %s, manifest %s", rec.Frame, rec.Path, sum, rec.Checksum)
			differ++
		}
		bar.Add(1)
	}
	bar.Finish()
	if differ > 0 {
		return fmt.Errorf("%d of %d frames differ from %s", differ, len(m.Frames), manifest)
	}
	log.Infof("all %d frames match %s", len(m.Frames), manifest)
	return nil
}
