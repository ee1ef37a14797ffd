package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/1F47E/go-shearreel/internal/errs"
	"github.com/1F47E/go-shearreel/pkg/logger"
)

// Options describe the stream fed to the encoder.
type Options struct {
	Width, Height int
	FPS           float64
	Codec         string
	CRF           int // 0 leaves the codec default
	FFmpeg        string
}

// Encoder consumes frames of one animation.
type Encoder interface {
	// Encode appends one frame. Every frame must have the dimensions the
	// encoder was opened with.
	Encode(img *image.RGBA) error
	// Close finalizes the output file.
	Close() error
	// Abort stops encoding and leaves the output in an undefined state.
	Abort() error
}

// Opener opens an encoder writing to path.
type Opener func(ctx context.Context, path string, opts Options) (Encoder, error)

var _ Opener = Open

// ffmpeg streams raw rgba frames into a child ffmpeg process.
type ffmpeg struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
	frames int
	done   bool
}

// Args returns the ffmpeg arguments for encoding a raw rgba stream read
// from stdin into path.
func Args(path string, opts Options) []string {
	args := []string{
		"-y", "-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.FormatFloat(opts.FPS, 'f', -1, 64),
		"-i", "-",
		"-an",
		"-c:v", opts.Codec,
		"-pix_fmt", "yuv420p",
	}
	if opts.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(opts.CRF))
	}
	return append(args, path)
}

// Open starts ffmpeg encoding into path. A missing ffmpeg binary is a
// configuration error.
func Open(ctx context.Context, path string, opts Options) (Encoder, error) {
	log := logger.Log.WithField("scope", "video")
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width%2 != 0 || opts.Height%2 != 0 {
		return nil, fmt.Errorf("video: invalid frame size %dx%d", opts.Width, opts.Height)
	}
	bin, err := exec.LookPath(opts.FFmpeg)
	if err != nil {
		return nil, errs.Config("encoder", opts.FFmpeg, err)
	}

	args := Args(path, opts)
	log.Debugf("Running ffmpeg command: %s %s", bin, strings.Join(args, " "))
	e := &ffmpeg{width: opts.Width, height: opts.Height}
	e.cmd = exec.CommandContext(ctx, bin, args...)
	e.cmd.Stderr = &e.stderr
	if e.stdin, err = e.cmd.StdinPipe(); err != nil {
		return nil, fmt.Errorf("video: stdin pipe: %w", err)
	}
	if err := e.cmd.Start(); err != nil {
		_ = e.stdin.Close()
		return nil, fmt.Errorf("video: start ffmpeg: %w", err)
	}
	return e, nil
}

func (e *ffmpeg) Encode(img *image.RGBA) error {
	if e.done {
		return errors.New("video: encoder is closed")
	}
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("video: frame %d is %dx%d, stream is %dx%d", e.frames, b.Dx(), b.Dy(), e.width, e.height)
	}
	// rows of a sub image are not contiguous
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		if _, err := e.stdin.Write(img.Pix[i : i+4*e.width]); err != nil {
			// ffmpeg is gone; collect what it reported
			_ = e.stop()
			return fmt.Errorf("video: write frame %d: %w%s", e.frames, err, e.details())
		}
	}
	e.frames++
	return nil
}

func (e *ffmpeg) Close() error {
	if e.done {
		return nil
	}
	e.done = true
	cerr := e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("video: ffmpeg: %w%s", err, e.details())
	}
	if cerr != nil {
		return fmt.Errorf("video: close stdin: %w", cerr)
	}
	logger.Log.WithField("scope", "video").Debugf("encoded %d frames", e.frames)
	return nil
}

func (e *ffmpeg) Abort() error {
	if e.done {
		return nil
	}
	return e.stop()
}

// stop kills ffmpeg and waits for it, so its stderr is complete.
func (e *ffmpeg) stop() error {
	e.done = true
	_ = e.stdin.Close()
	err := e.cmd.Process.Kill()
	_ = e.cmd.Wait()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("video: kill ffmpeg: %w", err)
	}
	return nil
}

// details returns the ffmpeg diagnostics. Only valid after Wait.
func (e *ffmpeg) details() string {
	s := strings.TrimSpace(e.stderr.String())
	if s == "" {
		return ""
	}
	return ": " + s
}
