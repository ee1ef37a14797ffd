// Package progress draws the frame counter of a render run.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// Bar counts rendered frames. A nil *Bar is valid and draws nothing.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar of max steps drawn to w. A negative max draws a
// spinner; a nil w disables drawing.
func New(w io.Writer, max int, desc string) *Bar {
	if w == nil {
		return nil
	}
	return &Bar{bar: progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]/[reset]",
			SaucerHead:    "[green]/[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}

// Clear erases the bar, leaving the line free for log output.
func (b *Bar) Clear() {
	if b == nil {
		return
	}
	_ = b.bar.Clear()
}
