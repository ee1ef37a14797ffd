package meta

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestChecksum(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	a := filled(4, 2, red)
	b := filled(4, 2, red)
	if Checksum(a) != Checksum(b) {
		t.Error("equal images have different checksums")
	}

	b.SetRGBA(3, 1, color.RGBA{A: 0xff})
	if Checksum(a) == Checksum(b) {
		t.Error("different images have equal checksums")
	}

	// same pixel bytes, different shape
	if Checksum(filled(4, 2, red)) == Checksum(filled(2, 4, red)) {
		t.Error("checksum ignores the image shape")
	}

	// a sub image hashes like a copy of its pixels
	big := filled(6, 4, color.RGBA{B: 0xff, A: 0xff})
	for y := 1; y < 3; y++ {
		for x := 1; x < 5; x++ {
			big.SetRGBA(x, y, red)
		}
	}
	sub := big.SubImage(image.Rect(1, 1, 5, 3)).(*image.RGBA)
	if Checksum(sub) != Checksum(a) {
		t.Error("sub image checksum differs from its copy")
	}
}

func TestFormatChecksum(t *testing.T) {
	testCases := []struct {
		sum  uint64
		want string
	}{
		{0, "0000000000000000"},
		{0xcbf29ce484222325, "cbf29ce484222325"},
		{255, "00000000000000ff"},
	}
	for _, tc := range testCases {
		if got := FormatChecksum(tc.sum); got != tc.want {
			t.Errorf("FormatChecksum(%d) = %q, want %q", tc.sum, got, tc.want)
		}
	}
}

func TestManifestSave(t *testing.T) {
	m := New("/videos/disc.mp4", 30, image.Pt(800, 450))
	m.Add(1, 0.0025, "dudy/dudy001.dat", 1)
	m.Add(2, 0.005, "dudy/dudy002.dat", 0xabc)

	path := filepath.Join(t.TempDir(), "disc.yaml")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Manifest{
		Output: "disc.mp4", FPS: 30, Width: 800, Height: 450,
		Frames: []Record{
			{Frame: 0, Index: 1, Time: 0.0025, Path: "dudy/dudy001.dat", Checksum: "0000000000000001"},
			{Frame: 1, Index: 2, Time: 0.005, Path: "dudy/dudy002.dat", Checksum: "0000000000000abc"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}
