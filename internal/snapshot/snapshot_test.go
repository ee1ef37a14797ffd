package snapshot

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/1F47E/go-shearreel/internal/errs"
)

func writeRaw(t *testing.T, path string, order binary.ByteOrder, vals []float64) {
	t.Helper()
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadRaw(t *testing.T) {
	dir := t.TempDir()
	vals := []float64{0, 1, 2, 10, 11, 12}
	little := filepath.Join(dir, "dudy000100.dat")
	big := filepath.Join(dir, "dudy000200.dat")
	writeRaw(t, little, binary.LittleEndian, vals)
	writeRaw(t, big, binary.BigEndian, vals)

	want := &Field{Nx: 3, Nz: 2, Data: vals}
	testCases := []struct {
		name string
		r    Reader
		path string
	}{
		{"shape", Reader{Nx: 3, Nz: 2}, little},
		{"inferred rows", Reader{Nx: 3}, little},
		{"big endian", Reader{Nx: 3, Nz: 2, ByteOrder: binary.BigEndian}, big},
		{"forced format", Reader{Format: Raw, Nx: 3, Nz: 2}, little},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.r.Read(tc.path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("unexpected field (-want +got):\n%s", diff)
			}
		})
	}

	f, err := (&Reader{Nx: 3}).Read(little)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.At(1, 1); got != 11 {
		t.Errorf("At(1, 1) = %v, want 11", got)
	}
}

func TestReadRawErrors(t *testing.T) {
	dir := t.TempDir()
	six := filepath.Join(dir, "six.dat")
	writeRaw(t, six, binary.LittleEndian, make([]float64, 6))
	odd := filepath.Join(dir, "odd.dat")
	if err := os.WriteFile(odd, make([]byte, 13), 0o644); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name string
		r    Reader
		path string
	}{
		{"missing", Reader{Nx: 3}, filepath.Join(dir, "missing.dat")},
		{"partial value", Reader{Nx: 3}, odd},
		{"wrong shape", Reader{Nx: 4, Nz: 2}, six},
		{"rows do not fill", Reader{Nx: 4}, six},
		{"no nx", Reader{}, six},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.r.Read(tc.path)
			var derr *errs.DataFormatError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DataFormatError, got %v", err)
			}
			if derr.Path != tc.path {
				t.Errorf("error path = %q, want %q", derr.Path, tc.path)
			}
		})
	}
}

func TestReadText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame_001.txt")
	err := os.WriteFile(path, []byte("# wall shear stress\n1 2 3\n\n4,5,6 # last row\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	var r Reader
	got, err := r.Read(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := &Field{Nx: 3, Nz: 2, Data: []float64{1, 2, 3, 4, 5, 6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected field (-want +got):\n%s", diff)
	}
	if got.Shape() != (Shape{Nx: 3, Nz: 2}) {
		t.Errorf("unexpected shape %v", got.Shape())
	}
}

func TestReadTextErrors(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"ragged.txt": "1 2 3\n4 5\n",
		"nan.txt":    "1 2 x\n",
		"empty.txt":  "# nothing here\n\n",
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Run(name, func(t *testing.T) {
			_, err := (&Reader{}).Read(path)
			var derr *errs.DataFormatError
			if !errors.As(err, &derr) {
				t.Fatalf("expected DataFormatError, got %v", err)
			}
		})
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"dudy000100.dat": Raw,
		"frame_001.bin":  Raw,
		"frame_001":      Raw,
		"frame_001.txt":  Text,
		"frame_001.CSV":  Text,
	} {
		if got := FormatOf(path); got != want {
			t.Errorf("FormatOf(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestReadColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disc_000001.dat")
	err := os.WriteFile(path, []byte(
		"  1  0.0025  0.1  0.2  0.00\n"+
			"  2  0.0050  0.1  0.2  0.25\n"+
			"  3  0.0075  0.1  0.2  0.50\n"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadColumn(path, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 0.25, 0.5}, got); diff != "" {
		t.Errorf("unexpected column (-want +got):\n%s", diff)
	}

	_, err = ReadColumn(path, 7)
	var derr *errs.DataFormatError
	if !errors.As(err, &derr) {
		t.Errorf("expected DataFormatError for missing column, got %v", err)
	}
}
