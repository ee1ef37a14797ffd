// Package snapshot reads stored wall fields into memory.
//
// Two on-disk encodings are understood:
//
//   - raw: a headerless dump of float64 values in Fortran order (x varies
//     fastest), as written by the channel-flow solver. The grid shape comes
//     from the caller; a zero Nz is inferred from the file size.
//   - text: one z row per line with x values separated by white space or
//     commas. The shape is taken from the file itself.
//
// Every failure to produce a field is returned as an *errs.DataFormatError.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/1F47E/go-shearreel/internal/errs"
)

// Field is a 2-D scalar field of Nx columns and Nz rows. Row k holds the
// samples at the k-th spanwise position.
type Field struct {
	Nx, Nz int
	Data   []float64
}

// NewField returns a zeroed field of the given shape.
func NewField(nx, nz int) *Field {
	return &Field{Nx: nx, Nz: nz, Data: make([]float64, nx*nz)}
}

// At returns the sample in column i, row k.
func (f *Field) At(i, k int) float64 {
	return f.Data[k*f.Nx+i]
}

// Set sets the sample in column i, row k.
func (f *Field) Set(i, k int, v float64) {
	f.Data[k*f.Nx+i] = v
}

// Shape returns the field dimensions.
func (f *Field) Shape() Shape {
	return Shape{Nx: f.Nx, Nz: f.Nz}
}

// Shape is the grid shape of a field.
type Shape struct {
	Nx, Nz int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Nx, s.Nz)
}

// Format names an on-disk snapshot encoding.
type Format string

const (
	Raw  Format = "raw"
	Text Format = "text"
)

// FormatOf returns the encoding implied by the extension of path.
// Unknown extensions are read as raw dumps.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".csv", ".asc":
		return Text
	default:
		return Raw
	}
}

// Reader reads snapshot files.
type Reader struct {
	// Format forces an encoding. The zero value selects by extension.
	Format Format

	// ByteOrder of raw dumps. Nil means little endian.
	ByteOrder binary.ByteOrder

	// Grid of raw dumps. Nz == 0 infers the row count from the size.
	Nx, Nz int
}

// Read loads the field stored at path.
func (r *Reader) Read(path string) (*Field, error) {
	format := r.Format
	if format == "" {
		format = FormatOf(path)
	}
	var (
		f   *Field
		err error
	)
	switch format {
	case Raw:
		f, err = r.readRaw(path)
	case Text:
		f, err = readText(path)
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		var derr *errs.DataFormatError
		if errors.As(err, &derr) {
			return nil, err
		}
		return nil, errs.Data(path, err)
	}
	return f, nil
}

func (r *Reader) readRaw(path string) (*Field, error) {
	if r.Nx <= 0 {
		return nil, errors.New("raw snapshot needs a positive nx")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("size %d is not a whole number of float64 values", len(data))
	}
	n := len(data) / 8
	nz := r.Nz
	if nz == 0 {
		if n == 0 || n%r.Nx != 0 {
			return nil, fmt.Errorf("%d values do not fill rows of %d", n, r.Nx)
		}
		nz = n / r.Nx
	}
	if n != r.Nx*nz {
		return nil, fmt.Errorf("got %d values, want %d for a %dx%d grid", n, r.Nx*nz, r.Nx, nz)
	}
	order := r.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	f := NewField(r.Nx, nz)
	for j := range f.Data {
		f.Data[j] = math.Float64frombits(order.Uint64(data[j*8:]))
	}
	return f, nil
}

func readText(path string) (*Field, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseText(file)
}

func parseText(r io.Reader) (*Field, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var (
		data []float64
		nx   int
		nz   int
		line int
	)
	for sc.Scan() {
		line++
		fields := splitRow(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if nz == 0 {
			nx = len(fields)
		} else if len(fields) != nx {
			return nil, fmt.Errorf("line %d: ragged row with %d values, want %d", line, len(fields), nx)
		}
		for _, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			data = append(data, v)
		}
		nz++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if nz == 0 {
		return nil, errors.New("no data rows")
	}
	return &Field{Nx: nx, Nz: nz, Data: data}, nil
}

// splitRow splits a text row on white space and commas, dropping a
// trailing # comment.
func splitRow(s string) []string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r'
	})
}

// ReadColumn reads column col (zero based) of a white space separated table,
// one value per data row. It is used for per-step scalar histories such as
// the disc angle.
func ReadColumn(path string, col int) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.Data(path, err)
	}
	defer file.Close()

	var out []float64
	sc := bufio.NewScanner(file)
	var line int
	for sc.Scan() {
		line++
		fields := splitRow(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if col >= len(fields) {
			return nil, errs.Data(path, fmt.Errorf("line %d: no column %d in %d values", line, col, len(fields)))
		}
		v, err := strconv.ParseFloat(fields[col], 64)
		if err != nil {
			return nil, errs.Data(path, fmt.Errorf("line %d: %w", line, err))
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Data(path, err)
	}
	return out, nil
}
