// All file system functions: snapshot discovery and output staging
package storage

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/1F47E/go-shearreel/internal/errs"
	"github.com/1F47E/go-shearreel/pkg/logger"
)

// Snapshot is one stored field file and its position in time.
type Snapshot struct {
	Path  string
	Index int
}

// Index extracts the sort key of a snapshot file name: the last run of
// decimal digits in the base name, extension excluded.
// "dudy000100.dat" -> 100, "frame_010" -> 10, "run2_step7.txt" -> 7.
func Index(name string) (int, bool) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	end := strings.LastIndexFunc(base, isDigit)
	if end < 0 {
		return 0, false
	}
	start := end
	for start > 0 && isDigit(rune(base[start-1])) {
		start--
	}
	n, err := strconv.Atoi(base[start : end+1])
	if err != nil {
		// overflow on absurdly long digit runs
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

// Scan lists the snapshot files of dir matching pattern and orders them by
// their numeric index. Equal indices are ordered by name.
func Scan(dir, pattern string) ([]Snapshot, error) {
	log := logger.Log.WithField("scope", "storage scan")
	if pattern == "" {
		pattern = "*"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Config("scan", dir, err)
	}
	snaps := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, errs.Config("scan", pattern, err)
		}
		if !ok {
			log.Debugf("skipping %s: does not match %s", name, pattern)
			continue
		}
		idx, ok := Index(name)
		if !ok {
			log.Debugf("skipping %s: no frame index in name", name)
			continue
		}
		snaps = append(snaps, Snapshot{Path: filepath.Join(dir, name), Index: idx})
	}
	if len(snaps) == 0 {
		return nil, errs.Config("scan", dir, fmt.Errorf("no snapshots matching %q", pattern))
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		if snaps[i].Index != snaps[j].Index {
			return snaps[i].Index < snaps[j].Index
		}
		return snaps[i].Path < snaps[j].Path
	})
	log.Debugf("found %d snapshots, indices %d..%d", len(snaps), snaps[0].Index, snaps[len(snaps)-1].Index)
	return snaps, nil
}

// Window keeps the snapshots with index in [first, last] (last < 0 is
// unbounded), then every n-th of those. The input order is preserved.
func Window(snaps []Snapshot, first, last, every int) []Snapshot {
	if every < 1 {
		every = 1
	}
	out := make([]Snapshot, 0, len(snaps))
	var n int
	for _, s := range snaps {
		if s.Index < first || (last >= 0 && s.Index > last) {
			continue
		}
		if n%every == 0 {
			out = append(out, s)
		}
		n++
	}
	return out
}

// CheckOutputDir fails when the parent directory of path does not exist or
// is not a directory.
func CheckOutputDir(path string) error {
	dir := filepath.Dir(path)
	fi, err := os.Stat(dir)
	if err != nil {
		return errs.Config("output", dir, err)
	}
	if !fi.IsDir() {
		return errs.Config("output", dir, errors.New("not a directory"))
	}
	return nil
}

// CreateStaging reserves a staging file next to path. The staging name keeps
// the extension of path so the encoder picks the same container.
func CreateStaging(path string) (string, error) {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	f, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+"-*"+ext)
	if err != nil {
		return "", errs.Config("output", path, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", errs.Config("output", path, err)
	}
	return name, nil
}

// Commit moves the finished staging file onto path, replacing any file
// already there.
func Commit(staging, path string) error {
	if err := os.Rename(staging, path); err != nil {
		return fmt.Errorf("cannot move %s to %s: %w", staging, path, err)
	}
	return nil
}

// Discard removes a staging file. A missing file is not an error.
func Discard(staging string) error {
	err := os.Remove(staging)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SaveFrame writes img as a PNG file at path through a staging file.
func SaveFrame(path string, img image.Image) (err error) {
	if err := CheckOutputDir(path); err != nil {
		return err
	}
	staging, err := CreateStaging(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = Discard(staging)
		}
	}()
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", staging, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("cannot encode frame to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cannot write %s: %w", staging, err)
	}
	return Commit(staging, path)
}
