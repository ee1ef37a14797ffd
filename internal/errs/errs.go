// Package errs holds the two failure classes of a render run.
//
// Both are fatal and never retried: they come from deterministic input
// problems. Callers match them with errors.As.
package errs

import "fmt"

// ConfigurationError reports a problem with the run setup: missing or empty
// input directory, missing output directory, invalid style values or an
// unusable encoder.
type ConfigurationError struct {
	Op   string // what was being checked, e.g. "scan", "output", "style"
	Path string // file or directory involved, may be empty
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("configuration error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// DataFormatError reports a snapshot that cannot be read or parsed, or whose
// shape differs from the snapshots rendered before it.
type DataFormatError struct {
	Path string
	Err  error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("data format error: %s: %v", e.Path, e.Err)
}

func (e *DataFormatError) Unwrap() error {
	return e.Err
}

// Config is a shorthand constructor for a *ConfigurationError.
func Config(op, path string, err error) error {
	return &ConfigurationError{Op: op, Path: path, Err: err}
}

// Data is a shorthand constructor for a *DataFormatError.
func Data(path string, err error) error {
	return &DataFormatError{Path: path, Err: err}
}
