// Package normalize runs post-compile optimizers over produced output files.
//
// Normalizers are pure byte-to-byte transforms. Apply writes results
// atomically and fails open: on any error the existing output is left as it
// was and the error is returned for reporting only.
package normalize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Normalizer rewrites one kind of output file without changing its meaning.
type Normalizer interface {
	Name() string
	Handles(outRel string) bool
	Normalize(in []byte) ([]byte, error)
}

// Result describes what Apply did.
type Result struct {
	Normalizer string
	Applied    bool
	Before     int
	After      int
}

// Select returns the first normalizer that handles outRel.
func Select(outRel string, normalizers []Normalizer) (Normalizer, bool) {
	for _, n := range normalizers {
		if n.Handles(outRel) {
			return n, true
		}
	}
	return nil, false
}

// Apply normalizes the file at abs with the first matching normalizer.
// A Result with an empty Normalizer means nothing matched.
func Apply(abs, outRel string, normalizers []Normalizer) (Result, error) {
	n, ok := Select(outRel, normalizers)
	if !ok {
		return Result{}, nil
	}
	res := Result{Normalizer: n.Name()}

	in, err := os.ReadFile(abs)
	if err != nil {
		return res, fmt.Errorf("%s: read: %w", n.Name(), err)
	}
	res.Before, res.After = len(in), len(in)

	out, err := safeNormalize(n, in)
	if err != nil {
		return res, fmt.Errorf("%s: %w", n.Name(), err)
	}
	if bytes.Equal(in, out) {
		return res, nil
	}
	if err := WriteAtomic(abs, out); err != nil {
		return res, fmt.Errorf("%s: write: %w", n.Name(), err)
	}
	res.Applied, res.After = true, len(out)
	return res, nil
}

func safeNormalize(n Normalizer, in []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	out, err = n.Normalize(in)
	if err == nil && len(out) == 0 && len(in) > 0 {
		err = fmt.Errorf("produced empty output")
	}
	return out, err
}

// WriteAtomic replaces abs with data through a temporary file in the same directory.
func WriteAtomic(abs string, data []byte) error {
	info, err := os.Stat(abs)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), "."+filepath.Base(abs)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, abs)
}
