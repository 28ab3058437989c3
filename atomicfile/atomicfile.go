// Package atomicfile writes files atomically: data goes to a temporary file
// in the target directory and is renamed into place on Close. A crashed
// writer leaves no partial file under the final name.
package atomicfile

import (
	"os"
	"path/filepath"
)

// File wraps a temporary file destined for a final location.
type File struct {
	*os.File
	dst string
}

// New creates a temporary file next to dst.
func New(dst string) (*File, error) {
	dir, base := filepath.Split(dst)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{File: f, dst: dst}, nil
}

// Close syncs, closes and moves the temporary file to its destination.
func (f *File) Close() error {
	if err := f.File.Sync(); err != nil {
		_ = f.File.Close()
		_ = os.Remove(f.File.Name())
		return err
	}
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.File.Name())
		return err
	}
	return os.Rename(f.File.Name(), f.dst)
}

// Abort discards the temporary file without touching the destination.
func (f *File) Abort() error {
	_ = f.File.Close()
	return os.Remove(f.File.Name())
}
