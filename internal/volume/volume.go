// Package volume implements the VolumeSet: a logical FIF archive spanning
// one or more ZIP64 volumes, consolidating their Central Directories into
// one namespace with override and tombstone semantics (spec.md §3, §4.4).
package volume

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-fif/internal/zipio"
)

// File is the capability a volume's backing store must offer: positioned
// reads/writes (for zipio) plus Close. *os.File satisfies this directly;
// tests may supply an in-memory implementation.
type File interface {
	zipio.Backing
	Close() error
	Size() (int64, error)
}

// osFile adapts *os.File to the File interface.
type osFile struct{ f *os.File }

func (o *osFile) ReadAt(p []byte, off int64) (int, error)  { return o.f.ReadAt(p, off) }
func (o *osFile) WriteAt(p []byte, off int64) (int, error) { return o.f.WriteAt(p, off) }
func (o *osFile) Close() error                             { return o.f.Close() }
func (o *osFile) Size() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// openOSFileReadWrite opens an existing path for reading and writing. It
// never creates a file — callers merging an existing volume expect a
// missing path to be an error, not a fresh empty archive.
func openOSFileReadWrite(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("volume: opening %s: %w", path, err)
	}
	return &osFile{f: f}, nil
}

// createOSFile truncates/creates path fresh for a brand-new volume.
func createOSFile(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("volume: creating %s: %w", path, err)
	}
	return &osFile{f: f}, nil
}

// Volume is one backing ZIP64 file participating in a VolumeSet.
type Volume struct {
	// Name is how this volume is referenced in the 'volume' properties
	// array: "file://<basename>" for on-disk paths.
	Name string
	Path string
	file File
	// writer is non-nil while this volume is the VolumeSet's active
	// writable volume.
	writer *zipio.Writer
}

func volumeNameForPath(path string) string {
	return "file://" + baseName(path)
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
