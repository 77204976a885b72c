// Package fif is the public façade over a FIF archive: open or create a
// VolumeSet, then open or create any of its streams. Most callers only
// need this package; internal/volume and internal/streams expose the
// lower-level machinery this wraps.
package fif

import (
	"io"

	"github.com/deploymenttheory/go-fif/internal/keyprovider"
	"github.com/deploymenttheory/go-fif/internal/streams"
	"github.com/deploymenttheory/go-fif/internal/volume"
	"github.com/deploymenttheory/go-fif/internal/zipio"
)

// Archive is a FIF archive: one or more ZIP64 volumes sharing a
// consolidated member index and an archive UUID.
type Archive struct {
	vs *volume.VolumeSet
}

// Create starts a brand-new archive backed by a single volume at path.
func Create(path string, cacheSize int) (*Archive, error) {
	vs, err := volume.Create(path, cacheSize)
	if err != nil {
		return nil, err
	}
	return &Archive{vs: vs}, nil
}

// Open loads an existing archive from one or more volume paths,
// recursively merging any sibling volumes they reference.
func Open(paths []string, cacheSize int) (*Archive, error) {
	vs, err := volume.Open(paths, cacheSize)
	if err != nil {
		return nil, err
	}
	return &Archive{vs: vs}, nil
}

// UUID returns the archive's identifier.
func (a *Archive) UUID() string { return a.vs.UUID() }

// Close calls Flush on every stream writer that is still open (see each
// stream's Flush), then finalizes the active volume's Central Directory.
func (a *Archive) Close() error { return a.vs.Close() }

// CreateNewVolume finalizes the active volume and begins a new one.
func (a *Archive) CreateNewVolume(path string) error { return a.vs.CreateNewVolume(path) }

// AppendVolume resumes writing into an already-loaded volume.
func (a *Archive) AppendVolume(name string) error { return a.vs.AppendVolume(name) }

// HasMember reports whether name resolves to a live member.
func (a *Archive) HasMember(name string) bool { return a.vs.HasMember(name) }

// Members returns the names of every live member in the archive's
// consolidated index.
func (a *Archive) Members() []string { return a.vs.Members() }

// VolumeNames returns every volume currently loaded into the archive, in
// load order.
func (a *Archive) VolumeNames() []string { return a.vs.VolumeNames() }

// ReadMember returns the raw decompressed bytes of member name.
func (a *Archive) ReadMember(name string) ([]byte, error) { return a.vs.ReadMember(name) }

// WriteMember writes data as a single complete member.
func (a *Archive) WriteMember(name string, data []byte, compressed bool) error {
	method := zipio.Stored
	if compressed {
		method = zipio.Deflate
	}
	return a.vs.WriteMember(name, data, method)
}

// DeleteMember writes a tombstone entry shadowing name.
func (a *Archive) DeleteMember(name string) error { return a.vs.DeleteMember(name) }

// CreateImageStream begins a new writable Image stream. chunkSize <= 0
// uses the format default (32KB).
func (a *Archive) CreateImageStream(name string, chunkSize int64) io.WriteCloser {
	return streams.CreateImageStream(a.vs, name, chunkSize)
}

// OpenImageStream opens an existing Image stream for reading.
func (a *Archive) OpenImageStream(name string) (*streams.ImageStream, error) {
	return streams.OpenImageStream(a.vs, name)
}

// CreateMapStream begins a new writable Map stream over targetNames.
func (a *Archive) CreateMapStream(name string, targetNames []string) *streams.MapStream {
	return streams.CreateMapStream(a.vs, name, targetNames)
}

// OpenMapStream opens an existing Map stream for reading.
func (a *Archive) OpenMapStream(name string) (*streams.MapStream, error) {
	return streams.OpenMapStream(a.vs, name)
}

// CreateOverlayStream begins a new writable Overlay stream.
func (a *Archive) CreateOverlayStream(name string) *streams.OverlayStream {
	return streams.CreateOverlayStream(a.vs, name)
}

// OpenOverlayStream opens an existing Overlay stream for reading.
func (a *Archive) OpenOverlayStream(name string) (*streams.OverlayStream, error) {
	return streams.OpenOverlayStream(a.vs, name)
}

// CreateEncryptedStream begins a new writable Encrypted stream. prompt
// may be nil if psk (or the FIF_PSK environment variable) already
// supplies the key.
func (a *Archive) CreateEncryptedStream(name, scheme, psk string, prompt keyprovider.Prompter, chunkSize int64) (*streams.EncryptedStream, error) {
	return streams.CreateEncryptedStream(a.vs, name, scheme, psk, prompt, chunkSize)
}

// OpenEncryptedStream opens an existing Encrypted stream for reading.
func (a *Archive) OpenEncryptedStream(name string, prompt keyprovider.Prompter) (*streams.EncryptedStream, error) {
	return streams.OpenEncryptedStream(a.vs, name, prompt)
}

// OpenAnyStream dispatches to the correct Open* constructor based on the
// stream's own recorded 'type' property.
func (a *Archive) OpenAnyStream(name string) (io.ReadSeeker, error) {
	return streams.OpenAnyStream(a.vs, name)
}
