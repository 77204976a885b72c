// Package streams implements the four stream types a FIF archive can
// expose through a member name: Image (plain chunked data), Map
// (piecewise-linear reindirection over other streams), Overlay (chunked
// data living in an external file), and Encrypted (Image with per-chunk
// AES applied before the chunk hits the volume). Spec.md §4.6-§4.9.
package streams

import (
	"fmt"
	"io"
	"strconv"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
	"github.com/deploymenttheory/go-fif/internal/properties"
	"github.com/deploymenttheory/go-fif/internal/volume"
)

// Mode distinguishes a stream opened for sequential writing from one
// opened for random-access reading; a stream is never both at once.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func propertiesMemberName(streamName string) string {
	return streamName + "/properties"
}

// loadStreamProperties reads and parses a stream's "<name>/properties"
// member, the entry point every Open* constructor starts from.
func loadStreamProperties(vs *volume.VolumeSet, name string) (*properties.Properties, error) {
	raw, err := vs.ReadMember(propertiesMemberName(name))
	if err != nil {
		return nil, fmt.Errorf("streams: loading properties for stream %q: %w", name, err)
	}
	props, _ := properties.Parse(string(raw))
	return props, nil
}

// writeStreamProperties stamps the mandatory size/type/name fields and
// persists props as the stream's properties member. Every stream type's
// Close calls this last, after any type-specific fields (chunk_size,
// count, target, scheme, overlay, ...) have been set.
func writeStreamProperties(vs *volume.VolumeSet, name, streamType string, size int64, props *properties.Properties) error {
	props.Set("size", strconv.FormatInt(size, 10))
	props.Set("type", streamType)
	props.Set("name", name)
	return vs.WriteMember(propertiesMemberName(name), props.Bytes(), 0)
}

// requireStreamType validates that a loaded stream's 'type' property
// matches what the caller expects to construct, failing with ErrParse
// rather than silently misinterpreting a foreign stream's fields.
func requireStreamType(props *properties.Properties, want string) error {
	got := props.Get("type", "")
	if got != want {
		return fmt.Errorf("streams: expected stream type %q, got %q: %w", want, got, fiferr.ErrParse)
	}
	return nil
}

// OpenAnyStream inspects name's properties member to discover its
// recorded 'type' and dispatches to the matching Open* constructor.
// Used by MapStream to resolve its own targets, which may themselves be
// any stream type the archive supports.
func OpenAnyStream(vs *volume.VolumeSet, name string) (io.ReadSeeker, error) {
	props, err := loadStreamProperties(vs, name)
	if err != nil {
		return nil, err
	}
	switch props.Get("type", "") {
	case "Image":
		return OpenImageStream(vs, name)
	case "Map":
		return OpenMapStream(vs, name)
	case "Overlay":
		return OpenOverlayStream(vs, name)
	case "Encrypted":
		return OpenEncryptedStream(vs, name, nil)
	default:
		return nil, fmt.Errorf("streams: stream %q has unknown type %q: %w", name, props.Get("type", ""), fiferr.ErrParse)
	}
}
