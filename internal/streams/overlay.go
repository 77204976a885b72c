package streams

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-fif/internal/fiferr"
	"github.com/deploymenttheory/go-fif/internal/properties"
	"github.com/deploymenttheory/go-fif/internal/volume"
)

// OverlayCompression tags how a chunk referenced by an OverlayStream is
// stored in its external target file.
type OverlayCompression int

const (
	OverlayStored OverlayCompression = 0
	OverlayZlib   OverlayCompression = 1
)

// overlayChunk is one registered external chunk reference: an (offset,
// size) window in target file filenameID, optionally zlib-compressed.
type overlayChunk struct {
	offset      int64
	size        int64
	compression OverlayCompression
	filenameID  int
}

// OverlayStream lets an archive reference chunked data that lives in an
// external file (e.g. piggy-backing on an EWF image) instead of copying
// it into the archive's own volumes (spec.md §4.8).
type OverlayStream struct {
	vs   *volume.VolumeSet
	name string
	mode Mode

	props   *properties.Properties
	size    int64
	readptr int64

	chunks            map[int64]overlayChunk
	filenames         map[string]int
	invertedFilenames map[int]string
	overlayCount      int64
	maxChunkID        int64

	targetPaths []string
	targets     []*os.File
}

// CreateOverlayStream begins a new writable Overlay stream.
func CreateOverlayStream(vs *volume.VolumeSet, name string) *OverlayStream {
	s := &OverlayStream{
		vs:                vs,
		name:              name,
		mode:              ModeWrite,
		props:             properties.New(),
		chunks:            make(map[int64]overlayChunk),
		filenames:         make(map[string]int),
		invertedFilenames: make(map[int]string),
	}
	vs.RegisterWriter(s)
	return s
}

// SetChunk registers an external chunk reference: chunkID's bytes live at
// [offset, offset+size) in filename, optionally zlib-compressed. Chunks
// may be registered out of order; filename IDs are assigned in
// first-seen order.
func (s *OverlayStream) SetChunk(chunkID, offset, size int64, compression OverlayCompression, filename string) {
	filenameID, ok := s.filenames[filename]
	if !ok {
		filenameID = len(s.filenames)
		s.filenames[filename] = filenameID
		s.invertedFilenames[filenameID] = filename
	}
	s.chunks[chunkID] = overlayChunk{offset: offset, size: size, compression: compression, filenameID: filenameID}
	if chunkID > s.maxChunkID {
		s.maxChunkID = chunkID
	}
}

// SetSize fixes the stream's logical size explicitly. An overlay's size
// cannot be inferred from its registered chunks the way Image infers it
// from bytes written, so a writer must call this before Close.
func (s *OverlayStream) SetSize(size int64) { s.size = size }

// SetChunkSize fixes the fixed chunk stride SetChunk's offsets are
// assumed to divide the stream into (spec.md §4.8). If never called, the
// format default (DefaultChunkSize) is used and persisted at Close.
func (s *OverlayStream) SetChunkSize(chunkSize int64) {
	s.props.SetInt("chunk_size", chunkSize)
}

func (s *OverlayStream) overlaySegmentName(n int64) string {
	return fmt.Sprintf("%s/overlay.%02d", s.name, n)
}

// Flush is a no-op; an Overlay's chunk table is only meaningful once
// fully registered, so it is only ever persisted at Close.
func (s *OverlayStream) Flush() error { return nil }

// Close serializes the registered chunk table as one overlay.NN member,
// records the target filenames, and writes the stream's properties.
func (s *OverlayStream) Close() error {
	if s.mode != ModeWrite {
		return nil
	}
	s.vs.UnregisterWriter(s)

	s.props.SetInt("chunk_size", s.chunkSize())

	for i := 0; i < len(s.invertedFilenames); i++ {
		s.props.Append("target", "file://"+strings.TrimSpace(s.invertedFilenames[i]))
	}

	var b strings.Builder
	for i := int64(0); i <= s.maxChunkID; i++ {
		c, ok := s.chunks[i]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%d,%d,%d,%d,%d\n", i, c.offset, c.size, c.compression, c.filenameID)
	}

	segment := s.overlaySegmentName(s.overlayCount)
	s.overlayCount++
	if err := s.vs.WriteMember(segment, []byte(b.String()), 0); err != nil {
		return err
	}
	s.props.Append("overlay", fmt.Sprintf("overlay.%02d", s.overlayCount-1))

	return writeStreamProperties(s.vs, s.name, "Overlay", s.size, s.props)
}

// OpenOverlayStream opens an existing Overlay stream for reading,
// resolving its external target files (which must be plain "file://"
// filesystem paths) and loading every referenced overlay.NN segment.
func OpenOverlayStream(vs *volume.VolumeSet, name string) (*OverlayStream, error) {
	props, err := loadStreamProperties(vs, name)
	if err != nil {
		return nil, err
	}
	if err := requireStreamType(props, "Overlay"); err != nil {
		return nil, err
	}

	s := &OverlayStream{
		vs:      vs,
		name:    name,
		mode:    ModeRead,
		props:   props,
		size:    props.GetInt("size", 0),
		chunks:  make(map[int64]overlayChunk),
	}

	const filePrefix = "file://"
	for _, t := range props.GetArray("target") {
		path := t
		if strings.HasPrefix(t, filePrefix) {
			path = t[len(filePrefix):]
		}
		s.targetPaths = append(s.targetPaths, path)
	}

	for _, segment := range props.GetArray("overlay") {
		raw, err := vs.ReadMember(fmt.Sprintf("%s/%s", name, segment))
		if err != nil {
			return nil, fmt.Errorf("streams: loading overlay segment %q: %w", segment, err)
		}
		for _, line := range strings.Split(string(raw), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			fields := strings.SplitN(line, ",", 5)
			if len(fields) != 5 {
				continue
			}
			id, e1 := strconv.ParseInt(fields[0], 10, 64)
			offset, e2 := strconv.ParseInt(fields[1], 10, 64)
			size, e3 := strconv.ParseInt(fields[2], 10, 64)
			compression, e4 := strconv.Atoi(fields[3])
			filenameID, e5 := strconv.Atoi(fields[4])
			if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
				continue
			}
			s.chunks[id] = overlayChunk{offset: offset, size: size, compression: OverlayCompression(compression), filenameID: filenameID}
			if id > s.maxChunkID {
				s.maxChunkID = id
			}
		}
	}
	return s, nil
}

func (s *OverlayStream) targetFile(filenameID int) (*os.File, error) {
	for len(s.targets) <= filenameID {
		s.targets = append(s.targets, nil)
	}
	if s.targets[filenameID] != nil {
		return s.targets[filenameID], nil
	}
	if filenameID >= len(s.targetPaths) {
		return nil, fmt.Errorf("streams: overlay %q references unknown target %d: %w", s.name, filenameID, fiferr.ErrIntegrity)
	}
	f, err := os.Open(s.targetPaths[filenameID])
	if err != nil {
		return nil, fmt.Errorf("streams: opening overlay target %q: %w", s.targetPaths[filenameID], err)
	}
	s.targets[filenameID] = f
	return f, nil
}

func (s *OverlayStream) readChunk(chunkID int64) ([]byte, error) {
	c, ok := s.chunks[chunkID]
	if !ok {
		return nil, fmt.Errorf("streams: overlay %q has no chunk %d: %w", s.name, chunkID, fiferr.ErrNotFound)
	}
	f, err := s.targetFile(c.filenameID)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, c.size)
	if _, err := f.ReadAt(raw, c.offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("streams: reading overlay chunk %d: %w", chunkID, err)
	}
	if c.compression == OverlayZlib {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("streams: inflating overlay chunk %d: %w", chunkID, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return raw, nil
}

// Name returns the stream's member-name prefix.
func (s *OverlayStream) Name() string { return s.name }

// Size returns the stream's total logical byte length.
func (s *OverlayStream) Size() int64 { return s.size }

// Seek repositions the read pointer; only valid in read mode.
func (s *OverlayStream) Seek(offset int64, whence int) (int64, error) {
	if s.mode != ModeRead {
		return 0, fmt.Errorf("streams: seek on overlay stream %q open for writing", s.name)
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = s.readptr + offset
	case io.SeekEnd:
		pos = s.size + offset
	default:
		return 0, fmt.Errorf("streams: invalid whence %d", whence)
	}
	s.readptr = pos
	return s.readptr, nil
}

// chunkSize is the fixed chunk stride the caller's registered chunk IDs
// are assumed to divide the stream into — Overlay inherits Image's
// chunk-index arithmetic (chunk_id = offset / chunk_size) rather than
// storing variable-length chunk boundaries, so the producer that called
// SetChunk must use a uniform size (true of the EWF-style sources this
// is designed to piggy-back on).
func (s *OverlayStream) chunkSize() int64 {
	return s.props.GetInt("chunk_size", DefaultChunkSize)
}

// Read implements io.Reader, resolving each covering chunk from its
// external target file in turn.
func (s *OverlayStream) Read(p []byte) (int, error) {
	if s.mode != ModeRead {
		return 0, fmt.Errorf("streams: read on overlay stream %q open for writing", s.name)
	}
	want := int64(len(p))
	if remaining := s.size - s.readptr; want > remaining {
		want = remaining
	}
	if want <= 0 {
		return 0, io.EOF
	}

	cs := s.chunkSize()
	var total int64
	for total < want {
		chunkID := s.readptr / cs
		chunkOffset := s.readptr % cs
		data, err := s.readChunk(chunkID)
		if err != nil {
			return int(total), err
		}
		if chunkOffset >= int64(len(data)) {
			break
		}
		n := copy(p[total:want], data[chunkOffset:])
		total += int64(n)
		s.readptr += int64(n)
	}
	if total == 0 {
		return 0, io.EOF
	}
	return int(total), nil
}

// ReadChunk returns the (decompressed) bytes of one registered chunk by
// ID, bypassing the sequential Read cursor.
func (s *OverlayStream) ReadChunk(chunkID int64) ([]byte, error) {
	return s.readChunk(chunkID)
}
